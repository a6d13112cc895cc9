package snapshot

import (
	"context"
	"log"
	"strings"
)

// Category is one node of the ERP category tree below the configured root
type Category struct {
	ID       int    `json:"id"`
	ParentID int    `json:"parentId"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
}

// Categories walks the tree breadth-first from the configured root, one query
// per level. Parents always precede their children in the result.
// A visited set and the maximum depth stop the walk on cyclic data.
func (b *Builder) Categories(ctx context.Context) ([]Category, error) {
	root := b.catalog.RootCategoryID
	maxDepth := b.catalog.MaxCategoryDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	visited := map[int]bool{root: true}
	frontier := []int{root}
	var out []Category

	for level := 1; len(frontier) > 0; level++ {
		if level > maxDepth {
			log.Printf("⚠️  Category tree deeper than %d levels, stopping", maxDepth)
			break
		}

		rows, err := b.source.ChildCategories(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]int, 0, len(rows))
		for _, row := range rows {
			if visited[row.ID] {
				continue
			}
			visited[row.ID] = true
			out = append(out, Category{
				ID:       row.ID,
				ParentID: int(row.ParentID.Int64),
				Name:     strings.TrimSpace(row.Name),
				Level:    level,
			})
			next = append(next, row.ID)
		}
		frontier = next
	}

	return out, nil
}
