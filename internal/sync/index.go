package sync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
)

// Kind names a remote resource collection
type Kind string

const (
	KindProducts      Kind = "products"
	KindCategories    Kind = "categories"
	KindManufacturers Kind = "manufacturers"
)

// Resource is the indexed view of one remote record
type Resource struct {
	ID              string
	Key             string
	Name            string
	ParentID        string
	DefaultCategory string
}

// Index is a one-shot lookup of the remote resources of a kind.
// Err is set when the fetch failed; the index is then empty and must not
// be used to decide deletions.
type Index struct {
	Kind       Kind
	Resources  []Resource
	ByID       map[string]Resource
	ByKey      map[string]Resource
	Duplicates []Resource
	Err        error
}

// Lister is the read side of the remote used to build indexes
type Lister interface {
	List(ctx context.Context, resource string, q *prestashop.Query, out interface{}) error
}

// BuildIndex fetches all remote resources of kind in a single request
func BuildIndex(ctx context.Context, lister Lister, kind Kind) *Index {
	idx := &Index{
		Kind:  kind,
		ByID:  make(map[string]Resource),
		ByKey: make(map[string]Resource),
	}

	resources, err := fetchResources(ctx, lister, kind)
	if err != nil {
		idx.Err = fmt.Errorf("failed to index %s: %w", kind, err)
		log.Printf("❌ %v", idx.Err)
		return idx
	}

	for _, r := range resources {
		if r.ID == "" {
			continue
		}
		idx.Resources = append(idx.Resources, r)
		idx.ByID[r.ID] = r
		if r.Key == "" {
			continue
		}
		if _, exists := idx.ByKey[r.Key]; exists {
			idx.Duplicates = append(idx.Duplicates, r)
			continue
		}
		idx.ByKey[r.Key] = r
	}

	if len(idx.Duplicates) > 0 {
		log.Printf("⚠️  %d duplicate %s on the store", len(idx.Duplicates), kind)
	}
	return idx
}

// NameMap returns key -> id, the lookup used to match local names
func (idx *Index) NameMap() map[string]string {
	out := make(map[string]string, len(idx.ByKey))
	for key, r := range idx.ByKey {
		out[key] = r.ID
	}
	return out
}

func fetchResources(ctx context.Context, lister Lister, kind Kind) ([]Resource, error) {
	switch kind {
	case KindProducts:
		var resp struct {
			Products []prestashop.ProductRecord `json:"products"`
		}
		q := prestashop.NewQuery().Display("id", "reference", "id_category_default")
		if err := lister.List(ctx, string(kind), q, &resp); err != nil {
			return nil, err
		}
		out := make([]Resource, 0, len(resp.Products))
		for _, p := range resp.Products {
			out = append(out, Resource{
				ID:              p.ID.String(),
				Key:             strings.TrimSpace(p.Reference),
				Name:            p.Reference,
				DefaultCategory: p.IDCategoryDefault.String(),
			})
		}
		return out, nil

	case KindCategories:
		var resp struct {
			Categories []prestashop.CategoryRecord `json:"categories"`
		}
		q := prestashop.NewQuery().Display("id", "name", "id_parent")
		if err := lister.List(ctx, string(kind), q, &resp); err != nil {
			return nil, err
		}
		out := make([]Resource, 0, len(resp.Categories))
		for _, c := range resp.Categories {
			out = append(out, Resource{
				ID:       c.ID.String(),
				Key:      snapshot.NormalizeName(c.Name.String()),
				Name:     c.Name.String(),
				ParentID: c.IDParent.String(),
			})
		}
		return out, nil

	case KindManufacturers:
		var resp struct {
			Manufacturers []prestashop.ManufacturerRecord `json:"manufacturers"`
		}
		q := prestashop.NewQuery().Display("id", "name")
		if err := lister.List(ctx, string(kind), q, &resp); err != nil {
			return nil, err
		}
		out := make([]Resource, 0, len(resp.Manufacturers))
		for _, m := range resp.Manufacturers {
			out = append(out, Resource{
				ID:   m.ID.String(),
				Key:  snapshot.NormalizeName(m.Name),
				Name: m.Name,
			})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown resource kind %q", kind)
}
