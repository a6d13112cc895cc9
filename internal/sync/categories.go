package sync

import (
	"context"

	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
)

// protectedCategories are the store's root and home categories
var protectedCategories = map[string]bool{"1": true, "2": true}

// categoryLanguages receive the same text on every category write
var categoryLanguages = []string{"1", "2"}

// CategorySync mirrors the ERP category tree on the store
type CategorySync struct {
	remote  Remote
	catalog config.CatalogConfig
}

// NewCategorySync creates the category-tree pass
func NewCategorySync(remote Remote, catalog config.CatalogConfig) *CategorySync {
	return &CategorySync{remote: remote, catalog: catalog}
}

// Run upserts categories level by level so every parent exists on the store
// before its children, then removes the store categories absent from the tree.
func (s *CategorySync) Run(ctx context.Context, cats []snapshot.Category, obs Observer) *Result {
	idx := BuildIndex(ctx, s.remote, KindCategories)

	// local id -> store id, seeded with every category already matched by name
	parents := make(map[int]string, len(cats))
	for _, c := range cats {
		if r, ok := idx.ByKey[snapshot.NormalizeName(c.Name)]; ok {
			parents[c.ID] = r.ID
		}
	}

	root := s.catalog.DefaultCategoryID
	if root == "" {
		root = "2"
	}
	parentOf := func(c snapshot.Category) string {
		if id, ok := parents[c.ParentID]; ok && c.ParentID != c.ID {
			return id
		}
		return root
	}

	return Reconcile(ctx, Pass[snapshot.Category]{
		Kind:  string(KindCategories),
		Items: cats,
		Key:   func(c snapshot.Category) string { return snapshot.NormalizeName(c.Name) },
		Index: idx,
		Unchanged: func(c snapshot.Category, remote Resource) bool {
			return remote.Name == c.Name && remote.ParentID == parentOf(c)
		},
		Create: func(ctx context.Context, c snapshot.Category) (string, error) {
			body, err := (&prestashop.Document{Category: categoryPayload(c, "", parentOf(c))}).Marshal()
			if err != nil {
				return "", err
			}
			id, err := s.remote.Create(ctx, "categories", body)
			if err == nil && id != "" {
				parents[c.ID] = id
			}
			return id, err
		},
		Update: func(ctx context.Context, c snapshot.Category, remote Resource) (string, error) {
			body, err := (&prestashop.Document{Category: categoryPayload(c, remote.ID, parentOf(c))}).Marshal()
			if err != nil {
				return "", err
			}
			id, err := s.remote.Update(ctx, "categories", remote.ID, body)
			if err == nil && id != "" {
				parents[c.ID] = id
			}
			return id, err
		},
		Delete: func(ctx context.Context, remote Resource) error {
			return s.remote.Delete(ctx, "categories", remote.ID)
		},
		Protected:      protectedCategories,
		KeepDuplicates: true,
		Observer:       obs,
	})
}

func categoryPayload(c snapshot.Category, id, parentID string) *prestashop.Category {
	return &prestashop.Category{
		ID:              id,
		IDParent:        parentID,
		Active:          "1",
		IDShopDefault:   "1",
		IsRootCategory:  "0",
		Name:            prestashop.Lang(c.Name, categoryLanguages...),
		LinkRewrite:     prestashop.Lang(Slug(c.Name), categoryLanguages...),
		Description:     prestashop.Lang(c.Name, categoryLanguages...),
		MetaTitle:       prestashop.Lang(c.Name, categoryLanguages...),
		MetaDescription: prestashop.Lang(c.Name, categoryLanguages...),
		MetaKeywords:    prestashop.Lang(c.Name, categoryLanguages...),
	}
}

// BrandSync mirrors the ERP brands as store manufacturers
type BrandSync struct {
	remote Remote
}

// NewBrandSync creates the brand pass
func NewBrandSync(remote Remote) *BrandSync {
	return &BrandSync{remote: remote}
}

// Run upserts the brands by name and removes manufacturers no longer in use
func (s *BrandSync) Run(ctx context.Context, brands []string, obs Observer) *Result {
	idx := BuildIndex(ctx, s.remote, KindManufacturers)

	return Reconcile(ctx, Pass[string]{
		Kind:  string(KindManufacturers),
		Items: brands,
		Key:   snapshot.NormalizeName,
		Index: idx,
		Unchanged: func(name string, remote Resource) bool {
			return remote.Name == name
		},
		Create: func(ctx context.Context, name string) (string, error) {
			body, err := (&prestashop.Document{Manufacturer: &prestashop.Manufacturer{Active: "1", Name: name}}).Marshal()
			if err != nil {
				return "", err
			}
			return s.remote.Create(ctx, "manufacturers", body)
		},
		Update: func(ctx context.Context, name string, remote Resource) (string, error) {
			body, err := (&prestashop.Document{Manufacturer: &prestashop.Manufacturer{ID: remote.ID, Active: "1", Name: name}}).Marshal()
			if err != nil {
				return "", err
			}
			return s.remote.Update(ctx, "manufacturers", remote.ID, body)
		},
		Delete: func(ctx context.Context, remote Resource) error {
			return s.remote.Delete(ctx, "manufacturers", remote.ID)
		},
		Observer: obs,
	})
}
