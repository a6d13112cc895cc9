package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
)

// ProductSync publishes the snapshot items as store products
type ProductSync struct {
	remote  Remote
	images  ImageSource
	catalog config.CatalogConfig

	// WithImages also replaces product pictures after each upsert
	WithImages bool
}

// NewProductSync creates the product pass
func NewProductSync(remote Remote, images ImageSource, catalog config.CatalogConfig) *ProductSync {
	return &ProductSync{remote: remote, images: images, catalog: catalog}
}

// Run reconciles the snapshot with the store products
func (s *ProductSync) Run(ctx context.Context, snap *snapshot.Snapshot, obs Observer) *Result {
	categories := BuildIndex(ctx, s.remote, KindCategories)
	if categories.Err == nil {
		matched := snapshot.MatchCategories(snap, categories.NameMap())
		obs.Logger().Printf("📦 Matched %d of %d items to store categories", matched, len(snap.Items))
	}

	brands := BuildIndex(ctx, s.remote, KindManufacturers)
	products := BuildIndex(ctx, s.remote, KindProducts)

	return Reconcile(ctx, Pass[snapshot.Item]{
		Kind:  string(KindProducts),
		Items: snap.Items,
		Key:   func(item snapshot.Item) string { return item.Code },
		Index: products,
		Create: func(ctx context.Context, item snapshot.Item) (string, error) {
			p := s.payload(&item, brands)
			p.IDCategoryDefault = s.defaultCategory(&item, "")
			p.SetCategories(s.categorySet(&item, p.IDCategoryDefault, nil))
			body, err := (&prestashop.Document{Product: p}).Marshal()
			if err != nil {
				return "", err
			}
			return s.remote.Create(ctx, "products", body)
		},
		Update: func(ctx context.Context, item snapshot.Item, remote Resource) (string, error) {
			var resp struct {
				Product prestashop.ProductRecord `json:"product"`
			}
			if err := s.remote.Get(ctx, "products", remote.ID, nil, &resp); err != nil {
				return "", fmt.Errorf("failed to read product %s: %w", remote.ID, err)
			}
			existing := make([]string, 0, len(resp.Product.Associations.Categories))
			for _, c := range resp.Product.Associations.Categories {
				existing = append(existing, c.ID.String())
			}

			p := s.payload(&item, brands)
			p.ID = remote.ID
			p.IDCategoryDefault = s.defaultCategory(&item, resp.Product.IDCategoryDefault.String())
			p.SetCategories(s.categorySet(&item, p.IDCategoryDefault, existing))
			body, err := (&prestashop.Document{Product: p}).Marshal()
			if err != nil {
				return "", err
			}
			return s.remote.Update(ctx, "products", remote.ID, body)
		},
		Delete: func(ctx context.Context, remote Resource) error {
			return s.remote.Delete(ctx, "products", remote.ID)
		},
		AfterUpsert: func(ctx context.Context, item snapshot.Item, remoteID string, res *Result) {
			if err := syncStock(ctx, s.remote, remoteID, &item); err != nil {
				res.Fail(item.Code, OpStock, err)
			}
			if err := syncDiscount(ctx, s.remote, remoteID, &item); err != nil {
				res.Fail(item.Code, OpDiscount, err)
			}
			if s.WithImages && s.images != nil {
				if err := syncImages(ctx, s.remote, s.images, remoteID, item.Code); err != nil {
					res.Fail(item.Code, OpImages, err)
				}
			}
		},
		Observer: obs,
	})
}

func (s *ProductSync) payload(item *snapshot.Item, brands *Index) *prestashop.Product {
	p := &prestashop.Product{
		Reference:         item.Code,
		Name:              prestashop.Lang(item.Name),
		Description:       prestashop.Lang(item.Description),
		DescriptionShort:  prestashop.Lang(item.Description),
		Price:             item.UnitPrice.StringFixed(6),
		WholesalePrice:    item.WholesalePrice.StringFixed(6),
		IDTaxRulesGroup:   "1",
		UnitPriceRatio:    "1",
		UnitPrice:         item.UnitPrice.StringFixed(6),
		Unity:             item.Unit,
		Weight:            item.Weight.String(),
		Depth:             item.Depth.String(),
		Height:            item.Height.String(),
		Width:             item.Width.String(),
		Active:            "1",
		State:             "1",
		ProductType:       "standard",
		MinimalQuantity:   "1",
		AvailableForOrder: "1",
		ShowPrice:         "1",
		Indexed:           "1",
		Visibility:        "both",
		AvailableDate:     item.AvailableDate,
		AvailableNow:      prestashop.Lang(item.AvailableNow),
		AvailableLater:    prestashop.Lang(item.AvailableLater),
	}
	if p.AvailableDate == "" {
		p.AvailableDate = "0000-00-00"
	}
	p.AdditionalShippingCost = "0.00"
	if item.ShippingTier != nil {
		p.AdditionalShippingCost = strconv.FormatFloat(item.ShippingTier.AdditionalCost, 'f', 2, 64)
	}
	if item.BrandName != "" && brands != nil {
		if b, ok := brands.ByKey[snapshot.NormalizeName(item.BrandName)]; ok {
			p.IDManufacturer = b.ID
		}
	}
	return p
}

// defaultCategory is the matched category, else the one already set on the
// store, else the configured default.
func (s *ProductSync) defaultCategory(item *snapshot.Item, current string) string {
	switch {
	case item.MatchedCategoryID != "":
		return item.MatchedCategoryID
	case current != "" && current != "0":
		return current
	case s.catalog.DefaultCategoryID != "":
		return s.catalog.DefaultCategoryID
	}
	return "2"
}

// categorySet is the union of the associations already present on the store,
// the default category and, for featured items, the home category.
func (s *ProductSync) categorySet(item *snapshot.Item, defaultID string, existing []string) []string {
	set := map[string]bool{}
	for _, id := range existing {
		if id != "" {
			set[id] = true
		}
	}
	set[defaultID] = true
	if item.Featured {
		home := s.catalog.HomeCategoryID
		if home == "" {
			home = "2"
		}
		set[home] = true
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// StockSync pushes quantities of the snapshot items that already exist on the store
type StockSync struct {
	remote Remote
}

// NewStockSync creates the stock-only pass
func NewStockSync(remote Remote) *StockSync {
	return &StockSync{remote: remote}
}

// Run updates the stock record of every item found on the store.
// Quantities are written even when zero.
func (s *StockSync) Run(ctx context.Context, snap *snapshot.Snapshot, obs Observer) *Result {
	products := BuildIndex(ctx, s.remote, KindProducts)
	if products.Err != nil {
		res := NewResult("products-stocks", obs)
		res.Fail("", OpIndex, products.Err)
		return res
	}

	return ForEach(ctx, "products-stocks", OpStock, snap.Items,
		func(item snapshot.Item) string { return item.Code },
		obs,
		func(ctx context.Context, item snapshot.Item) error {
			remote, ok := products.ByKey[item.Code]
			if !ok {
				return fmt.Errorf("product %s is not on the store", item.Code)
			}
			return syncStock(ctx, s.remote, remote.ID, &item)
		})
}

// ImageSync replaces the pictures of the snapshot items that already exist on the store
type ImageSync struct {
	remote Remote
	images ImageSource
}

// NewImageSync creates the image-only pass
func NewImageSync(remote Remote, images ImageSource) *ImageSync {
	return &ImageSync{remote: remote, images: images}
}

// Run uploads the ERP images of every item found on the store
func (s *ImageSync) Run(ctx context.Context, snap *snapshot.Snapshot, obs Observer) *Result {
	products := BuildIndex(ctx, s.remote, KindProducts)
	if products.Err != nil {
		res := NewResult("products-images", obs)
		res.Fail("", OpIndex, products.Err)
		return res
	}

	return ForEach(ctx, "products-images", OpImages, snap.Items,
		func(item snapshot.Item) string { return item.Code },
		obs,
		func(ctx context.Context, item snapshot.Item) error {
			remote, ok := products.ByKey[item.Code]
			if !ok {
				return fmt.Errorf("product %s is not on the store", item.Code)
			}
			return syncImages(ctx, s.remote, s.images, remote.ID, item.Code)
		})
}
