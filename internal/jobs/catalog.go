package jobs

import (
	"context"
	"fmt"

	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/snapshot"
	"github.com/xelth-com/arcasync/internal/sync"
)

// CatalogSource produces the local view of the catalog; *snapshot.Builder satisfies it
type CatalogSource interface {
	Build(ctx context.Context) (*snapshot.Snapshot, error)
	Brands(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]snapshot.Category, error)
}

// CustomerImporter imports store customers and orders; *importer.Importer satisfies it
type CustomerImporter interface {
	Run(ctx context.Context, obs sync.Observer) (*sync.Result, error)
}

// Deps wires the jobs to the ERP and the store
type Deps struct {
	Catalog  CatalogSource
	Remote   sync.Remote
	Images   sync.ImageSource
	Importer CustomerImporter
	Config   config.CatalogConfig
}

// RegisterAll registers every job of config.JobNames
func RegisterAll(r *Runner, d Deps) {
	r.Register(Job{
		Name:        "products",
		Description: "Upload products with stock, discounts and pictures",
		Run:         productsJob(d, true),
	})
	r.Register(Job{
		Name:        "products-details",
		Description: "Upload products with stock and discounts",
		Run:         productsJob(d, false),
	})
	r.Register(Job{
		Name:        "products-images",
		Description: "Replace product pictures",
		Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
			snap, err := buildSnapshot(ctx, d.Catalog, obs)
			if err != nil {
				return nil, err
			}
			return sync.NewImageSync(d.Remote, d.Images).Run(ctx, snap, obs), nil
		},
	})
	r.Register(Job{
		Name:        "products-stocks",
		Description: "Update stock quantities",
		Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
			snap, err := buildSnapshot(ctx, d.Catalog, obs)
			if err != nil {
				return nil, err
			}
			return sync.NewStockSync(d.Remote).Run(ctx, snap, obs), nil
		},
	})
	r.Register(Job{
		Name:        "brands",
		Description: "Upload brands as manufacturers",
		Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
			brands, err := d.Catalog.Brands(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read brands: %w", err)
			}
			obs.Logger().Printf("📦 %d brands in the ERP", len(brands))
			return sync.NewBrandSync(d.Remote).Run(ctx, brands, obs), nil
		},
	})
	r.Register(Job{
		Name:        "categories-upload",
		Description: "Upload the category tree",
		Run: func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
			cats, err := d.Catalog.Categories(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to read categories: %w", err)
			}
			obs.Logger().Printf("📦 %d categories in the ERP", len(cats))
			return sync.NewCategorySync(d.Remote, d.Config).Run(ctx, cats, obs), nil
		},
	})
	r.Register(Job{
		Name:        "customers-import",
		Description: "Import store customers and orders into the ERP",
		Run:         d.Importer.Run,
	})
}

func productsJob(d Deps, withImages bool) Func {
	return func(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
		snap, err := buildSnapshot(ctx, d.Catalog, obs)
		if err != nil {
			return nil, err
		}
		ps := sync.NewProductSync(d.Remote, d.Images, d.Config)
		ps.WithImages = withImages
		return ps.Run(ctx, snap, obs), nil
	}
}

// buildSnapshot reads the catalog. A missing price-list revision ends the
// run before any remote write, so nothing is deleted from the store.
func buildSnapshot(ctx context.Context, source CatalogSource, obs sync.Observer) (*snapshot.Snapshot, error) {
	snap, err := source.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog snapshot: %w", err)
	}
	obs.Logger().Printf("📦 Snapshot: %d items (retail rev %d, wholesale rev %d)", len(snap.Items), snap.RetailRevision, snap.WholesaleRevision)
	return snap, nil
}
