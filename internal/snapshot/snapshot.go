// Package snapshot builds the normalized, in-memory view of the ERP catalog
// used as the authoritative side of every reconciliation pass.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/decoder"
)

// ErrNoRevision means a price list has no published revision; no items are produced
var ErrNoRevision = errors.New("snapshot: no published price-list revision")

// Source is the read side of the ERP used to build snapshots
type Source interface {
	LatestRevision(ctx context.Context, listCode string) (int64, bool, error)
	StockLevels(ctx context.Context, year int) (map[string]arca.StockLevel, error)
	ProductRows(ctx context.Context, retailRevision, wholesaleRevision int64) ([]arca.ProductRow, error)
	AttributeNames(ctx context.Context, ids []int) (map[int]string, error)
	ChildCategories(ctx context.Context, parentIDs []int) ([]arca.CategoryRow, error)
	BrandNames(ctx context.Context, retailRevision int64) ([]string, error)
}

// Attribute is a decoded attribute code with its ERP description
type Attribute struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Item is one ERP product ready to be published
type Item struct {
	Code              string               `json:"code"`
	Name              string               `json:"name"`
	Description       string               `json:"description"`
	Weight            decimal.Decimal      `json:"weight"`
	Height            decimal.Decimal      `json:"height"`
	Width             decimal.Decimal      `json:"width"`
	Depth             decimal.Decimal      `json:"depth"`
	UnitPrice         decimal.Decimal      `json:"unitPrice"`
	WholesalePrice    decimal.Decimal      `json:"wholesalePrice"`
	QuotedPrice       decimal.Decimal      `json:"quotedPrice"`
	StockQuantity     decimal.Decimal      `json:"stockQuantity"`
	Unit              string               `json:"unit"`
	Factor            decimal.Decimal      `json:"factor"`
	CategoryID        int                  `json:"categoryId"`
	CategoryName      string               `json:"categoryName"`
	MatchedCategoryID string               `json:"matchedCategoryId,omitempty"`
	BrandName         string               `json:"brandName,omitempty"`
	RawAttributes     string               `json:"-"`
	Attributes        []Attribute          `json:"attributes"`
	Availability      decoder.Availability `json:"availability"`
	OutOfStock        int                  `json:"outOfStock"`
	DiscountPercent   int                  `json:"discountPercent"`
	ShippingTier      *config.ShippingTier `json:"shippingTier,omitempty"`
	Featured          bool                 `json:"featured"`
	AvailableDate     string               `json:"availableDate"`
	AvailableNow      string               `json:"availableNow"`
	AvailableLater    string               `json:"availableLater"`
}

// Snapshot is the catalog state of one pass
type Snapshot struct {
	Items             []Item    `json:"items"`
	RetailRevision    int64     `json:"retailRevision"`
	WholesaleRevision int64     `json:"wholesaleRevision"`
	BuiltAt           time.Time `json:"builtAt"`
}

// Builder reads the ERP and produces snapshots
type Builder struct {
	source  Source
	decoder *decoder.Decoder
	catalog config.CatalogConfig
	now     func() time.Time
}

// NewBuilder creates a snapshot builder
func NewBuilder(source Source, dec *decoder.Decoder, catalog config.CatalogConfig) *Builder {
	return &Builder{source: source, decoder: dec, catalog: catalog, now: time.Now}
}

// WithClock replaces the time source used for the fiscal year
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build produces the item list from the latest retail and wholesale revisions
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	retail, err := b.revision(ctx, b.catalog.RetailList)
	if err != nil {
		return nil, err
	}
	wholesale, err := b.revision(ctx, b.catalog.WholesaleList)
	if err != nil {
		return nil, err
	}

	stock, err := b.source.StockLevels(ctx, b.now().Year())
	if err != nil {
		return nil, err
	}

	rows, err := b.source.ProductRows(ctx, retail, wholesale)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Items:             make([]Item, 0, len(rows)),
		RetailRevision:    retail,
		WholesaleRevision: wholesale,
		BuiltAt:           b.now(),
	}

	attrIDs := map[int]struct{}{}
	for _, row := range rows {
		item := b.itemFromRow(row, stock)
		for _, a := range item.Attributes {
			attrIDs[a.ID] = struct{}{}
		}
		snap.Items = append(snap.Items, item)
	}

	b.describeAttributes(ctx, snap, attrIDs)

	log.Printf("📦 Snapshot: %d items (retail rev %d, wholesale rev %d)", len(snap.Items), retail, wholesale)
	return snap, nil
}

func (b *Builder) revision(ctx context.Context, listCode string) (int64, error) {
	id, ok, err := b.source.LatestRevision(ctx, listCode)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoRevision, listCode)
	}
	return id, nil
}

func (b *Builder) itemFromRow(row arca.ProductRow, stock map[string]arca.StockLevel) Item {
	var rawStock decimal.Decimal
	if level, ok := stock[row.Code]; ok {
		rawStock = level.Quantity
	}

	res := b.decoder.Decode(decoder.Input{
		Attributes:     row.Attributes.String,
		Price:          row.RetailPrice.Decimal,
		WholesalePrice: row.WholesalePrice.Decimal,
		Stock:          rawStock,
		Factor:         row.Factor.Decimal,
	})

	item := Item{
		Code:            strings.TrimSpace(row.Code),
		Name:            strings.TrimSpace(row.WebDescription.String),
		Description:     strings.TrimSpace(row.WebNotes.String),
		Weight:          nonNegative(row.GrossWeight.Decimal),
		Height:          nonNegative(row.Height.Decimal),
		Width:           nonNegative(row.Length.Decimal),
		Depth:           nonNegative(row.Width.Decimal),
		UnitPrice:       res.UnitPrice,
		WholesalePrice:  res.WholesalePrice,
		QuotedPrice:     res.QuotedPrice,
		StockQuantity:   res.StockQuantity,
		Unit:            row.Unit,
		Factor:          row.Factor.Decimal,
		CategoryID:      int(row.CategoryID.Int64),
		CategoryName:    strings.TrimSpace(row.CategoryName.String),
		BrandName:       strings.TrimSpace(row.BrandName.String),
		RawAttributes:   row.Attributes.String,
		Availability:    res.Availability,
		OutOfStock:      int(res.OutOfStock),
		DiscountPercent: res.DiscountPercent,
		ShippingTier:    res.ShippingTier,
		Featured:        res.Featured,
		AvailableDate:   res.AvailableDate,
		AvailableNow:    res.AvailableNow,
		AvailableLater:  res.AvailableLater,
	}
	for _, id := range res.AttributeIDs {
		item.Attributes = append(item.Attributes, Attribute{ID: id})
	}
	return item
}

// describeAttributes fills attribute descriptions with a single lookup.
// Descriptions are informational, a failed lookup leaves them empty.
func (b *Builder) describeAttributes(ctx context.Context, snap *Snapshot, ids map[int]struct{}) {
	if len(ids) == 0 {
		return
	}
	list := make([]int, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Ints(list)

	names, err := b.source.AttributeNames(ctx, list)
	if err != nil {
		log.Printf("⚠️  Attribute lookup failed: %v", err)
		return
	}
	for i := range snap.Items {
		for j := range snap.Items[i].Attributes {
			snap.Items[i].Attributes[j].Description = names[snap.Items[i].Attributes[j].ID]
		}
	}
}

// Brands returns the distinct non-empty brand names of the published items
func (b *Builder) Brands(ctx context.Context) ([]string, error) {
	retail, err := b.revision(ctx, b.catalog.RetailList)
	if err != nil {
		return nil, err
	}
	names, err := b.source.BrandNames(ctx, retail)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[NormalizeName(n)] {
			continue
		}
		seen[NormalizeName(n)] = true
		out = append(out, n)
	}
	return out, nil
}

// MatchCategories sets MatchedCategoryID on every item whose category name
// matches a remote category. remoteByName is keyed by NormalizeName.
func MatchCategories(snap *Snapshot, remoteByName map[string]string) int {
	matched := 0
	for i := range snap.Items {
		item := &snap.Items[i]
		item.MatchedCategoryID = ""
		if item.CategoryName == "" {
			continue
		}
		if id, ok := remoteByName[NormalizeName(item.CategoryName)]; ok {
			item.MatchedCategoryID = id
			matched++
		}
	}
	return matched
}

// NormalizeName is the comparison form of category and brand names
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
