package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/decoder"
)

type fakeSource struct {
	revisions  map[string]int64
	stock      map[string]arca.StockLevel
	rows       []arca.ProductRow
	attributes map[int]string
	children   map[int][]arca.CategoryRow
	brands     []string
	stockYear  int
	levelCalls int
}

func (f *fakeSource) LatestRevision(ctx context.Context, list string) (int64, bool, error) {
	id, ok := f.revisions[list]
	return id, ok, nil
}

func (f *fakeSource) StockLevels(ctx context.Context, year int) (map[string]arca.StockLevel, error) {
	f.stockYear = year
	return f.stock, nil
}

func (f *fakeSource) ProductRows(ctx context.Context, retail, wholesale int64) ([]arca.ProductRow, error) {
	return f.rows, nil
}

func (f *fakeSource) AttributeNames(ctx context.Context, ids []int) (map[int]string, error) {
	if f.attributes == nil {
		return nil, errors.New("lookup failed")
	}
	return f.attributes, nil
}

func (f *fakeSource) ChildCategories(ctx context.Context, parents []int) ([]arca.CategoryRow, error) {
	f.levelCalls++
	var out []arca.CategoryRow
	for _, p := range parents {
		out = append(out, f.children[p]...)
	}
	return out, nil
}

func (f *fakeSource) BrandNames(ctx context.Context, retail int64) ([]string, error) {
	return f.brands, nil
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func str(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func catRow(id, parent int, name string) arca.CategoryRow {
	return arca.CategoryRow{ID: id, ParentID: sql.NullInt64{Int64: int64(parent), Valid: true}, Name: name}
}

func testCatalog() config.CatalogConfig {
	return config.CatalogConfig{RootCategoryID: 8, MaxCategoryDepth: 10, RetailList: "LSA0005", WholesaleList: "LSA0009"}
}

func newTestBuilder(src Source) *Builder {
	now := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	dec := decoder.New(config.DefaultSyncConfig(), "Disponibile").WithClock(now)
	return NewBuilder(src, dec, testCatalog()).WithClock(now)
}

func TestBuild_DecodesRows(t *testing.T) {
	src := &fakeSource{
		revisions: map[string]int64{"LSA0005": 11, "LSA0009": 12},
		stock:     map[string]arca.StockLevel{"AB1": {Code: "AB1", Quantity: decimal.NewFromInt(10)}},
		rows: []arca.ProductRow{
			{
				Code:           "AB1",
				WebDescription: str(" Pan 24cm "),
				Factor:         nullDec("2"),
				Attributes:     str(`<rows><row attributo="1022"/></rows>`),
				RetailPrice:    nullDec("50"),
				CategoryName:   str("Pentole"),
				Length:         nullDec("30"),
				Width:          nullDec("20"),
			},
			{Code: "AB2", Factor: nullDec("1"), RetailPrice: nullDec("7")},
		},
		attributes: map[int]string{1022: "Sconto 10%"},
	}

	snap, err := newTestBuilder(src).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, 2024, src.stockYear)

	ab1 := snap.Items[0]
	assert.Equal(t, "Pan 24cm", ab1.Name)
	assert.Equal(t, "5.000", ab1.StockQuantity.StringFixed(3))
	assert.Equal(t, 10, ab1.DiscountPercent)
	assert.Equal(t, "90.000", ab1.QuotedPrice.StringFixed(3))
	assert.Equal(t, "30", ab1.Width.String())
	assert.Equal(t, "20", ab1.Depth.String())
	require.Len(t, ab1.Attributes, 1)
	assert.Equal(t, "Sconto 10%", ab1.Attributes[0].Description)

	ab2 := snap.Items[1]
	assert.Equal(t, decoder.OutOfStock, ab2.Availability)
	assert.True(t, ab2.StockQuantity.IsZero())
	assert.Empty(t, ab2.BrandName)
}

func TestBuild_NoRevisionFailsClosed(t *testing.T) {
	src := &fakeSource{
		revisions: map[string]int64{"LSA0005": 11},
		rows:      []arca.ProductRow{{Code: "AB1"}},
	}

	snap, err := newTestBuilder(src).Build(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrNoRevision)
}

func TestBuild_AttributeLookupFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		revisions: map[string]int64{"LSA0005": 1, "LSA0009": 2},
		rows:      []arca.ProductRow{{Code: "X", Factor: nullDec("1"), Attributes: str(`<row attributo="1034"/>`)}},
	}

	snap, err := newTestBuilder(src).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Items[0].Featured)
	assert.Empty(t, snap.Items[0].Attributes[0].Description)
}

func TestCategories_ScenarioC(t *testing.T) {
	src := &fakeSource{children: map[int][]arca.CategoryRow{
		8:  {catRow(10, 8, "Cucina"), catRow(11, 8, "Bar")},
		10: {catRow(20, 10, "Pentole")},
	}}

	cats, err := newTestBuilder(src).Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, Category{ID: 10, ParentID: 8, Name: "Cucina", Level: 1}, cats[0])
	assert.Equal(t, Category{ID: 11, ParentID: 8, Name: "Bar", Level: 1}, cats[1])
	assert.Equal(t, Category{ID: 20, ParentID: 10, Name: "Pentole", Level: 2}, cats[2])
}

func TestCategories_CycleSafe(t *testing.T) {
	src := &fakeSource{children: map[int][]arca.CategoryRow{
		8:  {catRow(10, 8, "A")},
		10: {catRow(8, 10, "Root again"), catRow(10, 10, "Self")},
	}}

	cats, err := newTestBuilder(src).Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, 2, src.levelCalls)
}

func TestCategories_MaxDepth(t *testing.T) {
	children := map[int][]arca.CategoryRow{}
	for i := 8; i < 30; i++ {
		children[i] = []arca.CategoryRow{catRow(i+1, i, "c")}
	}
	src := &fakeSource{children: children}

	cats, err := newTestBuilder(src).Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 10)
}

func TestMatchCategories(t *testing.T) {
	snap := &Snapshot{Items: []Item{
		{Code: "A", CategoryName: "Pentole"},
		{Code: "B", CategoryName: "Unknown"},
		{Code: "C"},
	}}

	n := MatchCategories(snap, map[string]string{"pentole": "14"})
	assert.Equal(t, 1, n)
	assert.Equal(t, "14", snap.Items[0].MatchedCategoryID)
	assert.Empty(t, snap.Items[1].MatchedCategoryID)
	assert.Empty(t, snap.Items[2].MatchedCategoryID)
}

func TestBrands_DedupAndSkipEmpty(t *testing.T) {
	src := &fakeSource{
		revisions: map[string]int64{"LSA0005": 1},
		brands:    []string{"Lagostina", "", "  ", "lagostina ", "Bialetti"},
	}

	brands, err := newTestBuilder(src).Brands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Lagostina", "Bialetti"}, brands)
}
