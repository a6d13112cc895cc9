package decoder

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/arcasync/internal/config"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestDecoder() *Decoder {
	return New(config.DefaultSyncConfig(), "Disponibile").WithClock(func() time.Time { return fixedNow })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseAttributes(t *testing.T) {
	cases := []struct {
		name string
		blob string
		want []int
	}{
		{"empty", "", nil},
		{"single", `<rows><row Cd_AR="AB1" attributo="1022"/></rows>`, []int{1022}},
		{"fragment", `<row attributo="1021"/><row attributo="1047"/>`, []int{1021, 1047}},
		{"non numeric skipped", `<rows><row attributo="x"/><row attributo="1034"/></rows>`, []int{1034}},
		{"malformed", `<rows><<row attributo="1022"/>`, nil},
		{"plain text", `not xml`, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseAttributes(tc.blob)
			if len(got) != len(tc.want) {
				t.Fatalf("ParseAttributes(%q) = %v, want %v", tc.blob, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("ParseAttributes(%q)[%d] = %d, want %d", tc.blob, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDecode_ScenarioA(t *testing.T) {
	d := newTestDecoder()

	res := d.Decode(Input{
		Attributes: `<rows><row attributo="1022"/></rows>`,
		Price:      dec("100"),
		Stock:      dec("10"),
		Factor:     dec("2"),
	})

	if !res.StockQuantity.Equal(dec("5")) || res.StockQuantity.StringFixed(3) != "5.000" {
		t.Errorf("stock = %s, want 5.000", res.StockQuantity.StringFixed(3))
	}
	if res.DiscountPercent != 10 {
		t.Errorf("discount = %d, want 10", res.DiscountPercent)
	}
	// price is per base unit, the factor scales it to the selling unit
	if res.UnitPrice.StringFixed(3) != "200.000" {
		t.Errorf("unit price = %s, want 200.000", res.UnitPrice.StringFixed(3))
	}
	if res.QuotedPrice.StringFixed(3) != "180.000" {
		t.Errorf("quoted price = %s, want 180.000", res.QuotedPrice.StringFixed(3))
	}
	if res.Availability != Available {
		t.Errorf("availability = %s, want %s", res.Availability, Available)
	}

	unscaled := d.Decode(Input{Attributes: `<rows><row attributo="1022"/></rows>`, Price: dec("100"), Factor: dec("1")})
	if unscaled.QuotedPrice.StringFixed(3) != "90.000" {
		t.Errorf("quoted price = %s, want 90.000", unscaled.QuotedPrice.StringFixed(3))
	}
}

func TestDecode_HighestDiscountWins(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(Input{
		Attributes: `<rows><row attributo="1043"/><row attributo="1021"/><row attributo="1026"/></rows>`,
		Factor:     dec("1"),
	})
	if res.DiscountPercent != 50 {
		t.Errorf("discount = %d, want 50", res.DiscountPercent)
	}

	none := d.Decode(Input{Attributes: `<rows><row attributo="9999"/></rows>`, Factor: dec("1")})
	if none.DiscountPercent != 0 {
		t.Errorf("discount = %d, want 0", none.DiscountPercent)
	}
}

func TestDecode_ScenarioD_InProduction(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(Input{
		Attributes: `<rows><row attributo="1047"/></rows>`,
		Price:      dec("10"),
		Stock:      dec("42"),
		Factor:     dec("1"),
	})

	if res.Availability != Backorder {
		t.Errorf("availability = %s, want %s", res.Availability, Backorder)
	}
	if !res.StockQuantity.IsZero() {
		t.Errorf("stock = %s, want 0", res.StockQuantity)
	}
	if res.OutOfStock != DenyOrders {
		t.Errorf("out_of_stock = %d, want %d", res.OutOfStock, DenyOrders)
	}
	if res.AvailableDate != "2024-03-16" {
		t.Errorf("available date = %s, want 2024-03-16", res.AvailableDate)
	}
	if res.AvailableNow != "" || res.AvailableLater != "In produzione" {
		t.Errorf("labels = %q/%q", res.AvailableNow, res.AvailableLater)
	}
}

func TestDecode_FeaturedAndTier(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(Input{
		Attributes: `<rows><row attributo="1046"/><row attributo="1034"/><row attributo="1045"/></rows>`,
		Factor:     dec("1"),
	})

	if !res.Featured {
		t.Error("expected featured item")
	}
	if res.ShippingTier == nil || res.ShippingTier.Name != "medium" {
		t.Errorf("tier = %+v, want medium (last match)", res.ShippingTier)
	}
}

func TestDecode_ClampsAndRounds(t *testing.T) {
	d := newTestDecoder()
	res := d.Decode(Input{
		Price:  dec("1.23456"),
		Stock:  dec("-4"),
		Factor: dec("0"),
	})

	if !res.StockQuantity.IsZero() {
		t.Errorf("stock = %s, want 0", res.StockQuantity)
	}
	if res.UnitPrice.String() != "1.235" {
		t.Errorf("unit price = %s, want 1.235", res.UnitPrice)
	}
	if res.Availability != OutOfStock || res.OutOfStock != ShopDefault {
		t.Errorf("availability = %s/%d", res.Availability, res.OutOfStock)
	}
	if res.AvailableDate != "0000-00-00" {
		t.Errorf("available date = %s", res.AvailableDate)
	}
}
