// Package decoder turns the raw attribute blob and price/stock fields of an
// Arca item into the values published on the store.
package decoder

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/arcasync/internal/config"
)

// Availability of an item on the store
type Availability string

const (
	Available  Availability = "AVAILABLE"
	Backorder  Availability = "BACKORDER"
	OutOfStock Availability = "OUT_OF_STOCK"
)

// OutOfStockPolicy is the PrestaShop stock_available.out_of_stock value
type OutOfStockPolicy int

const (
	DenyOrders  OutOfStockPolicy = 0
	AllowOrders OutOfStockPolicy = 1
	ShopDefault OutOfStockPolicy = 2
)

const (
	noAvailDate = "0000-00-00"
	priceDigits = 3
)

// Input is the raw data of one item as read from the ERP
type Input struct {
	Attributes     string
	Price          decimal.Decimal
	WholesalePrice decimal.Decimal
	Stock          decimal.Decimal
	Factor         decimal.Decimal
}

// Result holds the decoded, store-ready values
type Result struct {
	AttributeIDs    []int
	Availability    Availability
	OutOfStock      OutOfStockPolicy
	DiscountPercent int
	ShippingTier    *config.ShippingTier
	Featured        bool
	AvailableDate   string // YYYY-MM-DD, 0000-00-00 when not set
	AvailableNow    string
	AvailableLater  string
	UnitPrice       decimal.Decimal
	WholesalePrice  decimal.Decimal
	QuotedPrice     decimal.Decimal
	StockQuantity   decimal.Decimal
}

// Decoder applies the attribute tables to item rows
type Decoder struct {
	tables       *config.SyncConfig
	availableNow string
	now          func() time.Time
}

// New creates a decoder; availableNow is the label shown for items in stock
func New(tables *config.SyncConfig, availableNow string) *Decoder {
	return &Decoder{
		tables:       tables,
		availableNow: availableNow,
		now:          time.Now,
	}
}

// WithClock replaces the time source used for the in-production date
func (d *Decoder) WithClock(now func() time.Time) *Decoder {
	d.now = now
	return d
}

// Decode computes availability, discount, tier and scaled quantities for one item
func (d *Decoder) Decode(in Input) Result {
	factor := in.Factor
	if factor.LessThanOrEqual(decimal.Zero) {
		factor = decimal.NewFromInt(1)
	}

	res := Result{
		AttributeIDs:   ParseAttributes(in.Attributes),
		AvailableDate:  noAvailDate,
		AvailableNow:   d.availableNow,
		UnitPrice:      nonNegative(in.Price.Mul(factor)).Round(priceDigits),
		WholesalePrice: nonNegative(in.WholesalePrice.Mul(factor)).Round(priceDigits),
		StockQuantity:  nonNegative(in.Stock.Div(factor)).Round(priceDigits),
	}

	inProduction := false
	for _, id := range res.AttributeIDs {
		if pct, ok := d.tables.Discounts[id]; ok && pct > res.DiscountPercent {
			res.DiscountPercent = pct
		}
		if d.tables.InProductionCode != 0 && id == d.tables.InProductionCode {
			inProduction = true
		}
		if d.tables.HomeCode != 0 && id == d.tables.HomeCode {
			res.Featured = true
		}
		// last match wins
		for i := range d.tables.ShippingTiers {
			if d.tables.ShippingTiers[i].Code == id {
				tier := d.tables.ShippingTiers[i]
				res.ShippingTier = &tier
			}
		}
	}

	switch {
	case inProduction:
		res.Availability = Backorder
		res.StockQuantity = decimal.Zero
		res.AvailableNow = ""
		res.AvailableLater = d.tables.InProductionLabel
		res.AvailableDate = d.now().AddDate(0, 0, d.tables.InProductionDays).Format("2006-01-02")
	case res.StockQuantity.GreaterThan(decimal.Zero):
		res.Availability = Available
	default:
		res.Availability = OutOfStock
	}
	res.OutOfStock = d.policyFor(res.Availability)

	reduction := decimal.NewFromInt(int64(100 - res.DiscountPercent)).Div(decimal.NewFromInt(100))
	res.QuotedPrice = res.UnitPrice.Mul(reduction).Round(priceDigits)

	return res
}

func (d *Decoder) policyFor(a Availability) OutOfStockPolicy {
	if v, ok := d.tables.OutOfStockPolicy[string(a)]; ok {
		return OutOfStockPolicy(v)
	}
	return DenyOrders
}

func nonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
