package importer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/prestashop"
)

// DocumentStore is the ERP write side used for order documents.
// *arca.Store satisfies it.
type DocumentStore interface {
	MaxDocumentNumber(ctx context.Context, docType string, year int) (int, error)
	DocumentExists(ctx context.Context, reference string) (bool, error)
	InsertHeader(ctx context.Context, h *arca.DocumentHeader) (int64, error)
	InsertLine(ctx context.Context, l *arca.DocumentLine) (int64, error)
	InsertMovement(ctx context.Context, m *arca.Movement) error
	InsertShippingFee(ctx context.Context, f *arca.ShippingFee) error
	TotalsExist(ctx context.Context, documentID int64) (bool, error)
	InsertTotals(ctx context.Context, t *arca.DocumentTotals) error
	InsertTaxGroup(ctx context.Context, g *arca.TaxGroup) error
	IsFictitious(ctx context.Context, code string) (bool, error)
	WithTriggerDisabled(ctx context.Context, t arca.Trigger, fn func() error) error
}

// DocumentCounter hands out document numbers for one run. It is seeded once
// from the ERP and never shared between runs.
type DocumentCounter struct {
	last int
}

// NewDocumentCounter reads the highest order number of the fiscal year
func NewDocumentCounter(ctx context.Context, store DocumentStore, year int) (*DocumentCounter, error) {
	last, err := store.MaxDocumentNumber(ctx, arca.DocumentType, year)
	if err != nil {
		return nil, err
	}
	return &DocumentCounter{last: last}, nil
}

// Next returns the next document number
func (c *DocumentCounter) Next() int {
	c.last++
	return c.last
}

// Order is a store order with the messages attached to it
type Order struct {
	prestashop.Order
	Messages []string
}

// Composer writes an order as an ERP customer order document:
// header, lines with warehouse movements, shipping fee, totals and VAT groups.
type Composer struct {
	store   DocumentStore
	shop    Shop
	cfg     config.DocumentsConfig
	counter *DocumentCounter
	vatRate decimal.Decimal
	units   map[string]string
	now     func() time.Time
}

// NewComposer creates a composer bound to the run's document counter
func NewComposer(store DocumentStore, shop Shop, cfg config.DocumentsConfig, counter *DocumentCounter) *Composer {
	rate, err := decimal.NewFromString(strings.TrimSpace(cfg.VATRate))
	if err != nil || rate.IsZero() {
		rate = decimal.NewFromInt(22)
	}
	return &Composer{
		store:   store,
		shop:    shop,
		cfg:     cfg,
		counter: counter,
		vatRate: rate,
		units:   make(map[string]string),
		now:     time.Now,
	}
}

// Compose creates the document of an order unless one already references it.
// It reports whether a document was written.
func (c *Composer) Compose(ctx context.Context, customerCode string, order *Order) (bool, error) {
	exists, err := c.store.DocumentExists(ctx, order.Reference)
	if err != nil {
		return false, err
	}
	if exists {
		log.Printf("⏭️  Document already exists for order %s", order.Reference)
		return false, nil
	}

	now := c.now()
	year := now.Year()
	rows := order.Associations.OrderRows
	shipping := order.TotalShippingTaxExcl
	hasShipping := shipping.IsPositive()

	header := &arca.DocumentHeader{
		Number:       c.counter.Next(),
		Date:         now,
		Year:         year,
		CustomerCode: customerCode,
		PaymentCode:  paymentCode(order.Payment),
		BankAccount:  c.cfg.ContoBanca,
		RetailList:   c.cfg.ListinoCliente,
		AdvancedList: c.cfg.ListinoAvanzato,
		Agent:        c.cfg.Agent,
		GoodsLines:   len(rows),
		Deposit:      order.TotalPaid,
		Reference:    order.Reference,
	}
	if hasShipping {
		header.FeeLines = 1
	}
	if len(order.Messages) > 0 {
		header.FooterNote = order.Messages[0]
	}

	docID, err := c.store.InsertHeader(ctx, header)
	if err != nil {
		return false, fmt.Errorf("failed to create document for order %s: %w", order.Reference, err)
	}
	log.Printf("📄 Document %d (no. %d) created for order %s", docID, header.Number, order.Reference)

	taxable := decimal.Zero
	groups := newTaxGroups()

	for i, row := range rows {
		total := row.UnitPriceTaxExcl.Mul(row.ProductQuantity)
		line := &arca.DocumentLine{
			DocumentID:   docID,
			Number:       header.Number,
			Date:         now,
			Year:         year,
			CustomerCode: customerCode,
			Row:          i + 1,
			ItemCode:     row.ProductReference,
			Description:  row.ProductName,
			Unit:         c.unitOf(ctx, row.ProductID.String()),
			RevenueAcct:  c.cfg.ContoRicavo,
			TaxCode:      c.cfg.Aliquota,
			Quantity:     row.ProductQuantity,
			UnitPrice:    row.UnitPriceTaxExcl,
			Total:        total,
		}
		if err := c.writeLine(ctx, line); err != nil {
			return true, err
		}
		taxable = taxable.Add(total)
		groups.add(c.cfg.ContoRicavo, total)
	}

	if hasShipping {
		fee := &arca.ShippingFee{
			DocumentID: docID,
			Date:       now,
			TaxCode:    c.cfg.Aliquota,
			Account:    c.cfg.ContoSpedizione,
			Amount:     shipping,
		}
		err := c.store.WithTriggerDisabled(ctx, arca.TriggerShippingFee, func() error {
			return c.store.InsertShippingFee(ctx, fee)
		})
		if err != nil {
			return true, fmt.Errorf("failed to write shipping fee of order %s: %w", order.Reference, err)
		}
		taxable = taxable.Add(shipping)
		groups.add(c.cfg.ContoSpedizione, shipping)
	}

	if err := c.writeTotals(ctx, docID, taxable, shipping, groups); err != nil {
		return true, fmt.Errorf("failed to write totals of order %s: %w", order.Reference, err)
	}
	return true, nil
}

func (c *Composer) writeLine(ctx context.Context, line *arca.DocumentLine) error {
	var lineID int64
	err := c.store.WithTriggerDisabled(ctx, arca.TriggerDocumentLine, func() error {
		var err error
		lineID, err = c.store.InsertLine(ctx, line)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write line %d (%s): %w", line.Row, line.ItemCode, err)
	}

	fictitious, err := c.store.IsFictitious(ctx, line.ItemCode)
	if err != nil {
		return err
	}
	if fictitious || lineID == 0 {
		return nil
	}

	mov := &arca.Movement{
		LineID:   lineID,
		Date:     line.Date,
		Year:     line.Year,
		ItemCode: line.ItemCode,
		Quantity: line.Quantity,
		Value:    line.UnitPrice,
	}
	err = c.store.WithTriggerDisabled(ctx, arca.TriggerMovement, func() error {
		return c.store.InsertMovement(ctx, mov)
	})
	if err != nil {
		return fmt.Errorf("failed to write movement of %s: %w", line.ItemCode, err)
	}
	return nil
}

func (c *Composer) writeTotals(ctx context.Context, docID int64, taxable, shipping decimal.Decimal, groups *taxGroups) error {
	exists, err := c.store.TotalsExist(ctx, docID)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("⚠️  Totals already present for document %d, skipping", docID)
		return nil
	}

	tax := c.tax(taxable)
	totals := &arca.DocumentTotals{
		DocumentID: docID,
		Taxable:    taxable.Round(2),
		Tax:        tax.Round(2),
		Total:      taxable.Add(tax).Round(2),
		GoodsGross: taxable.Round(2),
		Shipping:   shipping.Round(2),
	}
	if err := c.store.InsertTotals(ctx, totals); err != nil {
		return err
	}

	for _, account := range groups.order {
		amount := groups.sums[account]
		err := c.store.InsertTaxGroup(ctx, &arca.TaxGroup{
			DocumentID: docID,
			TaxCode:    c.cfg.Aliquota,
			TaxRate:    c.cfg.AliquotaDecimale,
			Account:    account,
			Taxable:    amount.Round(2),
			Tax:        c.tax(amount).Round(2),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) tax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.vatRate).Div(decimal.NewFromInt(100))
}

// unitOf returns the selling unit of a store product, blank when unknown
func (c *Composer) unitOf(ctx context.Context, productID string) string {
	if unit, ok := c.units[productID]; ok {
		return unit
	}
	var resp struct {
		Product prestashop.ProductRecord `json:"product"`
	}
	if err := c.shop.Get(ctx, "products", productID, nil, &resp); err != nil {
		log.Printf("⚠️  Unit of product %s unavailable: %v", productID, err)
		return ""
	}
	c.units[productID] = resp.Product.Unity
	return resp.Product.Unity
}

// paymentCode maps the store payment module to the ERP payment terms
func paymentCode(payment string) string {
	if payment == "Bonifico bancario" {
		return "0102"
	}
	return "0057"
}

// taxGroups sums taxable amounts per revenue account in first-seen order
type taxGroups struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newTaxGroups() *taxGroups {
	return &taxGroups{sums: map[string]decimal.Decimal{}}
}

func (g *taxGroups) add(account string, amount decimal.Decimal) {
	if _, ok := g.sums[account]; !ok {
		g.order = append(g.order, account)
	}
	g.sums[account] = g.sums[account].Add(amount)
}
