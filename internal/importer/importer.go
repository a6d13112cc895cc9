// Package importer brings store customers and their orders into the ERP.
package importer

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/notify"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/sync"
)

const (
	opCustomer sync.Op = "customer"
	opDocument sync.Op = "document"

	cancelledTemplate = "order_canceled"
)

var fprCode = regexp.MustCompile(`^[a-zA-Z0-9]{7}$`)

// Shop is the read side of the store webservice. *prestashop.Client satisfies it.
type Shop interface {
	List(ctx context.Context, resource string, q *prestashop.Query, out interface{}) error
	Get(ctx context.Context, resource, id string, q *prestashop.Query, out interface{}) error
}

// ERP is the customer and document side of the ERP. *arca.Store satisfies it.
type ERP interface {
	DocumentStore
	CustomerNumberSource
	FindCustomerByTaxID(ctx context.Context, taxID string) (*arca.Customer, error)
	InsertCustomer(ctx context.Context, c *arca.NewCustomer) error
	ContactExists(ctx context.Context, c arca.Contact) (bool, error)
	InsertContact(ctx context.Context, c arca.Contact) error
}

// Importer runs the customer/order import
type Importer struct {
	erp      ERP
	shop     Shop
	notifier notify.Notifier
	shopCfg  config.PrestaShopConfig
	docCfg   config.DocumentsConfig
	now      func() time.Time
}

// New creates an importer
func New(erp ERP, shop Shop, notifier notify.Notifier, shopCfg config.PrestaShopConfig, docCfg config.DocumentsConfig) *Importer {
	return &Importer{
		erp:      erp,
		shop:     shop,
		notifier: notifier,
		shopCfg:  shopCfg,
		docCfg:   docCfg,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (im *Importer) WithClock(now func() time.Time) *Importer {
	im.now = now
	return im
}

// run holds the per-run state threaded through the import
type run struct {
	codes     *CodeAllocator
	composer  *Composer
	cancelled map[string]bool
	res       *sync.Result
}

// Run imports every store customer with at least one live order.
// A failure to list customers or to seed the document counter ends the run;
// any other failure is recorded against its customer or order.
func (im *Importer) Run(ctx context.Context, obs sync.Observer) (*sync.Result, error) {
	res := sync.NewResult("customers", obs)
	logger := res.Logger()

	counter, err := NewDocumentCounter(ctx, im.erp, im.now().Year())
	if err != nil {
		return res, fmt.Errorf("failed to seed document counter: %w", err)
	}
	composer := NewComposer(im.erp, im.shop, im.docCfg, counter)
	composer.now = im.now

	var resp struct {
		Customers []prestashop.Customer `json:"customers"`
	}
	q := prestashop.NewQuery().Display("id", "firstname", "lastname", "email", "company")
	if err := im.shop.List(ctx, "customers", q, &resp); err != nil {
		return res, fmt.Errorf("failed to fetch customers: %w", err)
	}
	logger.Printf("📦 Importing %d store customers", len(resp.Customers))

	r := &run{
		codes:     NewCodeAllocator(im.erp),
		composer:  composer,
		cancelled: im.cancelledStates(ctx),
		res:       res,
	}

	for _, customer := range resp.Customers {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		err := sync.Safely(func() error { return im.importCustomer(ctx, r, customer) })
		if err != nil {
			res.Fail(customer.ID.String(), opCustomer, err)
			continue
		}
		res.Processed = append(res.Processed, customer.ID.String())
	}

	logger.Printf("✅ Import finished: %d documents, %d new customers, %d skipped, %d failed",
		res.Created, res.Extra["customersCreated"], res.Skipped, res.Failed)
	return res, nil
}

func (im *Importer) importCustomer(ctx context.Context, r *run, customer prestashop.Customer) error {
	logger := r.res.Logger()
	id := customer.ID.String()

	orders, err := im.liveOrders(ctx, r, id)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		r.res.Skipped++
		return nil
	}

	latest := orders[len(orders)-1]
	billing, err := im.address(ctx, latest.IDAddressInvoice.String())
	if err != nil {
		return err
	}

	taxID := strings.ToUpper(strings.TrimSpace(billing.DNI))
	if taxID == "" {
		logger.Printf("⚠️  Customer %s has no tax id on order %s, skipping", id, latest.Reference)
		r.res.Skipped++
		return nil
	}

	code, err := im.resolveCustomer(ctx, r, customer, billing, taxID)
	if err != nil {
		return err
	}

	for i := range orders {
		order := &Order{Order: orders[i]}
		order.Messages = im.messages(ctx, order.ID.String())
		var created bool
		err := sync.Safely(func() (err error) {
			created, err = r.composer.Compose(ctx, code, order)
			return err
		})
		if err != nil {
			r.res.Fail(order.Reference, opDocument, err)
			continue
		}
		if created {
			r.res.Created++
			r.res.Succeeded(opDocument)
		} else {
			r.res.Skipped++
		}
	}
	return nil
}

// resolveCustomer returns the ERP code of the customer, creating the
// customer when the tax id is unknown.
func (im *Importer) resolveCustomer(ctx context.Context, r *run, customer prestashop.Customer, billing *prestashop.Address, taxID string) (string, error) {
	logger := r.res.Logger()

	existing, err := im.erp.FindCustomerByTaxID(ctx, taxID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		r.res.Count("customersMatched")
		if diffs := Diff(existing.Fields(), billing.Fields()); len(diffs) > 0 {
			r.res.Count("discrepancies")
			logger.Printf("⚠️  Customer %s differs from ERP %s on %d fields", customer.ID, existing.Code, len(diffs))
			im.notifier.Notify(
				fmt.Sprintf("Customer data discrepancy: %s", existing.Code),
				discrepancyReport(customer.ID.String(), customer.Email, existing.Code, diffs),
			)
		}
		return existing.Code, nil
	}

	code, err := r.codes.Next(ctx)
	if err != nil {
		return "", err
	}

	nc := im.newCustomer(ctx, code, customer, billing, taxID)
	if err := im.erp.InsertCustomer(ctx, nc); err != nil {
		return "", fmt.Errorf("failed to create customer %s: %w", code, err)
	}
	r.codes.Commit(code)
	r.res.Count("customersCreated")
	r.res.Succeeded(opCustomer)
	logger.Printf("👤 Created ERP customer %s for store customer %s", code, customer.ID)

	contact := arca.Contact{
		CustomerCode: code,
		TypeID:       1,
		Name:         "Aziendale",
		Sequence:     1,
		Phone:        billing.Phone,
		Email:        customer.Email,
	}
	exists, err := im.erp.ContactExists(ctx, contact)
	if err != nil {
		return "", err
	}
	if exists {
		logger.Printf("⏭️  Contact already present for %s", code)
	} else if err := im.erp.InsertContact(ctx, contact); err != nil {
		return "", fmt.Errorf("failed to create contact of %s: %w", code, err)
	}
	return code, nil
}

func (im *Importer) newCustomer(ctx context.Context, code string, customer prestashop.Customer, billing *prestashop.Address, taxID string) *arca.NewCustomer {
	name := strings.TrimSpace(billing.Company)
	if name == "" {
		name = strings.TrimSpace(customer.Company)
	}
	if name == "" {
		name = strings.TrimSpace(customer.Firstname + " " + customer.Lastname)
	}

	companyType := "F"
	if strings.TrimSpace(billing.VATNumber) != "" {
		companyType = "G"
	}

	nc := &arca.NewCustomer{
		Code:        code,
		Description: strings.ToUpper(name),
		Address:     strings.ToUpper(billing.Address1),
		City:        strings.ToUpper(billing.City),
		PostCode:    billing.Postcode,
		Province:    im.isoCode(ctx, "states", billing.IDState.String(), ""),
		Country:     im.isoCode(ctx, "countries", billing.IDCountry.String(), "IT"),
		VATNumber:   billing.VATNumber,
		TaxID:       taxID,
		CompanyType: companyType,
		Note:        "Importato da: " + im.docCfg.AppName,
	}
	if fpr := validFPR(billing.Address2); fpr != "" {
		nc.FPRCode = &fpr
	}
	return nc
}

// validFPR returns the e-invoicing recipient code when address2 holds one:
// seven alphanumerics or a certified mail address.
func validFPR(value string) string {
	value = strings.TrimSpace(value)
	if fprCode.MatchString(value) {
		return strings.ToUpper(value)
	}
	if addr, err := mail.ParseAddress(value); err == nil && addr.Address == value {
		return strings.ToUpper(value)
	}
	return ""
}

// liveOrders returns the non-cancelled orders of a customer, oldest first
func (im *Importer) liveOrders(ctx context.Context, r *run, customerID string) ([]prestashop.Order, error) {
	var list struct {
		Orders []prestashop.Order `json:"orders"`
	}
	q := prestashop.NewQuery().Display("id", "current_state", "reference").Filter("id_customer", customerID)
	if err := im.shop.List(ctx, "orders", q, &list); err != nil {
		return nil, fmt.Errorf("failed to fetch orders of customer %s: %w", customerID, err)
	}

	var live []prestashop.Order
	for _, o := range list.Orders {
		if r.cancelled[o.CurrentState.String()] {
			continue
		}
		var detail struct {
			Order prestashop.Order `json:"order"`
		}
		if err := im.shop.Get(ctx, "orders", o.ID.String(), nil, &detail); err != nil {
			return nil, fmt.Errorf("failed to fetch order %s: %w", o.ID, err)
		}
		live = append(live, detail.Order)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID.Int() < live[j].ID.Int() })
	return live, nil
}

func (im *Importer) address(ctx context.Context, id string) (*prestashop.Address, error) {
	var resp struct {
		Address prestashop.Address `json:"address"`
	}
	if err := im.shop.Get(ctx, "addresses", id, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch address %s: %w", id, err)
	}
	return &resp.Address, nil
}

// messages returns the texts of the threads attached to an order.
// They only feed the document footer, so lookup failures are logged and ignored.
func (im *Importer) messages(ctx context.Context, orderID string) []string {
	var threads struct {
		CustomerThreads []prestashop.CustomerThread `json:"customer_threads"`
	}
	q := prestashop.NewQuery().Display("full").Filter("id_order", orderID)
	if err := im.shop.List(ctx, "customer_threads", q, &threads); err != nil {
		return nil
	}

	var out []string
	for _, t := range threads.CustomerThreads {
		for _, ref := range t.Associations.CustomerMessages {
			var msg struct {
				CustomerMessage prestashop.CustomerMessage `json:"customer_message"`
			}
			if err := im.shop.Get(ctx, "customer_messages", ref.ID.String(), nil, &msg); err != nil {
				continue
			}
			if text := strings.TrimSpace(msg.CustomerMessage.Message); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

// isoCode resolves the ISO code of a country or state, fallback when unknown
func (im *Importer) isoCode(ctx context.Context, resource, id, fallback string) string {
	if id == "" || id == "0" {
		return fallback
	}
	var resp struct {
		Country prestashop.Country `json:"country"`
		State   prestashop.State   `json:"state"`
	}
	if err := im.shop.Get(ctx, resource, id, nil, &resp); err != nil {
		return fallback
	}
	code := resp.Country.ISOCode
	if resource == "states" {
		code = resp.State.ISOCode
	}
	if code == "" {
		return fallback
	}
	return code
}

// cancelledStates merges the configured ids with the states using the
// cancellation mail template.
func (im *Importer) cancelledStates(ctx context.Context) map[string]bool {
	states := make(map[string]bool)
	for _, id := range im.shopCfg.CancelledStates {
		states[id] = true
	}

	var resp struct {
		OrderStates []prestashop.OrderState `json:"order_states"`
	}
	q := prestashop.NewQuery().Display("id", "name", "template")
	if err := im.shop.List(ctx, "order_states", q, &resp); err != nil {
		return states
	}
	for _, s := range resp.OrderStates {
		if s.Template.String() == cancelledTemplate {
			states[s.ID.String()] = true
		}
	}
	return states
}
