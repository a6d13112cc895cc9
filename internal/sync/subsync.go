package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xelth-com/arcasync/internal/prestashop"
	"github.com/xelth-com/arcasync/internal/snapshot"
)

// ErrNoStockRecord means the store has no stock_available row for a product
var ErrNoStockRecord = errors.New("no stock record for product")

const noDate = "0000-00-00 00:00:00"

// syncStock writes the quantity and out-of-stock policy of a product.
// The store creates stock records itself; a missing one is an error.
func syncStock(ctx context.Context, remote Remote, productID string, item *snapshot.Item) error {
	var resp struct {
		StockAvailables []prestashop.StockAvailableRecord `json:"stock_availables"`
	}
	q := prestashop.NewQuery().
		Display("id", "id_product", "id_product_attribute").
		Filter("id_product", productID).
		Filter("id_product_attribute", "0")
	if err := remote.List(ctx, "stock_availables", q, &resp); err != nil {
		return fmt.Errorf("failed to fetch stock of product %s: %w", productID, err)
	}
	if len(resp.StockAvailables) == 0 {
		return fmt.Errorf("%w %s", ErrNoStockRecord, productID)
	}

	record := resp.StockAvailables[0]
	doc := &prestashop.Document{StockAvailable: &prestashop.StockAvailable{
		ID:                 record.ID.String(),
		IDProduct:          productID,
		IDProductAttribute: "0",
		IDShop:             "1",
		Quantity:           item.StockQuantity.Round(0).String(),
		DependsOnStock:     "0",
		OutOfStock:         strconv.Itoa(item.OutOfStock),
	}}
	body, err := doc.Marshal()
	if err != nil {
		return err
	}
	if _, err := remote.Update(ctx, "stock_availables", record.ID.String(), body); err != nil {
		return fmt.Errorf("failed to update stock of product %s: %w", productID, err)
	}
	return nil
}

// syncDiscount keeps exactly one percentage rule per discounted product and
// none for the others.
func syncDiscount(ctx context.Context, remote Remote, productID string, item *snapshot.Item) error {
	var resp struct {
		SpecificPrices []prestashop.SpecificPriceRecord `json:"specific_prices"`
	}
	q := prestashop.NewQuery().Display("id").Filter("id_product", productID)
	if err := remote.List(ctx, "specific_prices", q, &resp); err != nil {
		return fmt.Errorf("failed to fetch discounts of product %s: %w", productID, err)
	}

	existing := make([]string, 0, len(resp.SpecificPrices))
	for _, sp := range resp.SpecificPrices {
		if id := sp.ID.String(); id != "" {
			existing = append(existing, id)
		}
	}

	if item.DiscountPercent <= 0 {
		var errs []error
		for _, id := range existing {
			if err := remote.Delete(ctx, "specific_prices", id); err != nil {
				errs = append(errs, fmt.Errorf("failed to delete discount %s: %w", id, err))
			}
		}
		return errors.Join(errs...)
	}

	rule := discountRule(productID, item.DiscountPercent)
	if len(existing) == 0 {
		body, err := (&prestashop.Document{SpecificPrice: rule}).Marshal()
		if err != nil {
			return err
		}
		if _, err := remote.Create(ctx, "specific_prices", body); err != nil {
			return fmt.Errorf("failed to create discount: %w", err)
		}
		return nil
	}

	rule.ID = existing[0]
	body, err := (&prestashop.Document{SpecificPrice: rule}).Marshal()
	if err != nil {
		return err
	}
	if _, err := remote.Update(ctx, "specific_prices", rule.ID, body); err != nil {
		return fmt.Errorf("failed to update discount %s: %w", rule.ID, err)
	}
	for _, id := range existing[1:] {
		if err := remote.Delete(ctx, "specific_prices", id); err != nil {
			return fmt.Errorf("failed to delete extra discount %s: %w", id, err)
		}
	}
	return nil
}

func discountRule(productID string, pct int) *prestashop.SpecificPrice {
	return &prestashop.SpecificPrice{
		IDShopGroup:        "0",
		IDShop:             "1",
		IDCart:             "0",
		IDProduct:          productID,
		IDProductAttribute: "0",
		IDCurrency:         "0",
		IDCountry:          "0",
		IDGroup:            "0",
		IDCustomer:         "0",
		FromQuantity:       "1",
		Price:              "-1",
		Reduction:          decimal.NewFromInt(int64(pct)).Div(decimal.NewFromInt(100)).StringFixed(2),
		ReductionTax:       "1",
		ReductionType:      "percentage",
		From:               noDate,
		To:                 noDate,
	}
}

// syncImages replaces the remote pictures of a product with the ERP ones
func syncImages(ctx context.Context, remote Remote, source ImageSource, productID, code string) error {
	existing, err := remote.ListImages(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to list images of product %s: %w", productID, err)
	}

	var errs []error
	for _, id := range existing {
		if err := remote.DeleteImage(ctx, productID, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete image %s: %w", id, err))
		}
	}

	images, err := source.ProductImages(ctx, code)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		name := imageFilename(code, img.Row, img.OriginalFile)
		if err := remote.UploadImage(ctx, productID, name, img.Data); err != nil {
			errs = append(errs, fmt.Errorf("failed to upload %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func imageFilename(code string, row int, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s%d%s", code, row, ext)
}
