package prestashop

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexString accepts JSON strings, numbers, booleans and null.
// The webservice returns ids as numbers in lists and as strings elsewhere.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		*f = FlexString(string(data))
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// Int parses the value, returning 0 when it is not a number
func (f FlexString) Int() int {
	n, _ := strconv.Atoi(strings.TrimSpace(string(f)))
	return n
}

// LangString is a multilingual field: either a plain string or
// a list of {"id": lang, "value": text}. Language 1 is preferred.
type LangString string

func (l *LangString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		var f FlexString
		if err := f.UnmarshalJSON(data); err != nil {
			return err
		}
		*l = LangString(f)
		return nil
	}

	var values []struct {
		ID    FlexString `json:"id"`
		Value string     `json:"value"`
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*l = ""
	for i, v := range values {
		if i == 0 || v.ID == "1" {
			*l = LangString(v.Value)
		}
		if v.ID == "1" {
			break
		}
	}
	return nil
}

func (l LangString) String() string { return string(l) }

// IDRef is an association entry {"id": "N"}
type IDRef struct {
	ID FlexString `json:"id"`
}

// Customer as returned by GET customers
type Customer struct {
	ID        FlexString `json:"id"`
	Firstname string     `json:"firstname"`
	Lastname  string     `json:"lastname"`
	Email     string     `json:"email"`
	Company   string     `json:"company"`
}

// OrderRow is one line of an order
type OrderRow struct {
	ID               FlexString      `json:"id"`
	ProductID        FlexString      `json:"product_id"`
	ProductReference string          `json:"product_reference"`
	ProductName      string          `json:"product_name"`
	ProductQuantity  decimal.Decimal `json:"product_quantity"`
	UnitPriceTaxExcl decimal.Decimal `json:"unit_price_tax_excl"`
}

// Order as returned by GET orders/{id}
type Order struct {
	ID                   FlexString      `json:"id"`
	IDCustomer           FlexString      `json:"id_customer"`
	IDAddressDelivery    FlexString      `json:"id_address_delivery"`
	IDAddressInvoice     FlexString      `json:"id_address_invoice"`
	CurrentState         FlexString      `json:"current_state"`
	Payment              string          `json:"payment"`
	Reference            string          `json:"reference"`
	TotalPaid            decimal.Decimal `json:"total_paid"`
	TotalShippingTaxExcl decimal.Decimal `json:"total_shipping_tax_excl"`
	Associations         struct {
		OrderRows []OrderRow `json:"order_rows"`
	} `json:"associations"`
}

// Address as returned by GET addresses/{id}
type Address struct {
	ID        FlexString `json:"id"`
	IDCountry FlexString `json:"id_country"`
	IDState   FlexString `json:"id_state"`
	Company   string     `json:"company"`
	Firstname string     `json:"firstname"`
	Lastname  string     `json:"lastname"`
	Address1  string     `json:"address1"`
	Address2  string     `json:"address2"`
	Postcode  string     `json:"postcode"`
	City      string     `json:"city"`
	Phone     string     `json:"phone"`
	VATNumber string     `json:"vat_number"`
	DNI       string     `json:"dni"`
}

// Fields returns the address as a lower-case field map, used for discrepancy checks
func (a *Address) Fields() map[string]string {
	return map[string]string{
		"company":    a.Company,
		"firstname":  a.Firstname,
		"lastname":   a.Lastname,
		"address1":   a.Address1,
		"address2":   a.Address2,
		"postcode":   a.Postcode,
		"city":       a.City,
		"phone":      a.Phone,
		"vat_number": a.VATNumber,
		"dni":        a.DNI,
	}
}

// CustomerThread groups the messages attached to an order
type CustomerThread struct {
	ID           FlexString `json:"id"`
	IDOrder      FlexString `json:"id_order"`
	Associations struct {
		CustomerMessages []IDRef `json:"customer_messages"`
	} `json:"associations"`
}

// CustomerMessage is a single message of a thread
type CustomerMessage struct {
	ID      FlexString `json:"id"`
	Message string     `json:"message"`
}

// OrderState describes an order status
type OrderState struct {
	ID       FlexString `json:"id"`
	Name     LangString `json:"name"`
	Template LangString `json:"template"`
}

// Country carries the ISO code of a country
type Country struct {
	ID      FlexString `json:"id"`
	ISOCode string     `json:"iso_code"`
}

// State is a province/region
type State struct {
	ID      FlexString `json:"id"`
	ISOCode string     `json:"iso_code"`
}

// ProductRecord is the read model of a product
type ProductRecord struct {
	ID                FlexString `json:"id"`
	Reference         string     `json:"reference"`
	Unity             string     `json:"unity"`
	IDCategoryDefault FlexString `json:"id_category_default"`
	IDManufacturer    FlexString `json:"id_manufacturer"`
	Associations      struct {
		Categories []IDRef `json:"categories"`
	} `json:"associations"`
}

// CategoryRecord is the read model of a category
type CategoryRecord struct {
	ID       FlexString `json:"id"`
	IDParent FlexString `json:"id_parent"`
	Name     LangString `json:"name"`
}

// ManufacturerRecord is the read model of a manufacturer (brand)
type ManufacturerRecord struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// StockAvailableRecord is the read model of a stock_available
type StockAvailableRecord struct {
	ID                 FlexString `json:"id"`
	IDProduct          FlexString `json:"id_product"`
	IDProductAttribute FlexString `json:"id_product_attribute"`
	Quantity           FlexString `json:"quantity"`
	OutOfStock         FlexString `json:"out_of_stock"`
}

// SpecificPriceRecord is the read model of a specific_price
type SpecificPriceRecord struct {
	ID        FlexString `json:"id"`
	IDProduct FlexString `json:"id_product"`
	Reduction FlexString `json:"reduction"`
}
