package prestashop

import (
	"encoding/xml"
	"fmt"
)

// Document is the <prestashop> envelope of every write request
type Document struct {
	XMLName        xml.Name        `xml:"prestashop"`
	Product        *Product        `xml:"product,omitempty"`
	Category       *Category       `xml:"category,omitempty"`
	Manufacturer   *Manufacturer   `xml:"manufacturer,omitempty"`
	StockAvailable *StockAvailable `xml:"stock_available,omitempty"`
	SpecificPrice  *SpecificPrice  `xml:"specific_price,omitempty"`
}

// Marshal renders the document with the XML declaration
func (d *Document) Marshal() ([]byte, error) {
	body, err := xml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// LangValue is the text of one language
type LangValue struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

// LangField is a multilingual field
type LangField struct {
	Languages []LangValue `xml:"language"`
}

// Lang builds a field with the same text for each language id
func Lang(value string, ids ...string) LangField {
	if len(ids) == 0 {
		ids = []string{"1"}
	}
	f := LangField{Languages: make([]LangValue, 0, len(ids))}
	for _, id := range ids {
		f.Languages = append(f.Languages, LangValue{ID: id, Value: value})
	}
	return f
}

// IDElem is <tag><id>N</id></tag>
type IDElem struct {
	ID string `xml:"id"`
}

// ProductAssociations lists the categories of a product
type ProductAssociations struct {
	Categories struct {
		NodeType string   `xml:"nodeType,attr,omitempty"`
		API      string   `xml:"api,attr,omitempty"`
		Category []IDElem `xml:"category"`
	} `xml:"categories"`
}

// Product is the write model of a product
type Product struct {
	ID                     string               `xml:"id,omitempty"`
	IDManufacturer         string               `xml:"id_manufacturer,omitempty"`
	IDCategoryDefault      string               `xml:"id_category_default"`
	Reference              string               `xml:"reference"`
	Name                   LangField            `xml:"name"`
	Description            LangField            `xml:"description"`
	DescriptionShort       LangField            `xml:"description_short"`
	Price                  string               `xml:"price"`
	WholesalePrice         string               `xml:"wholesale_price"`
	IDTaxRulesGroup        string               `xml:"id_tax_rules_group"`
	UnitPriceRatio         string               `xml:"unit_price_ratio"`
	UnitPrice              string               `xml:"unit_price"`
	Unity                  string               `xml:"unity"`
	Weight                 string               `xml:"weight"`
	Depth                  string               `xml:"depth"`
	Height                 string               `xml:"height"`
	Width                  string               `xml:"width"`
	Active                 string               `xml:"active"`
	State                  string               `xml:"state"`
	ProductType            string               `xml:"product_type"`
	MinimalQuantity        string               `xml:"minimal_quantity"`
	AvailableForOrder      string               `xml:"available_for_order"`
	ShowPrice              string               `xml:"show_price"`
	Indexed                string               `xml:"indexed"`
	Visibility             string               `xml:"visibility"`
	AvailableDate          string               `xml:"available_date"`
	AvailableNow           LangField            `xml:"available_now"`
	AvailableLater         LangField            `xml:"available_later"`
	AdditionalShippingCost string               `xml:"additional_shipping_cost"`
	Associations           *ProductAssociations `xml:"associations,omitempty"`
}

// SetCategories replaces the category associations
func (p *Product) SetCategories(ids []string) {
	assoc := &ProductAssociations{}
	assoc.Categories.NodeType = "category"
	assoc.Categories.API = "categories"
	for _, id := range ids {
		assoc.Categories.Category = append(assoc.Categories.Category, IDElem{ID: id})
	}
	p.Associations = assoc
}

// Category is the write model of a category
type Category struct {
	ID              string    `xml:"id,omitempty"`
	IDParent        string    `xml:"id_parent"`
	Active          string    `xml:"active"`
	IDShopDefault   string    `xml:"id_shop_default"`
	IsRootCategory  string    `xml:"is_root_category"`
	Name            LangField `xml:"name"`
	LinkRewrite     LangField `xml:"link_rewrite"`
	Description     LangField `xml:"description"`
	MetaTitle       LangField `xml:"meta_title"`
	MetaDescription LangField `xml:"meta_description"`
	MetaKeywords    LangField `xml:"meta_keywords"`
}

// Manufacturer is the write model of a brand
type Manufacturer struct {
	ID     string `xml:"id,omitempty"`
	Active string `xml:"active"`
	Name   string `xml:"name"`
}

// StockAvailable is the write model of a stock record
type StockAvailable struct {
	ID                 string `xml:"id"`
	IDProduct          string `xml:"id_product"`
	IDProductAttribute string `xml:"id_product_attribute"`
	IDShop             string `xml:"id_shop"`
	Quantity           string `xml:"quantity"`
	DependsOnStock     string `xml:"depends_on_stock"`
	OutOfStock         string `xml:"out_of_stock"`
}

// SpecificPrice is the write model of a price reduction rule
type SpecificPrice struct {
	ID                 string `xml:"id,omitempty"`
	IDShopGroup        string `xml:"id_shop_group"`
	IDShop             string `xml:"id_shop"`
	IDCart             string `xml:"id_cart"`
	IDProduct          string `xml:"id_product"`
	IDProductAttribute string `xml:"id_product_attribute"`
	IDCurrency         string `xml:"id_currency"`
	IDCountry          string `xml:"id_country"`
	IDGroup            string `xml:"id_group"`
	IDCustomer         string `xml:"id_customer"`
	FromQuantity       string `xml:"from_quantity"`
	Price              string `xml:"price"`
	Reduction          string `xml:"reduction"`
	ReductionTax       string `xml:"reduction_tax"`
	ReductionType      string `xml:"reduction_type"`
	From               string `xml:"from"`
	To                 string `xml:"to"`
}
