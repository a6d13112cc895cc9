package sync

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/xelth-com/arcasync/internal/arca"
	"github.com/xelth-com/arcasync/internal/prestashop"
)

// fakeShop is an in-memory store webservice
type fakeShop struct {
	nextID        int
	products      map[string]*prestashop.Product
	categories    map[string]*prestashop.Category
	manufacturers map[string]*prestashop.Manufacturer
	stocks        map[string]*prestashop.StockAvailable // by product id
	prices        map[string]*prestashop.SpecificPrice
	images        map[string][]string

	listErr   map[string]error
	failWrite map[string]bool // reference or name whose create/update fails
	noStock   map[string]bool // reference created without a stock record
	ops       []string
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		nextID:        100,
		products:      map[string]*prestashop.Product{},
		categories:    map[string]*prestashop.Category{},
		manufacturers: map[string]*prestashop.Manufacturer{},
		stocks:        map[string]*prestashop.StockAvailable{},
		prices:        map[string]*prestashop.SpecificPrice{},
		images:        map[string][]string{},
		listErr:       map[string]error{},
		failWrite:     map[string]bool{},
		noStock:       map[string]bool{},
	}
}

func (f *fakeShop) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *fakeShop) count(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// seedProduct adds an existing product with a stock record
func (f *fakeShop) seedProduct(id, reference string, categories ...string) {
	p := &prestashop.Product{ID: id, Reference: reference, IDCategoryDefault: "2"}
	if len(categories) > 0 {
		p.IDCategoryDefault = categories[0]
	}
	p.SetCategories(categories)
	f.products[id] = p
	f.stocks[id] = &prestashop.StockAvailable{ID: "s" + id, IDProduct: id, Quantity: "0"}
}

func (f *fakeShop) state() string {
	b, _ := json.Marshal([]interface{}{f.products, f.categories, f.manufacturers, f.stocks, f.prices, f.images})
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}

func langText(l prestashop.LangField) string {
	if len(l.Languages) == 0 {
		return ""
	}
	return l.Languages[0].Value
}

func (f *fakeShop) List(ctx context.Context, resource string, q *prestashop.Query, out interface{}) error {
	if err := f.listErr[resource]; err != nil {
		return err
	}
	var rows []map[string]interface{}
	switch resource {
	case "products":
		for _, id := range sortedKeys(f.products) {
			p := f.products[id]
			rows = append(rows, map[string]interface{}{"id": id, "reference": p.Reference, "id_category_default": p.IDCategoryDefault})
		}
	case "categories":
		for _, id := range sortedKeys(f.categories) {
			c := f.categories[id]
			rows = append(rows, map[string]interface{}{"id": id, "name": langText(c.Name), "id_parent": c.IDParent})
		}
	case "manufacturers":
		for _, id := range sortedKeys(f.manufacturers) {
			rows = append(rows, map[string]interface{}{"id": id, "name": f.manufacturers[id].Name})
		}
	case "stock_availables":
		if s, ok := f.stocks[q.FilterValue("id_product")]; ok {
			rows = append(rows, map[string]interface{}{"id": s.ID, "id_product": s.IDProduct, "id_product_attribute": "0"})
		}
	case "specific_prices":
		for _, id := range sortedKeys(f.prices) {
			if f.prices[id].IDProduct == q.FilterValue("id_product") {
				rows = append(rows, map[string]interface{}{"id": id})
			}
		}
	default:
		return fmt.Errorf("unexpected list of %s", resource)
	}
	if len(rows) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string]interface{}{resource: rows})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (f *fakeShop) Get(ctx context.Context, resource, id string, q *prestashop.Query, out interface{}) error {
	p, ok := f.products[id]
	if resource != "products" || !ok {
		return &prestashop.APIError{Method: "GET", Path: resource + "/" + id, StatusCode: 404}
	}
	var cats []map[string]string
	if p.Associations != nil {
		for _, c := range p.Associations.Categories.Category {
			cats = append(cats, map[string]string{"id": c.ID})
		}
	}
	body, _ := json.Marshal(map[string]interface{}{"product": map[string]interface{}{
		"id":                  id,
		"reference":           p.Reference,
		"id_category_default": p.IDCategoryDefault,
		"associations":        map[string]interface{}{"categories": cats},
	}})
	return json.Unmarshal(body, out)
}

func (f *fakeShop) decode(body []byte) (*prestashop.Document, error) {
	var doc prestashop.Document
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (f *fakeShop) Create(ctx context.Context, resource string, body []byte) (string, error) {
	doc, err := f.decode(body)
	if err != nil {
		return "", err
	}
	f.ops = append(f.ops, "create "+resource)
	id := f.newID()
	switch resource {
	case "products":
		if f.failWrite[doc.Product.Reference] {
			return "", &prestashop.APIError{Method: "POST", Path: resource, StatusCode: 500, Body: "<error/>"}
		}
		doc.Product.ID = id
		f.products[id] = doc.Product
		if !f.noStock[doc.Product.Reference] {
			f.stocks[id] = &prestashop.StockAvailable{ID: "s" + id, IDProduct: id, Quantity: "0"}
		}
	case "categories":
		if f.failWrite[langText(doc.Category.Name)] {
			return "", errors.New("category rejected")
		}
		doc.Category.ID = id
		f.categories[id] = doc.Category
	case "manufacturers":
		doc.Manufacturer.ID = id
		f.manufacturers[id] = doc.Manufacturer
	case "specific_prices":
		doc.SpecificPrice.ID = id
		f.prices[id] = doc.SpecificPrice
	default:
		return "", fmt.Errorf("unexpected create of %s", resource)
	}
	return id, nil
}

func (f *fakeShop) Update(ctx context.Context, resource, id string, body []byte) (string, error) {
	doc, err := f.decode(body)
	if err != nil {
		return "", err
	}
	f.ops = append(f.ops, "update "+resource)
	switch resource {
	case "products":
		if f.failWrite[doc.Product.Reference] {
			return "", &prestashop.APIError{Method: "PUT", Path: resource + "/" + id, StatusCode: 500}
		}
		f.products[id] = doc.Product
	case "categories":
		f.categories[id] = doc.Category
	case "manufacturers":
		f.manufacturers[id] = doc.Manufacturer
	case "stock_availables":
		s := doc.StockAvailable
		f.stocks[s.IDProduct] = s
	case "specific_prices":
		f.prices[id] = doc.SpecificPrice
	default:
		return "", fmt.Errorf("unexpected update of %s", resource)
	}
	return id, nil
}

func (f *fakeShop) Delete(ctx context.Context, resource, id string) error {
	f.ops = append(f.ops, "delete "+resource)
	switch resource {
	case "products":
		delete(f.products, id)
		delete(f.stocks, id)
	case "categories":
		delete(f.categories, id)
	case "manufacturers":
		delete(f.manufacturers, id)
	case "specific_prices":
		delete(f.prices, id)
	}
	return nil
}

func (f *fakeShop) ListImages(ctx context.Context, productID string) ([]string, error) {
	return f.images[productID], nil
}

func (f *fakeShop) DeleteImage(ctx context.Context, productID, imageID string) error {
	f.ops = append(f.ops, "delete images")
	var kept []string
	for _, id := range f.images[productID] {
		if id != imageID {
			kept = append(kept, id)
		}
	}
	f.images[productID] = kept
	return nil
}

func (f *fakeShop) UploadImage(ctx context.Context, productID, filename string, data []byte) error {
	f.ops = append(f.ops, "upload "+filename)
	f.images[productID] = append(f.images[productID], filename)
	return nil
}

type fakeImages map[string][]arca.Image

func (f fakeImages) ProductImages(ctx context.Context, code string) ([]arca.Image, error) {
	return f[code], nil
}
