package importer

import (
	"fmt"
	"sort"
	"strings"
)

// fieldMap pairs ERP customer columns with store address fields
var fieldMap = map[string]string{
	"indirizzo":     "address1",
	"localita":      "city",
	"cap":           "postcode",
	"partitaiva":    "vat_number",
	"codicefiscale": "dni",
	"firstname":     "firstname",
	"lastname":      "lastname",
	"descrizione":   "company",
}

// Difference is one mismatching field between the ERP and the store
type Difference struct {
	Field string `json:"field"`
	ERP   string `json:"erp"`
	Store string `json:"store"`
}

// Diff compares the mapped fields present on both sides, ignoring case and
// surrounding blanks. A blank value on either side counts as absent.
func Diff(erp, store map[string]string) []Difference {
	var out []Difference
	for erpField, storeField := range fieldMap {
		old, ok := erp[erpField]
		if !ok || strings.TrimSpace(old) == "" {
			continue
		}
		cur, ok := store[storeField]
		if !ok || strings.TrimSpace(cur) == "" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(old), strings.TrimSpace(cur)) {
			out = append(out, Difference{Field: erpField, ERP: old, Store: cur})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// discrepancyReport renders the alert body for a customer
func discrepancyReport(customerID, email, code string, diffs []Difference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Store customer %s (%s) differs from ERP customer %s\n\n", customerID, email, code)
	b.WriteString("Billing address:\n")
	for _, d := range diffs {
		fmt.Fprintf(&b, "  %-14s ERP: %q  store: %q\n", d.Field, d.ERP, d.Store)
	}
	return b.String()
}
