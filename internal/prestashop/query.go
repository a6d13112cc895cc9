package prestashop

import (
	"net/url"
	"strings"
)

// Query holds the webservice list parameters (display, filter[...], sort, limit)
type Query struct {
	values url.Values
}

// NewQuery returns an empty query
func NewQuery() *Query {
	return &Query{values: url.Values{}}
}

// Display selects the returned fields: Display("id", "reference") -> display=[id,reference].
// Display("full") returns every field.
func (q *Query) Display(fields ...string) *Query {
	if len(fields) == 1 && fields[0] == "full" {
		q.values.Set("display", "full")
		return q
	}
	q.values.Set("display", "["+strings.Join(fields, ",")+"]")
	return q
}

// Filter adds an equality filter on a top-level field
func (q *Query) Filter(field, value string) *Query {
	q.values.Set("filter["+field+"]", "["+value+"]")
	return q
}

// FilterValue returns the value of a filter set with Filter, or ""
func (q *Query) FilterValue(field string) string {
	if q == nil {
		return ""
	}
	return strings.Trim(q.values.Get("filter["+field+"]"), "[]")
}

// Set adds an arbitrary parameter
func (q *Query) Set(key, value string) *Query {
	q.values.Set(key, value)
	return q
}

// jsonValues returns a copy of the parameters with output_format=JSON
func (q *Query) jsonValues() url.Values {
	out := url.Values{}
	if q != nil {
		for k, v := range q.values {
			out[k] = append([]string(nil), v...)
		}
	}
	out.Set("output_format", "JSON")
	return out
}
