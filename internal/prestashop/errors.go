package prestashop

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned (wrapped in *APIError) when the webservice answers 404
var ErrNotFound = errors.New("prestashop: resource not found")

// APIError is a non-2xx webservice response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prestashop %s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the webservice
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ResponseBody returns the body of an APIError for logging, or "" for other errors
func ResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
