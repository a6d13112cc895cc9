// Package prestashop is a small client for the PrestaShop webservice API.
// Writes are XML documents, reads use the JSON output format.
package prestashop

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/xelth-com/arcasync/internal/config"
	"github.com/xelth-com/arcasync/internal/metrics"
	"golang.org/x/time/rate"
)

// Client represents a PrestaShop webservice client
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a client authenticated with the webservice key
func NewClient(cfg config.PrestaShopConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetBasicAuth(cfg.APIKey, "").
		SetHeader("Content-Type", "text/xml").
		SetTimeout(timeout).
		SetDebug(cfg.Debug)
	if cfg.InsecureTLS {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{http: httpClient, limiter: limiter}
}

// do executes one call after waiting for the rate limiter
func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := c.http.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	resp, err := req.Execute(method, path)
	resource := resourceOf(path)
	if err != nil {
		metrics.RecordRemoteRequest(method, resource, 0)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	metrics.RecordRemoteRequest(method, resource, resp.StatusCode())

	if resp.StatusCode() >= http.StatusBadRequest {
		return resp, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return resp, nil
}

// List fetches a resource collection as JSON into out.
// out is usually a pointer to a struct with a slice field named after the resource.
func (c *Client) List(ctx context.Context, resource string, q *Query, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, resource, func(r *resty.Request) {
		r.SetQueryParamsFromValues(q.jsonValues())
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body(), out)
}

// Get fetches one resource as JSON into out
func (c *Client) Get(ctx context.Context, resource, id string, q *Query, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, resource+"/"+id, func(r *resty.Request) {
		r.SetQueryParamsFromValues(q.jsonValues())
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp.Body(), out)
}

// Create posts an XML document and returns the id assigned by the shop
func (c *Client) Create(ctx context.Context, resource string, body []byte) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, resource, func(r *resty.Request) {
		r.SetBody(body)
	})
	if err != nil {
		return "", err
	}
	return extractID(resp.Body())
}

// Update replaces a resource with an XML document and returns its id
func (c *Client) Update(ctx context.Context, resource, id string, body []byte) (string, error) {
	resp, err := c.do(ctx, http.MethodPut, resource+"/"+id, func(r *resty.Request) {
		r.SetBody(body)
	})
	if err != nil {
		return "", err
	}
	newID, err := extractID(resp.Body())
	if err != nil || newID == "" {
		// some modules answer PUT with an empty body
		return id, nil
	}
	return newID, nil
}

// Delete removes a resource
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	_, err := c.do(ctx, http.MethodDelete, resource+"/"+id, nil)
	return err
}

// decodeJSON tolerates the "[]" body PrestaShop returns for empty collections
func decodeJSON(body []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// extractID reads <prestashop><anything><id>N</id></anything></prestashop>
func extractID(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", errors.New("empty response body")
	}
	var doc struct {
		Inner struct {
			ID string `xml:"id"`
		} `xml:",any"`
	}
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return strings.TrimSpace(doc.Inner.ID), nil
}

// resourceOf returns the first path segment, used as a metrics label
func resourceOf(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
