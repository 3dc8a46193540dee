// Package discovery enumerates the endpoint surface of the client API. The
// client serves one of three documentation formats depending on its version,
// so discovery walks an ordered fallback chain and succeeds on the first
// format that parses.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

const (
	// OpenAPIV3Path serves the current machine-readable schema.
	OpenAPIV3Path = "/swagger/v3/openapi.json"
	// SwaggerV2Path serves the legacy schema on older client builds.
	SwaggerV2Path = "/swagger/v2/swagger.json"
	// HelpPath serves a human-oriented listing, scraped as a last resort.
	HelpPath = "/help"
)

// Error reports that every discovery strategy failed. It names each source
// attempted so the failure chain is not swallowed.
type Error struct {
	Attempted []string
	Last      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to discover endpoints via %s: %v",
		strings.Join(e.Attempted, ", "), e.Last)
}

func (e *Error) Unwrap() error { return e.Last }

// Client discovers endpoints from a live connection.
type Client struct {
	http    *http.Client
	baseURL string
	log     logger.Logger
}

// New creates a discovery client. httpClient must already be authenticated.
func New(httpClient *http.Client, baseURL string, log logger.Logger) *Client {
	return &Client{http: httpClient, baseURL: baseURL, log: log}
}

// Discover tries each strategy in order and returns the first full success.
// The endpoint set is deduplicated and sorted by (method, path).
func (c *Client) Discover(ctx context.Context) ([]endpoint.Endpoint, error) {
	strategies := []struct {
		source string
		fn     func(context.Context) ([]endpoint.Endpoint, error)
	}{
		{OpenAPIV3Path, c.fromOpenAPIV3},
		{SwaggerV2Path, c.fromSwaggerV2},
		{HelpPath, c.fromHelp},
	}

	var attempted []string
	var lastErr error
	for _, s := range strategies {
		eps, err := s.fn(ctx)
		if err == nil {
			c.log.Debug("endpoint discovery succeeded", "source", s.source, "endpoints", len(eps))
			eps = endpoint.Dedupe(eps)
			endpoint.Sort(eps)
			return eps, nil
		}
		c.log.Debug("discovery strategy failed", "source", s.source, "error", err)
		attempted = append(attempted, s.source)
		lastErr = err
	}
	return nil, &Error{Attempted: attempted, Last: lastErr}
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) fromOpenAPIV3(ctx context.Context) ([]endpoint.Endpoint, error) {
	body, err := c.fetch(ctx, OpenAPIV3Path)
	if err != nil {
		return nil, err
	}
	doc, err := openapi3.NewLoader().LoadFromData(body)
	if err != nil {
		return nil, fmt.Errorf("parse openapi v3 document: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("openapi v3 document has no paths")
	}
	var eps []endpoint.Endpoint
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			if endpoint.SupportedMethod(method) {
				eps = append(eps, endpoint.New(method, path))
			}
		}
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("openapi v3 document lists no supported operations")
	}
	return eps, nil
}

func (c *Client) fromSwaggerV2(ctx context.Context) ([]endpoint.Endpoint, error) {
	body, err := c.fetch(ctx, SwaggerV2Path)
	if err != nil {
		return nil, err
	}
	var doc openapi2.T
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse swagger v2 document: %w", err)
	}
	if len(doc.Paths) == 0 {
		return nil, fmt.Errorf("swagger v2 document has no paths")
	}
	var eps []endpoint.Endpoint
	for path, item := range doc.Paths {
		if item == nil {
			continue
		}
		for method := range item.Operations() {
			if endpoint.SupportedMethod(method) {
				eps = append(eps, endpoint.New(method, path))
			}
		}
	}
	if len(eps) == 0 {
		return nil, fmt.Errorf("swagger v2 document lists no supported operations")
	}
	return eps, nil
}

var helpLineRe = regexp.MustCompile(`\b(GET|POST|PUT|PATCH|DELETE)\s+(/[^\s<'"]+)`)

// fromHelp scrapes "METHOD /path" pairs out of the free-text help page.
func (c *Client) fromHelp(ctx context.Context) ([]endpoint.Endpoint, error) {
	body, err := c.fetch(ctx, HelpPath)
	if err != nil {
		return nil, err
	}
	var eps []endpoint.Endpoint
	for _, m := range helpLineRe.FindAllStringSubmatch(string(body), -1) {
		eps = append(eps, endpoint.New(m[1], m[2]))
	}
	eps = endpoint.Dedupe(eps)
	if len(eps) == 0 {
		return nil, fmt.Errorf("no endpoints recognized in %s output", HelpPath)
	}
	return eps, nil
}
