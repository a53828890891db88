// Package places is a client for the Google Places text search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jon4hz/wayfare/internal/config"
)

// FieldMask is the fixed set of place fields requested from the API.
const FieldMask = "places.id,places.displayName,places.formattedAddress,places.rating," +
	"places.userRatingCount,places.googleMapsUri,places.photos,places.priceLevel,places.websiteUri"

// MaxResults caps the number of places per search.
const MaxResults = 10

// Client searches places by free text.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a new places client.
func New(cfg *config.PlacesConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultPlacesEndpoint
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Result is the raw upstream response.
// Body is returned unchanged so callers can pass it through.
type Result struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Details returns the upstream body as JSON when it parses, otherwise as text.
func (r *Result) Details() any {
	var v any
	if err := json.Unmarshal(r.Body, &v); err == nil {
		return v
	}
	return strings.TrimSpace(string(r.Body))
}

// TextQuery combines a query and an optional location into the search text.
func TextQuery(query, location string) string {
	query = strings.TrimSpace(query)
	location = strings.TrimSpace(location)
	if location == "" {
		return query
	}
	return query + " near " + location
}

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount"`
}

// SearchText issues a single text search. Non-2xx upstream statuses are not errors,
// only transport failures are.
func (c *Client) SearchText(ctx context.Context, text string) (*Result, error) {
	body, err := json.Marshal(searchTextRequest{TextQuery: text, MaxResultCount: MaxResults})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", FieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}
