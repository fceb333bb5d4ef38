// Package gbif resolves taxonomic names against the GBIF backbone so imported
// records carry canonical species names.
package gbif

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMinConfidence is the match confidence below which a backbone result
// is ignored and the verbatim name kept.
const DefaultMinConfidence = 85

const defaultBaseURL = "https://api.gbif.org/v1"

// SpeciesResolver canonicalizes a scientific name. Implementations return the
// input name unchanged when no confident match exists, and empty for
// placeholder values.
type SpeciesResolver interface {
	Resolve(ctx context.Context, name string) string
}

// Client resolves names via the GBIF species match API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	minConfidence int

	cache map[string]string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host, typically a test
// server.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithMinConfidence overrides the match confidence threshold.
func WithMinConfidence(min int) ClientOption {
	return func(c *Client) {
		if min > 0 {
			c.minConfidence = min
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient builds a GBIF client with an in-process cache. The cache is not
// synchronized; the import pipeline resolves names sequentially.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       defaultBaseURL,
		minConfidence: DefaultMinConfidence,
		cache:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var placeholderNames = map[string]bool{
	"na":      true,
	"n/a":     true,
	"none":    true,
	"unknown": true,
}

type matchResponse struct {
	Confidence       int    `json:"confidence"`
	Status           string `json:"status"`
	CanonicalName    string `json:"canonicalName"`
	AcceptedUsageKey int64  `json:"acceptedUsageKey"`
}

type usageResponse struct {
	CanonicalName string `json:"canonicalName"`
}

// Resolve returns the canonical name for a verbatim scientific name. Synonyms
// resolve to their accepted name. Lookups that fail or match below the
// confidence threshold keep the verbatim name; placeholder values yield "".
func (c *Client) Resolve(ctx context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || placeholderNames[strings.ToLower(name)] {
		return ""
	}
	if cached, ok := c.cache[name]; ok {
		return cached
	}

	resolved := c.resolve(ctx, name)
	c.cache[name] = resolved
	return resolved
}

func (c *Client) resolve(ctx context.Context, name string) string {
	var match matchResponse
	endpoint := c.baseURL + "/species/match?name=" + url.QueryEscape(name)
	if err := c.getJSON(ctx, endpoint, &match); err != nil {
		log.Printf("[GBIF] lookup failed for %q: %v", name, err)
		return name
	}

	if match.Confidence < c.minConfidence {
		log.Printf("[GBIF] no confident match for %q (confidence %d)", name, match.Confidence)
		return name
	}

	if match.Status == "SYNONYM" && match.AcceptedUsageKey != 0 {
		var usage usageResponse
		endpoint := fmt.Sprintf("%s/species/%d", c.baseURL, match.AcceptedUsageKey)
		if err := c.getJSON(ctx, endpoint, &usage); err == nil && usage.CanonicalName != "" {
			return usage.CanonicalName
		}
	}

	if match.CanonicalName != "" {
		return match.CanonicalName
	}
	return name
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gbif returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NoopResolver keeps verbatim names, mapping placeholders to "". Used when
// GBIF resolution is disabled.
type NoopResolver struct{}

func (NoopResolver) Resolve(_ context.Context, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || placeholderNames[strings.ToLower(name)] {
		return ""
	}
	return name
}
