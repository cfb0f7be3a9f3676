// Package geocode resolves booth addresses to coordinates via
// Nominatim (primary) and the Google Geocoding API (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Confidence grades how trustworthy a geocode result is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Query describes the venue to locate.
type Query struct {
	Name    string
	Address string
	City    string
	State   string
	Country string
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude   float64
	Longitude  float64
	Confidence Confidence
	MatchScore float64
	Source     string // "nominatim" or "google"
	Matched    bool
}

// Client geocodes venue queries.
type Client interface {
	Geocode(ctx context.Context, q Query) (*Result, error)
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) { g.googleKey = key }
}

// WithHTTPClient sets a custom HTTP client for all providers.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) { g.httpClient = hc }
}

// WithNominatimBaseURL overrides the Nominatim endpoint.
func WithNominatimBaseURL(url string) Option {
	return func(g *geocoder) { g.nominatimBase = strings.TrimRight(url, "/") }
}

// WithGoogleBaseURL overrides the Google endpoint, for tests.
func WithGoogleBaseURL(url string) Option {
	return func(g *geocoder) { g.googleBase = strings.TrimRight(url, "/") }
}

// WithUserAgent sets the User-Agent sent to Nominatim, which requires
// an identifying one.
func WithUserAgent(ua string) Option {
	return func(g *geocoder) { g.userAgent = ua }
}

type geocoder struct {
	httpClient    *http.Client
	nominatimBase string
	googleBase    string
	googleKey     string
	userAgent     string

	// Nominatim's usage policy caps anonymous clients at 1 req/s.
	nominatimLimiter *rate.Limiter
	googleLimiter    *rate.Limiter
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		nominatimBase:    "https://nominatim.openstreetmap.org",
		googleBase:       "https://maps.googleapis.com/maps/api/geocode",
		userAgent:        "booth-beacon-crawler/1.0",
		nominatimLimiter: rate.NewLimiter(1, 1),
		googleLimiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode tries Nominatim first, then Google when configured. A miss
// from every provider is not an error, just an unmatched result.
func (g *geocoder) Geocode(ctx context.Context, q Query) (*Result, error) {
	result, err := g.geocodeNominatim(ctx, q)
	if err == nil && result.Matched {
		return result, nil
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.geocodeGoogle(ctx, q)
		if googleErr == nil && googleResult.Matched {
			return googleResult, nil
		}
	}

	if err != nil {
		return nil, err
	}
	return &Result{Matched: false}, nil
}

// oneLine joins the populated query parts into a single search string.
func (q Query) oneLine() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{q.Name, q.Address, q.City, q.State, q.Country} {
		if s := strings.TrimSpace(p); s != "" && s != "Unknown" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
