// Package geocode resolves GPS coordinates into place names via a
// Nominatim-style reverse-geocoding endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"davslide/internal/apperr"
)

const (
	resolveTimeout = 5 * time.Second
	zoomLevel      = "18"
)

// granularities is the preference order for the address field to show,
// most specific settlement level first.
var granularities = []string{
	"city", "town", "village", "hamlet",
	"suburb", "neighbourhood", "county", "state", "country",
}

// Resolver performs single-attempt reverse-geocoding lookups.
type Resolver struct {
	endpoint string
	hc       *http.Client
}

// NewResolver creates a Resolver against the given reverse endpoint.
func NewResolver(endpoint string) *Resolver {
	return &Resolver{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: resolveTimeout},
	}
}

// Resolve looks up a place name for the coordinate pair. One attempt, no
// retries; every failure is non-fatal to the slideshow and the caller is
// expected to log and drop it.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", zoomLevel)
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := r.hc.Do(req)
	if err != nil {
		return "", apperr.Classify("reverse geocode", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apperr.NetworkError{Status: resp.StatusCode, URL: r.endpoint}
	}

	var payload struct {
		Address map[string]string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &apperr.ParseError{Op: "decode geocode response", Err: err}
	}

	for _, field := range granularities {
		if v := payload.Address[field]; v != "" {
			return v, nil
		}
	}
	return "", &apperr.NotFoundError{What: fmt.Sprintf("place name for %.5f,%.5f", lat, lon)}
}
