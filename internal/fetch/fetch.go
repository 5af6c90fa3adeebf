// Package fetch retrieves images from the repository and serves them from
// a bounded cache.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"davslide/internal/apperr"
	"davslide/internal/config"
	"davslide/internal/exif"
)

const fetchTimeout = 60 * time.Second

// PlaceResolver resolves coordinates to a place name. Satisfied by
// geocode.Resolver.
type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, error)
}

// Fetcher downloads images over authenticated GET, extracts their
// metadata, and caches the result.
type Fetcher struct {
	base     *url.URL
	username string
	password string
	cache    *Cache
	geocoder PlaceResolver // nil disables geocoding
	hc       *http.Client
}

// NewFetcher builds a Fetcher against the configured repository. Pass a
// nil geocoder to disable place-name resolution.
func NewFetcher(cfg config.Repository, cache *Cache, geocoder PlaceResolver) (*Fetcher, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &apperr.ConfigError{Field: "repository.url", Reason: "not a valid absolute URL"}
	}
	return &Fetcher{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		cache:    cache,
		geocoder: geocoder,
		hc:       &http.Client{Timeout: fetchTimeout},
	}, nil
}

// GetImage returns the cached entry for (name, width, height) or fetches,
// decodes, and caches it. The entry is fully constructed before it becomes
// visible in the cache; only the record's location may be filled in later.
func (f *Fetcher) GetImage(ctx context.Context, name string, width, height int) (*Entry, error) {
	key := Key{Name: name, Width: width, Height: height}
	if e, ok := f.cache.Get(key); ok {
		log.Debug().Str("name", name).Msg("cache hit")
		return e, nil
	}

	target := f.imageURL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.SetBasicAuth(f.username, f.password)

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, apperr.Classify("fetch "+name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.NetworkError{Status: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Classify("read image "+name, err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}

	rec := exif.Extract(body)
	entry := &Entry{
		Name:     name,
		MimeType: mime,
		Size:     len(body),
		DataURI:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body),
		Exif:     rec,
	}
	f.cache.Add(key, entry)

	if f.geocoder != nil && rec.HasGPS {
		// Fire and forget; concurrent lookups for the same entry are not
		// coalesced. Failures never reach the caller.
		go f.resolvePlace(rec)
	}
	return entry, nil
}

func (f *Fetcher) resolvePlace(rec *exif.Record) {
	place, err := f.geocoder.Resolve(context.Background(), rec.Latitude, rec.Longitude)
	if err != nil {
		log.Debug().Err(err).
			Float64("lat", rec.Latitude).
			Float64("lon", rec.Longitude).
			Msg("geocode lookup failed")
		return
	}
	rec.SetLocation(place)
}

// imageURL joins the repository base with the decoded identifier; the URL
// type re-escapes the path on serialization, so subdirectory names and
// spaces survive the round trip.
func (f *Fetcher) imageURL(name string) string {
	u := *f.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + name
	u.RawPath = ""
	return u.String()
}
