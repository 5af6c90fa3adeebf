// Package exif extracts a small, best-effort metadata record from raw
// image bytes.
package exif

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Record holds the metadata of one image. Zero values mean "absent";
// consumers must tolerate any combination of missing fields.
type Record struct {
	Taken     time.Time `json:"taken,omitempty"`
	Camera    string    `json:"camera,omitempty"`
	HasGPS    bool      `json:"hasGps,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`

	mu       sync.Mutex
	location string
}

// Location returns the reverse-geocoded place name, or "" while it has not
// resolved. The geocode lookup writes it after the record was already
// handed out, so access goes through a lock.
func (r *Record) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

// SetLocation records a resolved place name.
func (r *Record) SetLocation(place string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = place
}

// Extract reads EXIF metadata from raw image bytes. It never fails: images
// without EXIF, or with malformed EXIF, yield an empty record.
func Extract(raw []byte) (rec *Record) {
	rec = &Record{}
	defer func() {
		// goexif can panic on some truncated tag tables.
		_ = recover()
	}()

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil || x == nil {
		return rec
	}

	if t, err := x.DateTime(); err == nil {
		rec.Taken = t.UTC()
	}

	rec.Camera = cameraLabel(stringField(x, exif.Make), stringField(x, exif.Model))

	if lat, lon, err := x.LatLong(); err == nil {
		rec.HasGPS = true
		rec.Latitude = lat
		rec.Longitude = lon
	}
	return rec
}

func stringField(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil || tag == nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// cameraLabel joins make and model, omitting whichever is absent. An empty
// result means the camera is unknown.
func cameraLabel(mk, model string) string {
	return strings.TrimSpace(strings.TrimSpace(mk) + " " + strings.TrimSpace(model))
}
