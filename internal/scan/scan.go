// Package scan discovers candidate images on the remote WebDAV repository.
package scan

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"davslide/internal/apperr"
	"davslide/internal/config"
)

const listTimeout = 30 * time.Second

// propfindBody asks only for display names; we only consume the hrefs.
const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:displayname/></d:prop></d:propfind>`

// Client lists images below one repository path via PROPFIND.
type Client struct {
	base      *url.URL
	username  string
	password  string
	recursive bool
	excludes  []*regexp.Regexp
	hc        *http.Client
}

// NewClient validates the repository configuration and compiles the
// exclusion patterns. Configuration problems are fatal and reported once.
func NewClient(cfg config.Repository) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &apperr.ConfigError{Field: "repository.url", Reason: "not a valid absolute URL"}
	}
	excludes := make([]*regexp.Regexp, 0, len(cfg.ExcludePatterns))
	for _, p := range cfg.ExcludePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, &apperr.ConfigError{Field: "repository.excludePatterns", Reason: fmt.Sprintf("bad pattern %q: %v", p, err)}
		}
		excludes = append(excludes, re)
	}
	return &Client{
		base:      base,
		username:  cfg.Username,
		password:  cfg.Password,
		recursive: cfg.Recursive,
		excludes:  excludes,
		hc:        &http.Client{Timeout: listTimeout},
	}, nil
}

// ListImages enumerates the repository and returns the filtered image names
// in listing order. Names are relative to the repository path and
// URL-decoded. A successful listing that filters down to nothing returns an
// empty, non-nil slice; the caller decides how to report that.
func (c *Client) ListImages(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.base.String(), strings.NewReader(propfindBody))
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	depth := "1"
	if c.recursive {
		depth = "infinity"
	}
	req.Header.Set("Depth", depth)
	req.Header.Set("Content-Type", "application/xml")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, apperr.Classify("list images", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &apperr.NetworkError{Status: resp.StatusCode, URL: c.base.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Classify("read listing response", err)
	}

	hrefs, err := parseHrefs(body)
	if err != nil {
		return nil, &apperr.ParseError{Op: "parse listing response", Err: err}
	}

	names := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		name, ok := c.relativeName(h)
		if !ok {
			continue
		}
		if !isImage(name) {
			continue
		}
		if c.excluded(name) {
			log.Debug().Str("name", name).Msg("entry excluded by pattern")
			continue
		}
		names = append(names, name)
	}
	log.Debug().Int("total", len(hrefs)).Int("kept", len(names)).Msg("listing filtered")
	return names, nil
}

// parseHrefs walks the multistatus document and collects every href value,
// regardless of namespace prefix.
func parseHrefs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var hrefs []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(se.Name.Local, "href") {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &se); err != nil {
			return nil, err
		}
		hrefs = append(hrefs, strings.TrimSpace(value))
	}
	if hrefs == nil {
		return nil, fmt.Errorf("no href elements in %d-byte body", len(body))
	}
	return hrefs, nil
}

// relativeName strips the repository base path from one href and decodes
// it. Directory entries and the base directory itself are dropped.
func (c *Client) relativeName(href string) (string, bool) {
	if href == "" || strings.HasSuffix(href, "/") {
		return "", false
	}
	p := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		p = u.EscapedPath()
	}
	base := strings.TrimSuffix(c.base.EscapedPath(), "/")
	rel := strings.TrimPrefix(p, base)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "", false
	}
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	return rel, true
}

func (c *Client) excluded(name string) bool {
	for _, re := range c.excludes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// isImage checks if a file name carries a supported image extension.
func isImage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".tif":
		return true
	default:
		return false
	}
}
