// Package apperr defines the error taxonomy shared by the remote-facing
// packages. Configuration errors are fatal at startup; everything else is
// recoverable and surfaced as an event to the presentation layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ConfigError reports an invalid or incomplete configuration. It is the
// only error class that aborts startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NetworkError reports a non-2xx HTTP response.
type NetworkError struct {
	Status int
	URL    string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: status %d from %s", e.Status, e.URL)
}

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s", e.Op)
}

// ParseError reports an unparsable response body.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup that returned no usable result.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.What)
}

// EmptyListError reports a listing that succeeded but filtered down to zero
// images. It is a user-facing condition distinct from a transport failure.
type EmptyListError struct {
	Path string
}

func (e *EmptyListError) Error() string {
	return fmt.Sprintf("no images found under %s", e.Path)
}

// IsTimeout reports whether err is, or was caused by, a deadline or network
// timeout of any flavor.
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Classify wraps a transport-level failure from an HTTP round trip into the
// taxonomy: timeouts become TimeoutError, anything else is returned wrapped
// with op context.
func Classify(op string, err error) error {
	if IsTimeout(err) {
		return &TimeoutError{Op: op}
	}
	return fmt.Errorf("%s: %w", op, err)
}
