package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"davslide/internal/apperr"
)

func serve(t *testing.T, status int, body string) *Resolver {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("addressdetails") != "1" {
			t.Error("expected addressdetails=1")
		}
		if r.URL.Query().Get("zoom") != zoomLevel {
			t.Errorf("zoom = %q, want %q", r.URL.Query().Get("zoom"), zoomLevel)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewResolver(srv.URL)
}

func TestResolve_PrefersMostSpecificField(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"city wins over state",
			`{"address":{"city":"Berlin","state":"Berlin","country":"Germany"}}`,
			"Berlin",
		},
		{
			"town when no city",
			`{"address":{"town":"Husum","county":"Nordfriesland","country":"Germany"}}`,
			"Husum",
		},
		{
			"country as last resort",
			`{"address":{"country":"Iceland"}}`,
			"Iceland",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := serve(t, http.StatusOK, tt.body)
			got, err := r.Resolve(context.Background(), 52.52, 13.405)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := serve(t, http.StatusOK, `{"address":{}}`)
	_, err := r.Resolve(context.Background(), 0, 0)
	var nf *apperr.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolve_NetworkError(t *testing.T) {
	r := serve(t, http.StatusTooManyRequests, "slow down")
	_, err := r.Resolve(context.Background(), 0, 0)
	var ne *apperr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if ne.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", ne.Status)
	}
}

func TestResolve_ParseError(t *testing.T) {
	r := serve(t, http.StatusOK, "<html>not json</html>")
	_, err := r.Resolve(context.Background(), 0, 0)
	var pe *apperr.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}
