package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/httputil"
)

func TestNewClient(t *testing.T) {
	client := NewClient(nil, map[string]string{"Accept": "application/json"})
	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.http.Timeout != httpTimeout {
		t.Errorf("timeout = %v, want %v", client.http.Timeout, httpTimeout)
	}
	if client.retries != 0 {
		t.Errorf("retries = %d, want 0", client.retries)
	}
	if client.headers["Accept"] != "application/json" {
		t.Error("NewClient() headers not set correctly")
	}
}

func TestClientGet(t *testing.T) {
	type response struct {
		Name string `json:"name"`
	}

	var accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		accept = r.Header.Get("Accept")
		json.NewEncoder(w).Encode(response{Name: "debug"})
	}))
	defer server.Close()

	client := NewClient(nil, map[string]string{"Accept": "application/json"}).WithHTTPClient(server.Client())

	var resp response
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Name != "debug" {
		t.Errorf("Get() name = %q, want debug", resp.Name)
	}
	if accept != "application/json" {
		t.Errorf("Accept header = %q", accept)
	}
}

func TestClientGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x1f, 0x8b, 0x08})
	}))
	defer server.Close()

	data, err := NewClient(nil, nil).GetBytes(context.Background(), server.URL+"/debug/-/debug-1.0.0.tgz")
	if err != nil {
		t.Fatalf("GetBytes() error: %v", err)
	}
	if len(data) != 3 || data[0] != 0x1f {
		t.Errorf("GetBytes() = %v", data)
	}
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errors.Code
	}{
		{http.StatusNotFound, errors.ErrCodeNotFound},
		{http.StatusInternalServerError, errors.ErrCodeNetwork},
		{http.StatusForbidden, errors.ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			var v any
			err := NewClient(nil, nil).Get(context.Background(), server.URL, &v)
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want code %s", err, tt.want)
			}
		})
	}
}

func TestClientConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(nil, nil).GetBytes(context.Background(), url)
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("GetBytes() error = %v, want NETWORK_ERROR", err)
	}
}

func TestClientNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var v any
	_ = NewClient(nil, nil).Get(context.Background(), server.URL, &v)
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}

	calls.Store(0)
	_ = NewClient(nil, nil).WithRetries(2).Get(context.Background(), server.URL, &v)
	if calls.Load() != 3 {
		t.Errorf("with retries: server saw %d calls, want 3", calls.Load())
	}
}

func TestClientInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	var v map[string]any
	err := NewClient(nil, nil).Get(context.Background(), server.URL, &v)
	if !errors.Is(err, errors.ErrCodeRegistryResponse) {
		t.Errorf("Get() error = %v, want REGISTRY_RESPONSE", err)
	}
}

func TestClientRejectsNonHTTP(t *testing.T) {
	_, err := NewClient(nil, nil).GetBytes(context.Background(), "file:///etc/passwd")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("GetBytes() error = %v, want INVALID_INPUT", err)
	}
}

func TestClientCached(t *testing.T) {
	cache, err := httputil.NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(cache, nil)

	fetches := 0
	fetch := func(v *string) func() error {
		return func() error {
			fetches++
			*v = "fresh"
			return nil
		}
	}

	var first, second string
	_ = client.Cached(context.Background(), "debug", false, &first, fetch(&first))
	_ = client.Cached(context.Background(), "debug", false, &second, fetch(&second))
	if fetches != 1 || second != "fresh" {
		t.Errorf("fetches = %d, second = %q; want 1, fresh", fetches, second)
	}

	_ = client.Cached(context.Background(), "debug", true, &second, fetch(&second))
	if fetches != 2 {
		t.Errorf("refresh should bypass the cache, fetches = %d", fetches)
	}
}

func TestClientCachedWithoutCache(t *testing.T) {
	client := NewClient(nil, nil)
	fetches := 0
	var v string
	for range 2 {
		_ = client.Cached(context.Background(), "k", false, &v, func() error { fetches++; return nil })
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want 2", fetches)
	}
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		in    string
		slash bool
		want  string
	}{
		{"debug", false, "debug"},
		{"@scope/pkg", true, "@scope%2Fpkg"},
		{"@scope/pkg", false, "@scope/pkg"},
		{"a b", false, "a%20b"},
		{`q"<>`, false, "q%22%3C%3E"},
		{"`#?{}%", false, "%60%23%3F%7B%7D%25"},
		{"tab\tnl\n", false, "tab%09nl%0A"},
		{"del\x7f", false, "del%7F"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := EscapeName(tt.in, tt.slash); got != tt.want {
				t.Errorf("EscapeName(%q, %v) = %q, want %q", tt.in, tt.slash, got, tt.want)
			}
		})
	}
}
