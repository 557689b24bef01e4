package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/nary/pkg/errors"
)

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
	delay time.Duration
	err   error
}

func (f *countingFetcher) GetBytes(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return bytes.Clone(f.data), nil
}

func newStore(t *testing.T, f Fetcher) *Store {
	t.Helper()
	s, err := New(t.TempDir(), f, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestGetFetchesOnce(t *testing.T) {
	f := &countingFetcher{data: []byte("tarball bytes")}
	s := newStore(t, f)
	ctx := context.Background()

	first, err := s.Get(ctx, "pkg", "1.0.0", "https://r/pkg-1.0.0.tgz")
	if err != nil {
		t.Fatalf("first Get() error: %v", err)
	}
	second, err := s.Get(ctx, "pkg", "1.0.0", "https://r/pkg-1.0.0.tgz")
	if err != nil {
		t.Fatalf("second Get() error: %v", err)
	}

	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if !bytes.Equal(first, second) {
		t.Error("both calls should return identical bytes")
	}
}

func TestGetConcurrentMissSharesFetch(t *testing.T) {
	f := &countingFetcher{data: []byte("shared"), delay: 50 * time.Millisecond}
	s := newStore(t, f)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = s.Get(context.Background(), "debug", "1.2.3", "https://r/d.tgz")
		}()
	}
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	for i, r := range results {
		if string(r) != "shared" {
			t.Errorf("result %d = %q", i, r)
		}
	}
}

func TestGetFetchError(t *testing.T) {
	f := &countingFetcher{err: errors.New(errors.ErrCodeNetwork, "connection refused")}
	s := newStore(t, f)

	_, err := s.Get(context.Background(), "pkg", "1.0.0", "https://r/x.tgz")
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Fatalf("Get() error = %v, want NETWORK_ERROR", err)
	}
	if _, ok, _ := s.Lookup("pkg", "1.0.0"); ok {
		t.Error("failed fetch must not leave an entry")
	}
}

func TestGetRejectsUnsafeName(t *testing.T) {
	s := newStore(t, &countingFetcher{data: []byte("x")})
	_, err := s.Get(context.Background(), "../escape", "1.0.0", "https://r/x.tgz")
	if !errors.Is(err, errors.ErrCodeInvalidPackage) {
		t.Errorf("Get() error = %v, want INVALID_PACKAGE", err)
	}
}

func TestPutIsWriteOnce(t *testing.T) {
	s := newStore(t, nil)
	if err := s.Put("pkg", "1.0.0", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("pkg", "1.0.0", []byte("second")); err != nil {
		t.Fatal(err)
	}

	data, ok, err := s.Lookup("pkg", "1.0.0")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if string(data) != "first" {
		t.Errorf("entry = %q, want the first payload", data)
	}

	items, _ := os.ReadDir(filepath.Dir(s.Path("pkg", "1.0.0")))
	if len(items) != 2 {
		t.Errorf("entry dir has %d files, want tarball and digest only", len(items))
	}
}

func TestLookupDetectsCorruption(t *testing.T) {
	s := newStore(t, nil)
	_ = s.Put("pkg", "1.0.0", []byte("good"))
	if err := os.WriteFile(s.Path("pkg", "1.0.0"), []byte("evil"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Lookup("pkg", "1.0.0")
	if !errors.Is(err, errors.ErrCodeCacheIO) {
		t.Fatalf("Lookup() error = %v, want CACHE_IO", err)
	}
	if !strings.Contains(err.Error(), "nary cache clear") {
		t.Errorf("Lookup() error %q does not name the recovery command", err)
	}
}

func TestLookupWithoutDigest(t *testing.T) {
	s := newStore(t, nil)
	path := s.Path("pkg", "1.0.0")
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, []byte("legacy"), 0o644)

	data, ok, err := s.Lookup("pkg", "1.0.0")
	if err != nil || !ok || string(data) != "legacy" {
		t.Errorf("Lookup() = %q, %v, %v", data, ok, err)
	}
}

func TestPath(t *testing.T) {
	s := newStore(t, nil)
	tests := []struct {
		name, version string
		want          string
	}{
		{"koa-ejs", "4.1.2", "koa-ejs/4.1.2/package.tgz"},
		{"@babel/core", "7.0.0", "@babel/core/7.0.0/package.tgz"},
		{"odd name", "1.0.0", "odd%20name/1.0.0/package.tgz"},
		{"x", "1.0.0+build/1", "x/1.0.0+build%2F1/package.tgz"},
		{"x", "1.0.0-rc%2", "x/1.0.0-rc%252/package.tgz"},
	}
	for _, tt := range tests {
		got := s.Path(tt.name, tt.version)
		if want := filepath.Join(s.Root(), filepath.FromSlash(tt.want)); got != want {
			t.Errorf("Path(%q, %q) = %q, want %q", tt.name, tt.version, got, want)
		}
	}
}

func TestEntriesAndClear(t *testing.T) {
	s := newStore(t, nil)
	_ = s.Put("koa-ejs", "4.1.2", []byte("a"))
	_ = s.Put("@babel/core", "7.0.0", []byte("bb"))
	_ = s.Put("odd name", "1.0.0", []byte("ccc"))
	_ = s.Put("koa-ejs", "4.0.0", []byte("d"))

	entries, err := s.Entries()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name+"@"+e.Version)
	}
	want := []string{"@babel/core@7.0.0", "koa-ejs@4.0.0", "koa-ejs@4.1.2", "odd name@1.0.0"}
	if len(got) != len(want) {
		t.Fatalf("Entries() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	versions, _ := s.Versions("koa-ejs")
	if len(versions) != 2 {
		t.Errorf("Versions(koa-ejs) = %v", versions)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	entries, _ = s.Entries()
	if len(entries) != 0 {
		t.Errorf("after Clear: %d entries", len(entries))
	}
}

func TestHash(t *testing.T) {
	if Hash([]byte("a")) != Hash([]byte("a")) {
		t.Error("Hash should be deterministic")
	}
	if Hash([]byte("a")) == Hash([]byte("b")) {
		t.Error("different inputs should hash differently")
	}
	if len(Hash(nil)) != 64 {
		t.Errorf("Hash length = %d, want 64", len(Hash(nil)))
	}
}
