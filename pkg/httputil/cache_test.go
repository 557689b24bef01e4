package httputil

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

type packument struct {
	Name     string            `json:"name"`
	Versions map[string]string `json:"versions"`
}

func TestCache_GetSet(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	in := packument{Name: "debug", Versions: map[string]string{"1.2.3": "https://r/debug-1.2.3.tgz"}}
	if err := c.Set("debug", in); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var out packument
	ok, err := c.Get("debug", &out)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want true, nil", ok, err)
	}
	if out.Name != "debug" || out.Versions["1.2.3"] == "" {
		t.Errorf("Get() decoded %+v", out)
	}
}

func TestCache_Miss(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	var result string
	ok, err := c.Get("missing", &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() returned true for missing key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c, _ := NewCache(t.TempDir(), 10*time.Millisecond)

	if err := c.Set("key", "value"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var res string
	ok, err := c.Get("key", &res)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want true, nil", ok, err)
	}

	time.Sleep(20 * time.Millisecond)

	ok, err = c.Get("key", &res)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("got error %v, want ErrExpired", err)
	}
	if ok {
		t.Error("Get() returned true for expired key")
	}
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c, _ := NewCache(t.TempDir(), 0)
	_ = c.Set("key", "value")
	old := time.Now().Add(-365 * 24 * time.Hour)
	if err := os.Chtimes(c.keyPath("key"), old, old); err != nil {
		t.Fatal(err)
	}
	var res string
	if ok, err := c.Get("key", &res); !ok || err != nil {
		t.Errorf("Get() = %v, %v; want true, nil", ok, err)
	}
}

func TestCache_ConcurrentSet(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set("shared", packument{Name: "shared", Versions: map[string]string{"1.0.0": string(rune('a' + i))}})
		}()
	}
	wg.Wait()

	var out packument
	if ok, err := c.Get("shared", &out); !ok || err != nil {
		t.Fatalf("Get() = %v, %v", ok, err)
	}

	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 1 {
		t.Errorf("found %d files, want 1 (temp files must not leak)", len(entries))
	}
}

func TestCache_Namespace(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	public := c.Namespace("https://registry.npmjs.org/")
	mirror := c.Namespace("http://localhost:4873/")

	_ = public.Set("debug", "public")
	_ = mirror.Set("debug", "mirror")

	var a, b string
	_, _ = public.Get("debug", &a)
	_, _ = mirror.Get("debug", &b)
	if a != "public" || b != "mirror" {
		t.Errorf("namespaces leaked: %q %q", a, b)
	}

	nested := public.Namespace("v2:")
	if found, _ := nested.Get("debug", &a); found {
		t.Error("nested namespace should not see parent keys")
	}
	if nested.Dir() != c.Dir() || nested.TTL() != c.TTL() {
		t.Error("Namespace should keep dir and TTL")
	}
}
