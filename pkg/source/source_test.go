package source

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/manifest"
)

type fakeRegistry struct {
	docs    map[string]*npm.Packument
	queries int
}

func (f *fakeRegistry) Packument(_ context.Context, name string) (*npm.Packument, error) {
	f.queries++
	doc, ok := f.docs[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "%s not found", name)
	}
	return doc, nil
}

func packument(name string, versions ...string) *npm.Packument {
	doc := &npm.Packument{Name: name, Versions: map[string]npm.Version{}}
	for _, v := range versions {
		doc.Versions[v] = npm.Version{Version: v, Dist: npm.Dist{Tarball: "https://r/" + name + "-" + v + ".tgz"}}
	}
	return doc
}

func dependency(t *testing.T, name, constraint string) manifest.Dependency {
	t.Helper()
	spec, err := manifest.ParseSpec(name, constraint)
	if err != nil {
		t.Fatal(err)
	}
	return manifest.Dependency{Name: name, Spec: spec}
}

func TestResolveRegistry(t *testing.T) {
	reg := &fakeRegistry{docs: map[string]*npm.Packument{
		"koa-ejs": packument("koa-ejs", "4.0.0", "4.1.2", "3.9.9", "5.0.0"),
		"debug":   packument("debug", "1.0.0", "1.2.3", "2.0.0-beta.1"),
	}}
	r := NewResolver(reg, nil)

	tests := []struct {
		name       string
		constraint string
		want       string
	}{
		{"koa-ejs", "^4.1.0", "4.1.2"},
		{"koa-ejs", "~4.0.0", "4.0.0"},
		{"koa-ejs", "*", "5.0.0"},
		{"koa-ejs", "", "5.0.0"},
		{"koa-ejs", "<4.0.0 || >=4.1.0 <5", "4.1.2"},
		{"debug", "^1.0.0", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"@"+tt.constraint, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), dependency(t, tt.name, tt.constraint))
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got.Version != tt.want {
				t.Errorf("Version = %s, want %s", got.Version, tt.want)
			}
			if got.Tarball != "https://r/"+tt.name+"-"+tt.want+".tgz" {
				t.Errorf("Tarball = %s", got.Tarball)
			}
			if got.Kind != manifest.KindRegistry {
				t.Errorf("Kind = %v", got.Kind)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	noTarball := packument("bare", "1.0.0")
	noTarball.Versions["1.0.0"] = npm.Version{Version: "1.0.0"}

	reg := &fakeRegistry{docs: map[string]*npm.Packument{
		"debug": packument("debug", "1.2.3"),
		"bad":   packument("bad", "1.0.0", "not-a-version"),
		"bare":  noTarball,
	}}
	r := NewResolver(reg, nil)

	tests := []struct {
		name       string
		constraint string
		want       errors.Code
	}{
		{"debug", "^9.0.0", errors.ErrCodeNoSatisfyingVersion},
		{"bad", "^1.0.0", errors.ErrCodeVersionParse},
		{"bare", "^1.0.0", errors.ErrCodeRegistryResponse},
		{"missing", "^1.0.0", errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), dependency(t, tt.name, tt.constraint))
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %s", err, tt.want)
			}
		})
	}

	_, err := r.Resolve(context.Background(), dependency(t, "debug", "^9.0.0"))
	var nsv *errors.NoSatisfyingVersionError
	if !stderrors.As(err, &nsv) || nsv.Name != "debug" || nsv.Constraint != "^9.0.0" {
		t.Errorf("NoSatisfyingVersionError = %+v", nsv)
	}
}

func TestResolveGitSkipsRegistry(t *testing.T) {
	reg := &fakeRegistry{}
	got, err := NewResolver(reg, nil).Resolve(context.Background(), dependency(t, "lib", "git://example.com/r.git#deadbeef"))
	if err != nil {
		t.Fatal(err)
	}
	if reg.queries != 0 {
		t.Errorf("registry queried %d times", reg.queries)
	}
	if got.Kind != manifest.KindGit || got.Repository != "git://example.com/r.git" || got.Ref != "deadbeef" {
		t.Errorf("Resolve() = %+v", got)
	}
	if got.String() != "lib@git://example.com/r.git#deadbeef" {
		t.Errorf("String() = %s", got.String())
	}
}

func TestResolveOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/koa-ejs" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"name":"koa-ejs","versions":{
			"4.0.0":{"version":"4.0.0","dist":{"tarball":"http://r/koa-ejs-4.0.0.tgz"}},
			"4.1.2":{"version":"4.1.2","dist":{"tarball":"http://r/koa-ejs-4.1.2.tgz"}}}}`))
	}))
	defer server.Close()

	registry := npm.NewClient(integrations.NewClient(nil, nil), server.URL)
	got, err := NewResolver(registry, nil).Resolve(context.Background(), dependency(t, "koa-ejs", "^4.1.0"))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.String() != "koa-ejs@4.1.2" || got.Tarball != "http://r/koa-ejs-4.1.2.tgz" {
		t.Errorf("Resolve() = %s %s", got, got.Tarball)
	}
}
