package install

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nary/pkg/archive"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/source"
)

// fixture is an in-memory registry, tarball store and git host.
type fixture struct {
	mu        sync.Mutex
	manifests map[string]map[string]string // name -> version -> package.json
	repos     map[string]string            // repository -> package.json
	queries   []string
	fetches   map[string]int
	clones    []clone
}

type clone struct {
	repository, ref, dest string
}

func newFixture() *fixture {
	return &fixture{
		manifests: map[string]map[string]string{},
		repos:     map[string]string{},
		fetches:   map[string]int{},
	}
}

func pkgJSON(name, version string, deps map[string]string) string {
	data, _ := json.Marshal(map[string]any{"name": name, "version": version, "dependencies": deps})
	return string(data)
}

// publish adds name@version with the given dependencies.
func (f *fixture) publish(name, version string, deps map[string]string) {
	if f.manifests[name] == nil {
		f.manifests[name] = map[string]string{}
	}
	f.manifests[name][version] = pkgJSON(name, version, deps)
}

func (f *fixture) Packument(_ context.Context, name string) (*npm.Packument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, name)
	versions, ok := f.manifests[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "package %s not found", name)
	}
	doc := &npm.Packument{Name: name, Versions: map[string]npm.Version{}}
	for v := range versions {
		doc.Versions[v] = npm.Version{Version: v, Dist: npm.Dist{Tarball: "mem://" + name + "/" + v}}
	}
	return doc, nil
}

func (f *fixture) Get(_ context.Context, name, version, location string) ([]byte, error) {
	f.mu.Lock()
	f.fetches[name+"@"+version]++
	body, ok := f.manifests[name][version]
	f.mu.Unlock()
	if !ok || location != "mem://"+name+"/"+version {
		return nil, errors.New(errors.ErrCodeNotFound, "no tarball at %s", location)
	}
	return archive.Build([]archive.File{
		{Name: "package/package.json", Body: []byte(body)},
		{Name: "package/index.js", Body: []byte("module.exports = '" + name + "'")},
	})
}

func (f *fixture) Clone(_ context.Context, repository, ref, dest string) (string, error) {
	f.mu.Lock()
	f.clones = append(f.clones, clone{repository, ref, dest})
	n := len(f.clones)
	body, ok := f.repos[repository]
	f.mu.Unlock()
	if !ok {
		return "", errors.New(errors.ErrCodeSourceCheckout, "repository %s not found", repository)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dest, "package.json"), []byte(body), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%040d", n), nil
}

func (f *fixture) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

func (f *fixture) totalFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.fetches {
		n += c
	}
	return n
}

func quiet() *log.Logger { return log.New(io.Discard) }

func (f *fixture) installer(opts Options) *Installer {
	opts.Logger = quiet()
	return New(source.NewResolver(f, quiet()), f, f, opts)
}

// project writes a root manifest into a fresh directory.
func project(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func installedVersion(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatalf("package not installed at %s: %v", dir, err)
	}
	var m struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	return m.Version
}

func nm(parts ...string) string {
	var out []string
	for _, p := range parts {
		out = append(out, ModulesDir, p)
	}
	return filepath.Join(out...)
}
