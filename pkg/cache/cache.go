// Package cache stores package tarballs on disk, keyed by name and version.
//
// Entries live at <root>/<escaped name>/<version>/package.tgz next to a
// BLAKE3 digest sidecar (package.tgz.b3). An entry is written once: bytes
// are staged in a uniquely named temp file and published with an atomic
// link, so a reader never observes a partial entry and a committed entry is
// never replaced. Concurrent misses for the same key inside one process
// share a single fetch; separate processes may both fetch, and the first
// to publish wins.
package cache

import (
	"context"
	stderrors "errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations"
	"github.com/matzehuels/nary/pkg/observability"
)

const (
	// FileName is the tarball file inside an entry directory.
	FileName = "package.tgz"
	// DigestSuffix is appended to FileName for the digest sidecar.
	DigestSuffix = ".b3"
)

// Fetcher downloads artifact bytes on a cache miss.
type Fetcher interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
}

// Entry describes one committed cache entry.
type Entry struct {
	Name    string
	Version string
	Path    string
	Size    int64
}

// Store is the on-disk tarball cache. It is safe for concurrent use.
type Store struct {
	root    string
	fetcher Fetcher
	logger  *log.Logger
	group   singleflight.Group
}

// DefaultDir returns the tarball cache directory under the user cache dir.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeCacheIO, err, "locate user cache directory")
	}
	return filepath.Join(base, "nary", "tarballs"), nil
}

// New opens the store rooted at root, creating the directory if needed.
// fetcher may be nil for read-only use (listing, serving a mirror).
func New(root string, fetcher Fetcher, logger *log.Logger) (*Store, error) {
	if root == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		root = d
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "create cache root %s", root)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{root: root, fetcher: fetcher, logger: logger}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// Path returns where the tarball for name@version is stored.
func (s *Store) Path(name, version string) string {
	return filepath.Join(s.root, filepath.FromSlash(integrations.EscapeName(name, false)), integrations.EscapeName(version, true), FileName)
}

// Get returns the tarball for name@version, downloading it from location
// and committing it on a miss. A hit never touches the network.
func (s *Store) Get(ctx context.Context, name, version, location string) ([]byte, error) {
	key := name + "@" + version
	if err := errors.ValidatePackageName(name); err != nil {
		return nil, err
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		if data, ok, err := s.Lookup(name, version); err != nil || ok {
			if ok {
				observability.Cache().OnCacheHit(ctx, "tarball", key)
				s.logger.Debug("cache hit", "pkg", key)
			}
			return data, err
		}

		observability.Cache().OnCacheMiss(ctx, "tarball", key)
		if s.fetcher == nil {
			return nil, errors.New(errors.ErrCodeCacheIO, "%s is not cached and no fetcher is configured", key)
		}
		s.logger.Debug("cache miss", "pkg", key, "url", location)
		data, err := s.fetcher.GetBytes(ctx, location)
		if err != nil {
			return nil, err
		}
		if err := s.Put(name, version, data); err != nil {
			return nil, err
		}
		observability.Cache().OnCacheSet(ctx, "tarball", key, len(data))
		return data, nil
	})
	if shared {
		s.logger.Debug("joined in-flight fetch", "pkg", key)
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Lookup reads a committed entry. It reports false when the entry does not
// exist. Bytes that do not match the digest sidecar are a CACHE_IO error.
func (s *Store) Lookup(name, version string) ([]byte, bool, error) {
	path := s.Path(name, version)
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCacheIO, err, "read %s", path)
	}

	want, err := os.ReadFile(path + DigestSuffix)
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		// Committed by a writer that has not stored its digest yet.
	case err != nil:
		return nil, false, errors.Wrap(errors.ErrCodeCacheIO, err, "read digest of %s", path)
	case strings.TrimSpace(string(want)) != Hash(data):
		return nil, false, errors.New(errors.ErrCodeCacheIO, "cache entry %s@%s is corrupt (digest mismatch); remove it with \"nary cache clear\"", name, version)
	}
	return data, true, nil
}

// Put commits data as the entry for name@version. If the entry already
// exists it is left untouched and Put returns nil.
func (s *Store) Put(name, version string, data []byte) error {
	path := s.Path(name, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "create %s", filepath.Dir(path))
	}

	tmp, err := writeTemp(path, data)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "stage %s", path)
	}
	created, err := commitOnce(tmp, path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "commit %s", path)
	}
	if !created {
		s.logger.Debug("cache entry already committed", "pkg", name+"@"+version)
		return nil
	}
	if err := replace(path+DigestSuffix, []byte(Hash(data)+"\n")); err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "write digest of %s", path)
	}
	return nil
}

// Entries lists every committed entry, sorted by name then version.
func (s *Store) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != FileName {
			return nil
		}
		rel, err := filepath.Rel(s.root, filepath.Dir(path))
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		i := strings.LastIndex(rel, "/")
		if i < 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:    unescape(rel[:i]),
			Version: unescape(rel[i+1:]),
			Path:    path,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "list %s", s.root)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
	return entries, nil
}

// Versions lists the cached versions of name.
func (s *Store) Versions(name string) ([]string, error) {
	dir := filepath.Dir(filepath.Dir(s.Path(name, "x")))
	items, err := os.ReadDir(dir)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "list %s", dir)
	}
	var out []string
	for _, it := range items {
		if !it.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, it.Name(), FileName)); err == nil {
			out = append(out, unescape(it.Name()))
		}
	}
	return out, nil
}

// Clear removes every entry and recreates the empty root.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "remove %s", s.root)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "recreate %s", s.root)
	}
	return nil
}

// unescape reverses integrations.EscapeName for listing.
func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
