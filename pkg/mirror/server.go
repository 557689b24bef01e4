package mirror

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/nary/pkg/archive"
	"github.com/matzehuels/nary/pkg/cache"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/semver"
)

// Server is an http.Handler serving the entries of a cache.Store.
type Server struct {
	store   *cache.Store
	baseURL string
	logger  *log.Logger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithBaseURL fixes the URL that tarball links are built from. By default
// it is derived from each request's Host header.
func WithBaseURL(u string) Option {
	return func(s *Server) {
		if u != "" && !strings.HasSuffix(u, "/") {
			u += "/"
		}
		s.baseURL = u
	}
}

// New creates a mirror over store. A nil logger uses log.Default().
func New(store *cache.Store, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/{name}", s.handlePackument)
	r.Get("/{scope}/{name}", s.handlePackument)
	r.Get("/{name}/-/{file}", s.handleTarball)
	r.Get("/{scope}/{name}/-/{file}", s.handleTarball)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("mirror listening", "addr", addr, "cache", s.store.Root())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down mirror: %w", err)
		}
		s.logger.Info("mirror stopped")
		return nil
	}
}

func (s *Server) handlePackument(w http.ResponseWriter, r *http.Request) {
	name, ok := packageName(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	versions, err := s.store.Versions(name)
	if err != nil {
		s.fail(w, name, err)
		return
	}
	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("package %s is not cached", name))
		return
	}

	doc := npm.Packument{Name: name, Versions: make(map[string]npm.Version, len(versions))}
	base := s.base(r) + integrations.EscapeName(name, true) + "/-/" + path.Base(name) + "-"
	for _, v := range versions {
		data, ok, err := s.store.Lookup(name, v)
		if err != nil {
			s.fail(w, name, err)
			return
		}
		if !ok {
			continue
		}
		sum := sha1.Sum(data)
		doc.Versions[v] = npm.Version{
			Name:         name,
			Version:      v,
			Dependencies: s.dependencies(name, v, data),
			Dist:         npm.Dist{Tarball: base + v + ".tgz", Shasum: hex.EncodeToString(sum[:])},
		}
	}
	if sorted, err := semver.SortDescending(doc.VersionStrings()); err == nil && len(sorted) > 0 {
		doc.DistTags = map[string]string{"latest": sorted[0].String()}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) handleTarball(w http.ResponseWriter, r *http.Request) {
	name, ok := packageName(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	file, _ := url.PathUnescape(chi.URLParam(r, "file"))
	prefix := path.Base(name) + "-"
	if !strings.HasPrefix(file, prefix) || !strings.HasSuffix(file, ".tgz") {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s is not a tarball of %s", file, name))
		return
	}
	version := strings.TrimSuffix(strings.TrimPrefix(file, prefix), ".tgz")

	data, ok, err := s.store.Lookup(name, version)
	if err != nil {
		s.fail(w, name, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s@%s is not cached", name, version))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// dependencies reads the dependency map from the tarball's manifest. A
// tarball without a readable manifest advertises none.
func (s *Server) dependencies(name, version string, data []byte) map[string]string {
	raw, err := archive.ReadFile(data, "package.json")
	if err != nil {
		s.logger.Debug("no manifest in cached tarball", "pkg", name+"@"+version, "err", err)
		return nil
	}
	var m struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		s.logger.Debug("unreadable manifest in cached tarball", "pkg", name+"@"+version, "err", err)
		return nil
	}
	return m.Dependencies
}

func (s *Server) base(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

func (s *Server) fail(w http.ResponseWriter, name string, err error) {
	s.logger.Error("mirror request failed", "pkg", name, "err", err)
	status := http.StatusInternalServerError
	if errors.Is(err, errors.ErrCodeInvalidPackage) {
		status = http.StatusBadRequest
	}
	writeError(w, status, errors.UserMessage(err))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("mirror request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "bytes", ww.BytesWritten(), "took", time.Since(start))
	})
}

// packageName returns the unescaped package name of a request, joining a
// scope segment when present.
func packageName(r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", false
	}
	if raw := chi.URLParam(r, "scope"); raw != "" {
		scope, err := url.PathUnescape(raw)
		if err != nil || !strings.HasPrefix(scope, "@") {
			return "", false
		}
		name = scope + "/" + name
	}
	if errors.ValidateNpmPackageName(name) != nil {
		return "", false
	}
	return name, true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
