// Package observability provides hooks for progress reporting, metrics and
// debug tracing.
//
// Library packages emit events through the hook registry without knowing who
// listens. The CLI registers hooks at startup: the --progress view consumes
// install events, and --verbose attaches logging hooks for cache and HTTP
// traffic.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetInstallHooks(&progress{})
//	    observability.SetCacheHooks(&cacheLogger{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Install().OnResolved(ctx, name, version, source)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Install Hooks
// =============================================================================

// InstallHooks receives events from the recursive installer.
type InstallHooks interface {
	// OnLevelStart fires before the dependencies of one manifest are processed.
	OnLevelStart(ctx context.Context, dir string, count int)

	// OnResolved fires once a dependency is pinned to a concrete version.
	// source is "registry" or "git".
	OnResolved(ctx context.Context, name, version, source string)

	// OnInstalled fires after a package has been extracted into dir.
	OnInstalled(ctx context.Context, dir, name, version string, duration time.Duration)

	// OnSkipped fires when the ledger already satisfies a dependency.
	OnSkipped(ctx context.Context, dir, name, version string)

	// OnFailed fires when a dependency aborts the install.
	OnFailed(ctx context.Context, dir, name string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations. keyType names the cache
// ("tarball" or "metadata").
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType, key string)
	OnCacheMiss(ctx context.Context, keyType, key string)
	OnCacheSet(ctx context.Context, keyType, key string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopInstallHooks is a no-op implementation of InstallHooks.
type NoopInstallHooks struct{}

func (NoopInstallHooks) OnLevelStart(context.Context, string, int)                          {}
func (NoopInstallHooks) OnResolved(context.Context, string, string, string)                 {}
func (NoopInstallHooks) OnInstalled(context.Context, string, string, string, time.Duration) {}
func (NoopInstallHooks) OnSkipped(context.Context, string, string, string)                  {}
func (NoopInstallHooks) OnFailed(context.Context, string, string, error)                    {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	installHooks InstallHooks = NoopInstallHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetInstallHooks registers custom install hooks.
// This should be called once at application startup before any install runs.
func SetInstallHooks(h InstallHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		installHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Install returns the registered install hooks.
func Install() InstallHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return installHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	installHooks = NoopInstallHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
