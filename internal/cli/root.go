package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nary/pkg/observability"
)

// Execute runs the command tree with args taken from os.Args.
func (c *CLI) Execute(ctx context.Context) error {
	return c.RootCommand().ExecuteContext(ctx)
}

// enableTracing logs cache and HTTP events at debug level.
func (c *CLI) enableTracing() {
	h := &traceHooks{logger: c.Logger}
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

type traceHooks struct {
	logger *log.Logger
}

func (h *traceHooks) OnCacheHit(_ context.Context, keyType, key string) {
	h.logger.Debug("cache hit", "cache", keyType, "key", key)
}

func (h *traceHooks) OnCacheMiss(_ context.Context, keyType, key string) {
	h.logger.Debug("cache miss", "cache", keyType, "key", key)
}

func (h *traceHooks) OnCacheSet(_ context.Context, keyType, key string, size int) {
	h.logger.Debug("cache set", "cache", keyType, "key", key, "bytes", size)
}

func (h *traceHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *traceHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h *traceHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
