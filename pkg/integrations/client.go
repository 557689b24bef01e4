package integrations

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/httputil"
	"github.com/matzehuels/nary/pkg/observability"
)

// Client provides the HTTP plumbing shared by registry clients: status
// mapping, optional metadata caching, opt-in retries and HTTP hooks.
//
// Failures carry pkg/errors codes: 404 is NOT_FOUND, every other transport
// or status failure is NETWORK_ERROR.
type Client struct {
	http    *http.Client
	cache   *httputil.Cache
	headers map[string]string
	retries int
}

// NewClient creates a Client. cache may be nil to disable metadata caching.
// Headers are applied to all requests made through this client.
func NewClient(cache *httputil.Cache, headers map[string]string) *Client {
	return &Client{
		http:    NewHTTPClient(),
		cache:   cache,
		headers: headers,
	}
}

// WithRetries sets how many times transient failures (connection errors,
// 5xx) are retried. The default is 0.
func (c *Client) WithRetries(n int) *Client {
	c.retries = n
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Cached returns the cached value for key in v, or runs fetch and caches the
// populated v. With no cache configured, or refresh set, fetch always runs.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if c.cache != nil && !refresh {
		if ok, _ := c.cache.Get(key, v); ok {
			return nil
		}
	}
	if err := fetch(); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Set(key, v)
	}
	return nil
}

// Get performs an HTTP GET and JSON-decodes the response into v.
// A body that is not valid JSON is a REGISTRY_RESPONSE error.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	return httputil.Retry(ctx, c.retries, httputil.DefaultRetryDelay, func() error {
		body, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return errors.Wrap(errors.ErrCodeRegistryResponse, err, "decode %s", rawURL)
		}
		return nil
	})
}

// GetBytes performs an HTTP GET and returns the full response body.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := httputil.Retry(ctx, c.retries, httputil.DefaultRetryDelay, func() error {
		body, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "read body of %s", rawURL)}
		}
		return nil
	})
	return data, err
}

func (c *Client) doRequest(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := errors.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", rawURL)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := splitURL(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", rawURL)}
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(rawURL, resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(rawURL string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "GET %s: not found", rawURL)
	case code >= 500:
		return &httputil.RetryableError{Err: errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code)}
	default:
		return errors.New(errors.ErrCodeNetwork, "GET %s: status %d", rawURL, code)
	}
}

func splitURL(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.EscapedPath()
}
