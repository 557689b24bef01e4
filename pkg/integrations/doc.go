// Package integrations provides the HTTP client shared by registry APIs.
//
// [Client] wraps net/http with a 10 second timeout, maps HTTP status codes
// onto pkg/errors codes, reports every request to the observability HTTP
// hooks, and optionally caches decoded metadata through [httputil.Cache].
// Registry-specific clients embed it; see the [npm] subpackage.
//
//	base := integrations.NewClient(nil, nil)
//	registry := npm.NewClient(base, "https://registry.npmjs.org/")
//	doc, err := registry.Packument(ctx, "koa-ejs")
//
// [EscapeName] implements the package name escaping used both for registry
// URLs and for cache paths.
//
// [npm]: github.com/matzehuels/nary/pkg/integrations/npm
// [httputil.Cache]: github.com/matzehuels/nary/pkg/httputil.Cache
package integrations
