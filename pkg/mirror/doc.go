// Package mirror serves a tarball cache as an npm-compatible registry.
//
// Two routes are exposed:
//
//	GET /{name}                  packument listing every cached version
//	GET /{name}/-/{file}.tgz     tarball bytes
//
// Scoped names may be requested either escaped ("/@scope%2Fpkg") or as two
// segments ("/@scope/pkg"). Tarball URLs inside a packument point back at
// the mirror, so an installer configured with the mirror as its registry
// never leaves it.
package mirror
