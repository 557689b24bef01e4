// Package pkg provides the libraries behind the nary package installer.
//
// # Overview
//
// nary reads a package.json, resolves each dependency against an npm
// registry or a git repository, caches the tarballs it downloads, and
// unpacks them into a nested node_modules tree. A dependency is skipped
// when a package installed higher up the tree already satisfies it.
//
// # Architecture
//
// The data flow of one install:
//
//	package.json
//	     ↓
//	[manifest] (parse and classify constraints)
//	     ↓
//	[deps] (order one manifest's dependencies)
//	     ↓
//	[source] (pin a version: registry packument or git reference)
//	     ↓
//	[cache] (content-addressed tarball store)
//	     ↓
//	[archive] (safe extraction into node_modules)
//	     ↓
//	[install] (breadth-first descent with the ancestor ledger)
//
// # Quick Start
//
//	base := integrations.NewClient(nil, nil)
//	store, _ := cache.New("", base, nil)
//	resolver := source.NewResolver(npm.NewClient(base, npm.DefaultRegistry), nil)
//	inst := install.New(resolver, store, git.NewCloner(nil), install.Options{})
//	report, err := inst.Run(ctx, "./app")
//
// # Main Packages
//
// [manifest] - Strict package.json schema. Constraints are classified once
// into registry ranges or git references.
//
// [semver] - Range matching on top of Masterminds/semver with a
// configurable policy for "a || b" ranges.
//
// [install] - The recursive installer, its [install.Ledger] of versions
// visible from a directory, and [install.Scan], which reads an installed
// tree back into a graph.
//
// [cache] - On-disk tarball store with atomic writes, BLAKE3 digests and
// collapsed concurrent downloads.
//
// [archive] - Tarball extraction that rejects path traversal, plus packing
// of local directories.
//
// [mirror] - HTTP server exposing the tarball cache as a read-only registry.
//
// ## Supporting Packages
//
// [dag] - Insertion-ordered directed graph with deterministic topological
// sort and cycle reporting. [dag/transform] simplifies graphs for display.
//
// [render/nodelink] - Graphviz DOT and SVG output of installed trees.
//
// [integrations] - Shared HTTP client with retries and response caching;
// [integrations/npm] speaks the registry protocol.
//
// [httputil] - File-backed response cache and retry helpers.
//
// [observability] - Hooks for install, cache and HTTP events.
//
// [errors] - Coded errors shared by every package.
//
// [manifest]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/manifest
// [semver]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/semver
// [cache]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/cache
// [archive]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/archive
// [install]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/install
// [install.Ledger]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/install#Ledger
// [install.Scan]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/install#Scan
// [mirror]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/mirror
// [dag]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/dag
// [dag/transform]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/dag/transform
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/render/nodelink
// [integrations]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/integrations
// [integrations/npm]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/integrations/npm
// [httputil]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/errors
//
// [deps]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/deps
// [source]: https://pkg.go.dev/github.com/matzehuels/nary/pkg/source
package pkg
