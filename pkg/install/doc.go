// Package install materializes a manifest's dependency tree on disk.
//
// The installer reads the root manifest, orders its dependencies with
// [deps.Order], and installs each into <dir>/node_modules/<name>: registry
// packages are resolved, fetched through the tarball cache and extracted,
// git packages are cloned. It then descends into every freshly installed
// package and repeats, breadth first, until the tree is complete.
//
// # Deduplication
//
// A [Ledger] maps package names to the versions installed on the path from
// the root. A registry dependency whose ledger version satisfies its range
// is skipped and logged as "already satisfied". Each child package receives
// the ledger of the level that installed it; siblings never see entries from
// each other's subtrees. Git dependencies are always installed.
//
// # Concurrency
//
// The dependencies of one manifest are resolved, fetched and extracted by a
// bounded pool of [Options.Concurrency] workers. Results are committed to
// the ledger one at a time in install order, and the first failure cancels
// the rest of the level.
//
// [deps.Order]: github.com/matzehuels/nary/pkg/deps.Order
package install
