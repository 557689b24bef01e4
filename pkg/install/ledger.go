package install

import (
	"maps"
	"slices"

	"github.com/matzehuels/nary/pkg/manifest"
)

// Ledger records the versions already installed on one path from the root.
//
// A Ledger is a value: [Ledger.With] returns an extended copy and never
// changes the receiver, so branches of the tree cannot see each other's
// entries. The zero Ledger is empty and ready to use.
type Ledger struct {
	entries map[string]string
}

// NewLedger returns a ledger holding the given name to version pairs.
func NewLedger(entries map[string]string) Ledger {
	return Ledger{entries: maps.Clone(entries)}
}

// With returns a copy of l that also maps name to version.
func (l Ledger) With(name, version string) Ledger {
	next := make(map[string]string, len(l.entries)+1)
	maps.Copy(next, l.entries)
	next[name] = version
	return Ledger{entries: next}
}

// Version returns the version recorded for name.
func (l Ledger) Version(name string) (string, bool) {
	v, ok := l.entries[name]
	return v, ok
}

// Len returns the number of recorded packages.
func (l Ledger) Len() int { return len(l.entries) }

// Names returns the recorded package names, sorted.
func (l Ledger) Names() []string {
	return slices.Sorted(maps.Keys(l.entries))
}

// Map returns a copy of the entries.
func (l Ledger) Map() map[string]string { return maps.Clone(l.entries) }

// Satisfies reports whether the recorded version of dep's package meets its
// constraint, and returns that version. Git dependencies are never
// satisfied by the ledger.
func (l Ledger) Satisfies(dep manifest.Dependency) (string, bool) {
	if dep.Spec.Kind != manifest.KindRegistry {
		return "", false
	}
	v, ok := l.entries[dep.Name]
	if !ok {
		return "", false
	}
	return v, dep.Spec.Range.Test(v)
}
