package install

import (
	"time"

	"github.com/matzehuels/nary/pkg/manifest"
)

// Action is what the installer did with one dependency.
type Action string

const (
	ActionInstalled Action = "installed"
	ActionSkipped   Action = "skipped"
)

// Record describes one dependency of one installed manifest.
type Record struct {
	Dir      string // Directory whose node_modules holds the package
	Name     string
	Version  string
	Kind     manifest.Kind
	Source   string // Tarball URL or repository#ref; empty when skipped
	Commit   string // Checked-out commit of a git dependency
	Action   Action
	Duration time.Duration
}

// Report summarizes an install run.
type Report struct {
	RunID    string
	Root     string
	Name     string
	Version  string
	Records  []Record // In commit order: level by level, install order within a level
	Ledger   Ledger   // Packages installed directly into Root
	Duration time.Duration
}

func (r *Report) add(rec Record) { r.Records = append(r.Records, rec) }

// Installed returns the records of packages written to disk.
func (r *Report) Installed() []Record {
	return r.filter(func(rec Record) bool { return rec.Action == ActionInstalled })
}

// Skipped returns the records of dependencies an ancestor already satisfied.
func (r *Report) Skipped() []Record {
	return r.filter(func(rec Record) bool { return rec.Action == ActionSkipped })
}

// Cloned returns the records of installed git dependencies.
func (r *Report) Cloned() []Record {
	return r.filter(func(rec Record) bool { return rec.Action == ActionInstalled && rec.Kind == manifest.KindGit })
}

func (r *Report) filter(keep func(Record) bool) []Record {
	var out []Record
	for _, rec := range r.Records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}
