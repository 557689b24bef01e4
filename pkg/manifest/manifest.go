// Package manifest reads package.json manifests into a strict schema.
//
// Dependency maps keep their declaration order, and every constraint is
// classified once into a [Spec]: either a registry range or a source-control
// reference. Downstream code switches on [Spec.Kind] and never re-inspects the
// raw string.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/semver"
)

// FileName is the manifest file looked up in every package directory.
const FileName = "package.json"

// Kind distinguishes registry constraints from source-control references.
type Kind int

const (
	// KindRegistry is a semantic-version range resolved against the registry.
	KindRegistry Kind = iota
	// KindGit is a repository URL cloned directly.
	KindGit
)

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindGit:
		return "git"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Spec is a classified dependency constraint.
type Spec struct {
	Kind Kind
	Raw  string // Constraint as written in the manifest

	Range semver.Range // KindRegistry only

	Repository string // KindGit only: clone URL without the fragment
	Ref        string // KindGit only: branch, tag or commit; empty for the default branch
}

// Dependency is one named requirement of a manifest.
type Dependency struct {
	Name string
	Spec Spec
}

// String renders the dependency as name@constraint.
func (d Dependency) String() string { return d.Name + "@" + d.Spec.Raw }

// Manifest is a parsed package.json.
type Manifest struct {
	Name            string
	Version         string
	Dependencies    []Dependency // Declaration order
	DevDependencies []Dependency // Declaration order; consulted for the root only
}

// Select returns the dependencies to install. devDependencies are appended
// when includeDev is set; a name already listed in dependencies keeps that entry.
func (m *Manifest) Select(includeDev bool) []Dependency {
	out := make([]Dependency, 0, len(m.Dependencies)+len(m.DevDependencies))
	out = append(out, m.Dependencies...)
	if !includeDev {
		return out
	}
	seen := make(map[string]bool, len(m.Dependencies))
	for _, d := range m.Dependencies {
		seen[d.Name] = true
	}
	for _, d := range m.DevDependencies {
		if !seen[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Parser reads manifests with a fixed OR-range policy.
type Parser struct {
	Policy semver.ORPolicy
}

// Parse decodes a manifest with the default OR-range policy.
func Parse(data []byte) (*Manifest, error) {
	return Parser{Policy: semver.DefaultPolicy}.Parse(data)
}

// Read loads dir/package.json with the default OR-range policy.
func Read(dir string) (*Manifest, error) {
	return Parser{Policy: semver.DefaultPolicy}.Read(dir)
}

// Read loads dir/package.json.
func (p Parser) Read(dir string) (*Manifest, error) {
	path := dir
	if filepath.Base(path) != FileName {
		path = filepath.Join(dir, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "read %s", path)
	}
	m, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a manifest document.
//
// name and version are required. Dependency values must be strings; registry
// constraints must parse as ranges.
func (p Parser) Parse(data []byte) (*Manifest, error) {
	var raw packageFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "decode manifest")
	}
	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" {
		return nil, errors.New(errors.ErrCodeManifestRead, "manifest is missing required field \"name\"")
	}
	if raw.Version == nil || strings.TrimSpace(*raw.Version) == "" {
		return nil, errors.New(errors.ErrCodeManifestRead, "manifest %s is missing required field \"version\"", *raw.Name)
	}

	m := &Manifest{Name: *raw.Name, Version: *raw.Version}
	var err error
	if m.Dependencies, err = p.classify(raw.Dependencies); err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	if m.DevDependencies, err = p.classify(raw.DevDependencies); err != nil {
		return nil, fmt.Errorf("devDependencies: %w", err)
	}
	return m, nil
}

func (p Parser) classify(entries orderedStrings) ([]Dependency, error) {
	deps := make([]Dependency, 0, len(entries))
	for _, e := range entries {
		if err := errors.ValidateNpmPackageName(e.key); err != nil {
			return nil, errors.Wrap(errors.ErrCodeManifestRead, err, "dependency %q", e.key)
		}
		spec, err := ParseSpecWithPolicy(e.key, e.value, p.Policy)
		if err != nil {
			return nil, err
		}
		deps = append(deps, Dependency{Name: e.key, Spec: spec})
	}
	return deps, nil
}

var gitSchemes = []string{"git://", "git+https://", "git+http://", "git+ssh://"}

// ParseSpec classifies a constraint with the default OR-range policy.
func ParseSpec(name, constraint string) (Spec, error) {
	return ParseSpecWithPolicy(name, constraint, semver.DefaultPolicy)
}

// ParseSpecWithPolicy classifies constraint as a git reference or a registry range.
//
// Git references are "scheme://location[#ref]"; the ref is the text after the
// last '#'. Anything else must parse as a version range.
func ParseSpecWithPolicy(name, constraint string, policy semver.ORPolicy) (Spec, error) {
	for _, scheme := range gitSchemes {
		if !strings.HasPrefix(constraint, scheme) {
			continue
		}
		repo, ref := constraint, ""
		if i := strings.LastIndex(constraint, "#"); i >= 0 {
			repo, ref = constraint[:i], constraint[i+1:]
		}
		if scheme != "git://" {
			repo = strings.TrimPrefix(repo, "git+")
		}
		return Spec{Kind: KindGit, Raw: constraint, Repository: repo, Ref: ref}, nil
	}

	r, err := semver.ParseRangeWithPolicy(constraint, policy)
	if err != nil {
		return Spec{}, &errors.ConstraintParseError{Name: name, Constraint: constraint, Cause: err}
	}
	return Spec{Kind: KindRegistry, Raw: constraint, Range: r}, nil
}

type packageFile struct {
	Name            *string        `json:"name"`
	Version         *string        `json:"version"`
	Dependencies    orderedStrings `json:"dependencies"`
	DevDependencies orderedStrings `json:"devDependencies"`
}

type entry struct {
	key   string
	value string
}

// orderedStrings decodes a JSON object of strings, keeping key order.
// A repeated key keeps its first position and its last value.
type orderedStrings []entry

func (o *orderedStrings) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected an object of name to constraint strings")
	}

	index := make(map[string]int)
	var out orderedStrings
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("constraint for %q must be a string, got %T", key, value)
		}
		if i, dup := index[key]; dup {
			out[i].value = s
			continue
		}
		index[key] = len(out)
		out = append(out, entry{key: key, value: s})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	*o = out
	return nil
}
