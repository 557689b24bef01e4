package install

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matzehuels/nary/pkg/dag"
	"github.com/matzehuels/nary/pkg/manifest"
)

// Scan reads an installed tree rooted at dir into a graph.
//
// Nodes are name@version with "name", "version" and "dir" metadata; the
// root node also carries "root". Every edge points from a dependency to
// the package that requires it. A dependency is looked up the way Node.js
// does, in the nearest node_modules directory at or above the requiring
// package, so dependencies satisfied by an ancestor link to that ancestor's
// copy. Dependencies that are not installed are listed under the requiring
// node's "missing" metadata.
func Scan(dir string, includeDev bool) (*dag.DAG, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	s := &scanner{root: root, g: dag.New(dag.Metadata{"dir": root}), ids: map[string]string{}}

	m, err := manifest.Read(root)
	if err != nil {
		return nil, err
	}
	rootID := s.addNode(root, m)
	s.g.Meta()["root"] = rootID
	if n, ok := s.g.Node(rootID); ok {
		n.Meta["root"] = true
	}

	type visit struct {
		dir    string
		id     string
		m      *manifest.Manifest
		isRoot bool
	}
	queue := []visit{{dir: root, id: rootID, m: m, isRoot: true}}
	expanded := map[string]bool{root: true}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		var missing []string
		for _, d := range v.m.Select(v.isRoot && includeDev) {
			depDir, ok := s.locate(v.dir, d.Name)
			if !ok {
				missing = append(missing, d.Name)
				continue
			}
			childID, child, err := s.node(depDir)
			if err != nil {
				return nil, err
			}
			if err := s.g.AddEdge(dag.Edge{From: childID, To: v.id, Meta: dag.Metadata{"constraint": d.Spec.Raw}}); err != nil {
				return nil, err
			}
			if !expanded[depDir] {
				expanded[depDir] = true
				queue = append(queue, visit{dir: depDir, id: childID, m: child})
			}
		}
		if len(missing) > 0 {
			if n, ok := s.g.Node(v.id); ok {
				n.Meta["missing"] = missing
			}
		}
	}
	return s.g, nil
}

type scanner struct {
	root      string
	g         *dag.DAG
	ids       map[string]string // package dir to node ID
	manifests map[string]*manifest.Manifest
}

func (s *scanner) node(dir string) (string, *manifest.Manifest, error) {
	if id, ok := s.ids[dir]; ok {
		return id, s.manifests[dir], nil
	}
	m, err := manifest.Read(dir)
	if err != nil {
		return "", nil, err
	}
	return s.addNode(dir, m), m, nil
}

func (s *scanner) addNode(dir string, m *manifest.Manifest) string {
	id := m.Name + "@" + m.Version
	if s.manifests == nil {
		s.manifests = map[string]*manifest.Manifest{}
	}
	s.ids[dir] = id
	s.manifests[dir] = m
	if _, ok := s.g.Node(id); !ok {
		rel, _ := filepath.Rel(s.root, dir)
		_ = s.g.AddNode(dag.Node{ID: id, Meta: dag.Metadata{
			"name":    m.Name,
			"version": m.Version,
			"dir":     filepath.ToSlash(rel),
		}})
	}
	return id
}

// locate finds name in the nearest node_modules at or above dir, without
// leaving the scanned root.
func (s *scanner) locate(dir, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, ModulesDir, filepath.FromSlash(name))
		if _, err := os.Stat(filepath.Join(candidate, manifest.FileName)); err == nil {
			return candidate, true
		} else if !stderrors.Is(err, fs.ErrNotExist) {
			return "", false
		}
		if dir == s.root {
			return "", false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
