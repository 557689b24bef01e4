// Package source turns a dependency declaration into a concrete package
// version and the location of its contents.
//
// Registry dependencies are resolved against the registry's version list:
// candidates are sorted highest first and the first one that satisfies the
// range wins. Source-control dependencies are passed through untouched; the
// installer clones them with [git.Cloner].
//
// [git.Cloner]: github.com/matzehuels/nary/pkg/source/git.Cloner
package source

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/manifest"
	"github.com/matzehuels/nary/pkg/semver"
)

// Registry lists the published versions of a package.
type Registry interface {
	Packument(ctx context.Context, name string) (*npm.Packument, error)
}

// Resolved is a dependency pinned to a concrete artifact.
type Resolved struct {
	Name string
	Kind manifest.Kind

	// Version is the selected registry version. It is empty for git
	// dependencies until the repository has been checked out.
	Version string
	Tarball string // KindRegistry only

	Repository string // KindGit only
	Ref        string // KindGit only
}

// String renders the resolved package as name@version, or name@repo#ref
// for an unchecked-out git dependency.
func (r *Resolved) String() string {
	if r.Version != "" {
		return r.Name + "@" + r.Version
	}
	if r.Ref != "" {
		return r.Name + "@" + r.Repository + "#" + r.Ref
	}
	return r.Name + "@" + r.Repository
}

// Resolver resolves dependencies against a registry.
type Resolver struct {
	registry Registry
	logger   *log.Logger
}

// NewResolver creates a Resolver. A nil logger uses log.Default().
func NewResolver(registry Registry, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Resolve pins dep to a concrete artifact.
//
// Git dependencies never query the registry. Registry dependencies fail
// with NO_SATISFYING_VERSION when no published version matches, with
// VERSION_PARSE when the registry lists an unparsable version, and with
// REGISTRY_RESPONSE when the selected version has no tarball.
func (r *Resolver) Resolve(ctx context.Context, dep manifest.Dependency) (*Resolved, error) {
	switch dep.Spec.Kind {
	case manifest.KindGit:
		return &Resolved{
			Name:       dep.Name,
			Kind:       manifest.KindGit,
			Repository: dep.Spec.Repository,
			Ref:        dep.Spec.Ref,
		}, nil
	case manifest.KindRegistry:
		return r.resolveRegistry(ctx, dep)
	default:
		return nil, errors.New(errors.ErrCodeInternal, "dependency %s has unknown kind %v", dep.Name, dep.Spec.Kind)
	}
}

func (r *Resolver) resolveRegistry(ctx context.Context, dep manifest.Dependency) (*Resolved, error) {
	doc, err := r.registry.Packument(ctx, dep.Name)
	if err != nil {
		return nil, err
	}

	candidates, err := semver.SortDescending(doc.VersionStrings())
	if err != nil {
		return nil, fmt.Errorf("versions of %s: %w", dep.Name, err)
	}

	for _, v := range candidates {
		if !dep.Spec.Range.Check(v) {
			continue
		}
		version := v.String()
		tarball := doc.Versions[version].Dist.Tarball
		if tarball == "" {
			return nil, errors.New(errors.ErrCodeRegistryResponse, "%s@%s has no dist.tarball", dep.Name, version)
		}
		r.logger.Debug("resolved", "pkg", dep.Name, "range", dep.Spec.Raw, "version", version, "candidates", len(candidates))
		return &Resolved{
			Name:    dep.Name,
			Kind:    manifest.KindRegistry,
			Version: version,
			Tarball: tarball,
		}, nil
	}

	return nil, &errors.NoSatisfyingVersionError{Name: dep.Name, Constraint: dep.Spec.Raw}
}
