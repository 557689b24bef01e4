package install

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/nary/pkg/archive"
	"github.com/matzehuels/nary/pkg/deps"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/manifest"
	"github.com/matzehuels/nary/pkg/observability"
	"github.com/matzehuels/nary/pkg/semver"
	"github.com/matzehuels/nary/pkg/source"
)

// ModulesDir is the directory each package installs its dependencies into.
const ModulesDir = "node_modules"

// DefaultConcurrency is the number of dependencies of one manifest
// processed at the same time.
const DefaultConcurrency = 8

// Resolver pins a dependency to a concrete artifact.
type Resolver interface {
	Resolve(ctx context.Context, dep manifest.Dependency) (*source.Resolved, error)
}

// Tarballs returns package tarballs, from a local cache or the network.
type Tarballs interface {
	Get(ctx context.Context, name, version, location string) ([]byte, error)
}

// Cloner checks out a git repository at ref into dest and returns the
// commit it checked out.
type Cloner interface {
	Clone(ctx context.Context, repository, ref, dest string) (string, error)
}

// Options configures an Installer.
type Options struct {
	// Concurrency bounds the dependencies processed in parallel per level.
	Concurrency int

	// MaxDepth bounds how many levels of node_modules may be nested.
	MaxDepth int

	// Production skips the root manifest's devDependencies.
	Production bool

	// Policy is the OR-range policy used when reading installed manifests.
	Policy semver.ORPolicy

	// Logger receives progress messages. Defaults to log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of o with zero fields set to their defaults.
func (o Options) WithDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = deps.DefaultMaxDepth
	}
	if o.Policy == "" {
		o.Policy = semver.DefaultPolicy
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Installer installs dependency trees. It is safe for concurrent use if
// its collaborators are.
type Installer struct {
	resolver  Resolver
	tarballs  Tarballs
	cloner    Cloner
	extractor *archive.Extractor
	parser    manifest.Parser
	opts      Options
}

// New creates an Installer.
func New(resolver Resolver, tarballs Tarballs, cloner Cloner, opts Options) *Installer {
	opts = opts.WithDefaults()
	return &Installer{
		resolver:  resolver,
		tarballs:  tarballs,
		cloner:    cloner,
		extractor: &archive.Extractor{Logger: opts.Logger},
		parser:    manifest.Parser{Policy: opts.Policy},
		opts:      opts,
	}
}

// Run reads the manifest in dir and installs its whole dependency tree.
func (i *Installer) Run(ctx context.Context, dir string) (*Report, error) {
	start := time.Now()
	m, err := i.parser.Read(dir)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	rep := &Report{RunID: runID, Root: dir, Name: m.Name, Version: m.Version}
	logger := i.opts.Logger.With("run", runID[:8])
	logger.Debug("install started", "pkg", m.Name+"@"+m.Version, "dir", dir)

	ledger, err := i.install(ctx, dir, m, true, Ledger{}, rep, logger)
	if err != nil {
		return nil, err
	}
	rep.Ledger = ledger
	rep.Duration = time.Since(start)
	return rep, nil
}

// Install installs the dependencies of m into dir/node_modules and then
// the dependencies of every package it installed, descending until the
// tree is complete. devDependencies are included only when isRoot is set.
//
// ledger holds versions already installed by ancestors of dir. Install
// returns it extended with the packages installed directly into dir.
func (i *Installer) Install(ctx context.Context, dir string, m *manifest.Manifest, isRoot bool, ledger Ledger) (Ledger, error) {
	return i.install(ctx, dir, m, isRoot, ledger, &Report{Root: dir}, i.opts.Logger)
}

// task is one manifest whose dependencies still have to be installed.
type task struct {
	dir      string
	manifest *manifest.Manifest
	isRoot   bool
	ledger   Ledger
	path     []string // name@version from the root down to this package
}

func (t task) id() string { return t.manifest.Name + "@" + t.manifest.Version }

func (i *Installer) install(ctx context.Context, dir string, m *manifest.Manifest, isRoot bool, ledger Ledger, rep *Report, logger *log.Logger) (Ledger, error) {
	root := task{dir: dir, manifest: m, isRoot: isRoot, ledger: ledger}
	root.path = []string{root.id()}

	var top Ledger
	queue := []task{root}
	for n := 0; len(queue) > 0; n++ {
		if err := ctx.Err(); err != nil {
			return Ledger{}, err
		}
		t := queue[0]
		queue = queue[1:]

		level, children, err := i.level(ctx, t, rep, logger)
		if err != nil {
			return Ledger{}, err
		}
		if n == 0 {
			top = level
		}
		queue = append(queue, children...)
	}
	return top, nil
}

// job is one dependency of a level. Workers fill in the result fields;
// the commit loop reads them after the level has joined.
type job struct {
	dep  manifest.Dependency
	dest string
	have string // ledger version when skipped
	skip bool

	resolved *source.Resolved
	version  string
	commit   string
	child    *manifest.Manifest
	duration time.Duration
}

func (j *job) id() string { return j.dep.Name + "@" + j.version }

// level installs the direct dependencies of t and returns the extended
// ledger together with the tasks for the packages it installed.
func (i *Installer) level(ctx context.Context, t task, rep *Report, logger *log.Logger) (Ledger, []task, error) {
	declared := t.manifest.Select(t.isRoot && !i.opts.Production)
	if len(declared) == 0 {
		return t.ledger, nil, nil
	}
	order, err := deps.Order(t.manifest.Name, declared)
	if err != nil {
		return Ledger{}, nil, fmt.Errorf("order dependencies of %s: %w", t.id(), err)
	}

	byName := make(map[string]manifest.Dependency, len(declared))
	for _, d := range declared {
		byName[d.Name] = d
	}
	jobs := make([]*job, 0, len(order))
	pending := 0
	for _, name := range order {
		d := byName[name]
		j := &job{dep: d, dest: filepath.Join(t.dir, ModulesDir, filepath.FromSlash(name))}
		j.have, j.skip = t.ledger.Satisfies(d)
		if !j.skip {
			pending++
		}
		jobs = append(jobs, j)
	}
	if pending > 0 && len(t.path) > i.opts.MaxDepth {
		return Ledger{}, nil, errors.New(errors.ErrCodeDepthExceeded,
			"%s would nest packages more than %d levels deep", t.id(), i.opts.MaxDepth)
	}

	observability.Install().OnLevelStart(ctx, t.dir, len(jobs))
	logger.Debug("installing level", "pkg", t.id(), "deps", len(jobs), "pending", pending)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opts.Concurrency)
	for _, j := range jobs {
		if j.skip {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := i.materialize(gctx, t, j, logger); err != nil {
				if !stderrors.Is(err, context.Canceled) {
					observability.Install().OnFailed(gctx, t.dir, j.dep.Name, err)
				}
				return fmt.Errorf("install %s into %s: %w", j.dep, t.dir, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Ledger{}, nil, err
	}
	// Dispatch stops early on cancellation even when every started job
	// succeeded; the level is then incomplete and must not be committed.
	if err := ctx.Err(); err != nil {
		return Ledger{}, nil, err
	}

	level := t.ledger
	var children []task
	for _, j := range jobs {
		if j.skip {
			logger.Info("already satisfied", "pkg", j.dep.Name, "range", j.dep.Spec.Raw, "version", j.have, "in", t.id())
			observability.Install().OnSkipped(ctx, t.dir, j.dep.Name, j.have)
			rep.add(Record{Dir: t.dir, Name: j.dep.Name, Version: j.have, Kind: j.dep.Spec.Kind, Action: ActionSkipped})
			continue
		}

		level = level.With(j.dep.Name, j.version)
		logger.Info("installed", "pkg", j.id(), "in", t.id(), "took", j.duration.Round(time.Millisecond))
		observability.Install().OnInstalled(ctx, t.dir, j.dep.Name, j.version, j.duration)
		rep.add(Record{
			Dir:      t.dir,
			Name:     j.dep.Name,
			Version:  j.version,
			Kind:     j.resolved.Kind,
			Source:   sourceOf(j.resolved),
			Commit:   j.commit,
			Action:   ActionInstalled,
			Duration: j.duration,
		})
		if j.child != nil {
			children = append(children, task{
				dir:      j.dest,
				manifest: j.child,
				path:     append(slices.Clip(t.path), j.id()),
			})
		}
	}
	for k := range children {
		children[k].ledger = level
	}
	return level, children, nil
}

// materialize resolves j and writes its contents to j.dest.
func (i *Installer) materialize(ctx context.Context, t task, j *job, logger *log.Logger) error {
	start := time.Now()
	res, err := i.resolver.Resolve(ctx, j.dep)
	if err != nil {
		return err
	}
	j.resolved = res

	if err := os.RemoveAll(j.dest); err != nil {
		return errors.Wrap(errors.ErrCodeCacheIO, err, "clear %s", j.dest)
	}

	switch res.Kind {
	case manifest.KindRegistry:
		j.version = res.Version
		if err := checkCycle(t.path, j.id()); err != nil {
			return err
		}
		observability.Install().OnResolved(ctx, res.Name, res.Version, res.Kind.String())
		data, err := i.tarballs.Get(ctx, res.Name, res.Version, res.Tarball)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", res, err)
		}
		if err := i.extractor.Extract(data, j.dest); err != nil {
			return fmt.Errorf("extract %s: %w", res, err)
		}
	case manifest.KindGit:
		commit, err := i.cloner.Clone(ctx, res.Repository, res.Ref, j.dest)
		if err != nil {
			return err
		}
		j.commit = commit
	default:
		return errors.New(errors.ErrCodeInternal, "dependency %s has unknown kind %v", j.dep.Name, res.Kind)
	}

	child, err := i.readManifest(j.dest, logger)
	if err != nil {
		return err
	}
	j.child = child

	if res.Kind == manifest.KindGit {
		j.version = gitVersion(child, res.Ref, j.commit)
		if err := checkCycle(t.path, j.id()); err != nil {
			return err
		}
		observability.Install().OnResolved(ctx, res.Name, j.version, res.Kind.String())
	}
	j.duration = time.Since(start)
	return nil
}

// readManifest reads the manifest of an installed package. A package
// without one is installed but not descended into.
func (i *Installer) readManifest(dir string, logger *log.Logger) (*manifest.Manifest, error) {
	if _, err := os.Stat(filepath.Join(dir, manifest.FileName)); stderrors.Is(err, fs.ErrNotExist) {
		logger.Warn("package has no manifest, not descending", "dir", dir)
		return nil, nil
	}
	return i.parser.Read(dir)
}

// checkCycle fails when id is already installed on the path from the root.
func checkCycle(path []string, id string) error {
	k := slices.Index(path, id)
	if k < 0 {
		return nil
	}
	return &errors.CyclicDependencyError{Nodes: slices.Clone(path[k:])}
}

func gitVersion(m *manifest.Manifest, ref, commit string) string {
	switch {
	case m != nil && m.Version != "":
		return m.Version
	case ref != "":
		return ref
	default:
		return commit
	}
}

func sourceOf(r *source.Resolved) string {
	if r.Kind == manifest.KindGit {
		if r.Ref != "" {
			return r.Repository + "#" + r.Ref
		}
		return r.Repository
	}
	return r.Tarball
}
