// Package cli implements the nary command-line interface.
//
// # Commands
//
//   - install: install a manifest's dependency tree into node_modules
//   - graph: draw an installed tree as DOT or SVG
//   - cache: inspect, fill and clear the tarball cache
//   - mirror serve: serve the tarball cache as a registry
//   - config: print the effective configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// traces cache and HTTP traffic.
package cli

import (
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/nary/internal/config"
	"github.com/matzehuels/nary/pkg/buildinfo"
	"github.com/matzehuels/nary/pkg/cache"
	"github.com/matzehuels/nary/pkg/httputil"
	"github.com/matzehuels/nary/pkg/install"
	"github.com/matzehuels/nary/pkg/integrations"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/source"
	"github.com/matzehuels/nary/pkg/source/git"
)

const appName = "nary"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configFile string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "nary installs npm packages into a nested node_modules tree",
		Long:          `nary resolves the dependencies declared in package.json against an npm registry or git, caches the tarballs, and unpacks them into a nested node_modules tree, skipping requirements an ancestor already satisfies.`,
		Version:       buildinfo.Resolve().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default .nary.toml in the working or home directory)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if c.verbose {
			c.SetLogLevel(LogDebug)
			c.enableTracing()
		}
		return nil
	}

	root.AddCommand(c.installCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.mirrorCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"cache-dir":   "cache_dir",
	"registry":    "registry",
	"concurrency": "concurrency",
	"or-policy":   "or_policy",
	"max-depth":   "max_depth",
	"retries":     "retries",
	"prod":        "production",
}

// loadConfig layers the flags of cmd over file and environment settings.
func (c *CLI) loadConfig(cmd *cobra.Command) (config.Config, error) {
	v, err := config.NewViper(c.configFile)
	if err != nil {
		return config.Config{}, err
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	})
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		c.Logger.Debug("loaded config", "file", used)
	}
	return cfg, nil
}

// registryFlags registers the flags shared by commands that talk to a registry.
func registryFlags(cmd *cobra.Command) {
	cmd.Flags().String("registry", "", "registry base URL")
	cmd.Flags().String("cache-dir", "", "cache root (default: user cache directory)")
	cmd.Flags().Int("retries", 0, "retry transient network failures this many times")
}

// =============================================================================
// Wiring
// =============================================================================

// cacheDirs returns the tarball and metadata cache directories.
func cacheDirs(cfg config.Config) (tarballs, metadata string, err error) {
	if cfg.CacheDir != "" {
		return filepath.Join(cfg.CacheDir, "tarballs"), filepath.Join(cfg.CacheDir, "metadata"), nil
	}
	if tarballs, err = cache.DefaultDir(); err != nil {
		return "", "", err
	}
	if metadata, err = httputil.DefaultDir(); err != nil {
		return "", "", err
	}
	return tarballs, metadata, nil
}

func (c *CLI) newStore(cfg config.Config, fetcher cache.Fetcher) (*cache.Store, error) {
	dir, _, err := cacheDirs(cfg)
	if err != nil {
		return nil, err
	}
	return cache.New(dir, fetcher, c.Logger)
}

// newInstaller wires the registry client, tarball cache and git cloner.
func (c *CLI) newInstaller(cfg config.Config) (*install.Installer, error) {
	var meta *httputil.Cache
	if cfg.MetadataTTL > 0 {
		_, dir, err := cacheDirs(cfg)
		if err != nil {
			return nil, err
		}
		if meta, err = httputil.NewCache(dir, cfg.MetadataTTL); err != nil {
			return nil, err
		}
	}

	headers := map[string]string{
		"User-Agent": appName + "/" + buildinfo.Resolve().Version,
		"Accept":     "application/json",
	}
	base := integrations.NewClient(meta, headers).WithRetries(cfg.Retries)

	store, err := c.newStore(cfg, base)
	if err != nil {
		return nil, err
	}
	resolver := source.NewResolver(npm.NewClient(base, cfg.Registry), c.Logger)

	return install.New(resolver, store, git.NewCloner(c.Logger), install.Options{
		Concurrency: cfg.Concurrency,
		MaxDepth:    cfg.MaxDepth,
		Production:  cfg.Production,
		Policy:      cfg.Policy(),
		Logger:      c.Logger,
	}), nil
}
