package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nary/internal/config"
	"github.com/matzehuels/nary/pkg/archive"
	"github.com/matzehuels/nary/pkg/manifest"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the tarball and metadata caches",
	}
	cmd.PersistentFlags().String("cache-dir", "", "cache root (default: user cache directory)")

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheAddCommand())
	cmd.AddCommand(c.cacheClearCommand())

	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			tarballs, metadata, err := cacheDirs(cfg)
			if err != nil {
				return err
			}
			printKeyValue("Tarballs", tarballs)
			printKeyValue("Metadata", metadata)
			return nil
		},
	}
}

// cacheListCommand creates the "cache ls" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached tarballs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := c.newStore(cfg, nil)
			if err != nil {
				return err
			}
			entries, err := store.Entries()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("Cache is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			var total int64
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.Version, formatSize(e.Size)})
				total += e.Size
			}
			fmt.Fprintln(cmd.OutOrStdout(), entryTable(rows))
			printDetail("%d packages, %s", len(entries), formatSize(total))
			return nil
		},
	}
}

func entryTable(rows [][]string) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	cell := lipgloss.NewStyle().Foreground(colorWhite).Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("PACKAGE", "VERSION", "SIZE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		String()
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// cacheAddCommand creates the "cache add" subcommand, which packs a
// package directory into the tarball cache.
func (c *CLI) cacheAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <dir>...",
		Short: "Pack package directories into the tarball cache",
		Long: `Add packs each directory (without node_modules and .git) into a tarball
and stores it under the name and version of its package.json, so that
the mirror can serve it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := c.newStore(cfg, nil)
			if err != nil {
				return err
			}
			for _, dir := range args {
				m, err := manifest.Parser{Policy: cfg.Policy()}.Read(dir)
				if err != nil {
					return err
				}
				data, err := archive.Pack(dir)
				if err != nil {
					return err
				}
				if err := store.Put(m.Name, m.Version, data); err != nil {
					return err
				}
				printSuccess("Cached %s", StyleHighlight.Render(m.Name+"@"+m.Version))
				printFile(store.Path(m.Name, m.Version))
			}
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached tarballs and registry metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			return c.clearCaches(cfg)
		},
	}
}

func (c *CLI) clearCaches(cfg config.Config) error {
	tarballs, metadata, err := cacheDirs(cfg)
	if err != nil {
		return err
	}
	for _, dir := range []string{tarballs, metadata} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
		c.Logger.Debug("removed cache", "dir", dir)
	}
	printSuccess("Cache cleared")
	printDetail("%s", filepath.Dir(tarballs))
	return nil
}
