package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nary/pkg/dag/transform"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/install"
	"github.com/matzehuels/nary/pkg/render/nodelink"
)

type graphOpts struct {
	format   string
	output   string
	detailed bool
	dev      bool
	reduce   bool
}

// graphCommand creates the graph command, which draws an installed tree.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: "dot"}

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Draw the installed dependency tree",
		Long: `Graph scans the node_modules tree under dir and writes it as Graphviz DOT
or as an SVG rendered in-process. Requirements that resolve to no
installed package are drawn dashed.`,
		Example: `  nary graph > deps.dot
  nary graph ./app --format svg -o deps.svg --detailed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runGraph(cmd, dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot or svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label nodes with directories and edges with constraints")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "include devDependencies of the root")
	cmd.Flags().BoolVar(&opts.reduce, "reduce", false, "hide requirements implied by longer paths")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"dot", "svg"}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

func (c *CLI) runGraph(cmd *cobra.Command, dir string, opts graphOpts) error {
	if opts.format != "dot" && opts.format != "svg" {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot or svg)", opts.format)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	prog := newProgress(c.Logger)
	g, err := install.Scan(abs, opts.dev)
	if err != nil {
		return err
	}
	c.Logger.Debug("scanned tree", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	if cycle := g.Cycles(); len(cycle) > 0 {
		c.Logger.Warn("installed packages require each other", "packages", cycle)
	}
	if opts.reduce {
		broken := transform.BreakCycles(g)
		hidden := transform.TransitiveReduction(g)
		c.Logger.Debug("reduced graph", "cycle_edges", broken, "implied_edges", hidden)
	}

	out := []byte(nodelink.ToDOT(g, nodelink.Options{Detailed: opts.detailed}))
	if opts.format == "svg" {
		spin := newSpinner(cmd.Context(), cmd.ErrOrStderr(), "Rendering SVG...")
		spin.Start()
		out, err = nodelink.RenderSVG(cmd.Context(), string(out))
		spin.Stop()
		if err != nil {
			return err
		}
	}

	if opts.output == "" {
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	prog.done("rendered graph", "packages", g.NodeCount(), "format", opts.format)
	printFile(opts.output)
	return nil
}
