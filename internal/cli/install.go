package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nary/pkg/install"
)

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Install the dependencies of a package.json",
		Long: `Install reads package.json in dir (default: the working directory) and
installs its dependencies, devDependencies included, into dir/node_modules.
Every installed package gets its own nested node_modules for the
requirements no ancestor already satisfies.`,
		Example: `  # Install the current project
  nary install

  # Install without devDependencies against a local mirror
  nary install ./app --prod --registry http://127.0.0.1:4873`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", dir, err)
			}

			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			inst, err := c.newInstaller(cfg)
			if err != nil {
				return err
			}

			var rep *install.Report
			if showProgress {
				rep, err = runWithProgress(cmd.Context(), func(ctx context.Context) (*install.Report, error) {
					return inst.Run(ctx, abs)
				})
			} else {
				rep, err = inst.Run(cmd.Context(), abs)
			}
			if err != nil {
				return err
			}

			printInstallReport(rep)
			return nil
		},
	}

	registryFlags(cmd)
	cmd.Flags().Bool("prod", false, "skip devDependencies of the root manifest")
	cmd.Flags().Int("concurrency", 0, "parallel downloads per level")
	cmd.Flags().Int("max-depth", 0, "maximum nesting depth")
	cmd.Flags().String("or-policy", "", `how "a || b" ranges match: last or union`)
	cmd.Flags().BoolVar(&showProgress, "progress", false, "show an interactive progress view")

	return cmd
}

func printInstallReport(rep *install.Report) {
	if len(rep.Records) == 0 {
		printWarning("%s@%s declares no dependencies", rep.Name, rep.Version)
		return
	}
	printSuccess("Installed %s", StyleHighlight.Render(rep.Name+"@"+rep.Version))
	printStats(len(rep.Installed()), len(rep.Skipped()), len(rep.Cloned()), rep.Duration)
	for _, name := range rep.Ledger.Names() {
		v, _ := rep.Ledger.Version(name)
		printDetail("%s@%s", name, v)
	}
	if rep.Ledger.Len() > 0 {
		printNewline()
		printNextStep("Draw the installed tree", "nary graph "+relDir(rep.Root))
	}
}

// relDir shortens dir relative to the working directory when possible.
func relDir(dir string) string {
	wd, err := os.Getwd()
	if err != nil {
		return dir
	}
	rel, err := filepath.Rel(wd, dir)
	if err != nil || filepath.IsAbs(rel) {
		return dir
	}
	return rel
}
