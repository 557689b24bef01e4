package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/nary/pkg/mirror"
)

// DefaultMirrorAddr is the listen address of "mirror serve".
const DefaultMirrorAddr = "127.0.0.1:4873"

// mirrorCommand creates the mirror command group.
func (c *CLI) mirrorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Serve the tarball cache as an npm registry",
	}
	cmd.AddCommand(c.mirrorServeCommand())
	return cmd
}

func (c *CLI) mirrorServeCommand() *cobra.Command {
	var addr, baseURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached packages over HTTP",
		Long: `Serve answers packument and tarball requests from the local tarball
cache, so that other machines or offline runs can install with
--registry pointing here.`,
		Example: `  nary mirror serve --addr :4873
  nary install --registry http://127.0.0.1:4873`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := c.newStore(cfg, nil)
			if err != nil {
				return err
			}

			var opts []mirror.Option
			if baseURL != "" {
				opts = append(opts, mirror.WithBaseURL(baseURL))
			}
			srv := mirror.New(store, c.Logger, opts...)

			printKeyValue("Cache", store.Root())
			printKeyValue("Listening", "http://"+addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().String("cache-dir", "", "cache root (default: user cache directory)")
	cmd.Flags().StringVar(&addr, "addr", DefaultMirrorAddr, "listen address")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "public base URL for tarball links (default: from the request)")

	return cmd
}
