package cli

import (
	"github.com/spf13/cobra"
)

// newUpdateCmd creates the "update" command: the core sync operation.
func newUpdateCmd(rootDir *string) *cobra.Command {
	var (
		dryRun  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Resolve pkg.yml and bring the plugin directory in sync",
		Long: `Update resolves every manifest entry against the configured sources,
plans the difference to what is installed, and applies it: new plugins
are installed, constraint changes upgrade or downgrade, and plugins no
longer in pkg.yml are removed. Running update twice in a row is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *rootDir)
			if err != nil {
				return err
			}
			if refresh {
				if err := a.registry.InvalidateAll(); err != nil {
					return err
				}
				printInfo("Refreshed upstream metadata")
			}
			_, err = a.sync(cmd.Context(), dryRun)
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without installing")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop cached metadata before resolving")
	return cmd
}
