package cli

import (
	"github.com/spf13/cobra"

	"github.com/dropper-mc/dropper/pkg/manifest"
)

// newAddCmd creates the "add" command: record plugins in pkg.yml and
// bring the plugin directory in sync. The manifest is written back once
// the plan was applied, even when individual actions failed: plugins that
// did commit stay tracked instead of being swept away by the next update.
// A failed resolution leaves pkg.yml untouched.
func newAddCmd(rootDir *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "add <name[@constraint]>...",
		Short: "Add plugins to pkg.yml and install them",
		Long: `Add records one or more plugins in pkg.yml and installs them together
with their dependencies. Constraints use the manifest forms:

  dropper add WorldEdit              latest version
  dropper add WorldEdit@6.1.9        exact pin
  dropper add WorldEdit@6.1.*        newest 6.1.x
  dropper add "WorldEdit@>=6.1 <7.0" half-open range`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *rootDir)
			if err != nil {
				return err
			}

			for _, spec := range args {
				entry, err := manifest.ParseSpecifier(spec)
				if err != nil {
					return err
				}
				if err := a.manifest.Add(entry.Name, entry.Constraint); err != nil {
					return err
				}
				printInfo("Adding %s", entry.Specifier())
			}

			summary, syncErr := a.sync(cmd.Context(), dryRun)
			if dryRun || summary == nil {
				return syncErr
			}
			if err := a.manifest.Save(); err != nil {
				return err
			}
			printDetail("Recorded in %s", a.manifest.Path())
			return syncErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without installing")
	return cmd
}
