package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRemoveCmd creates the "remove" command: drop plugins from pkg.yml
// and uninstall them. Dependencies pulled in only by removed plugins
// disappear with them; anything still required stays.
func newRemoveCmd(rootDir *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:     "remove <name>...",
		Aliases: []string{"rm"},
		Short:   "Remove plugins from pkg.yml and uninstall them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *rootDir)
			if err != nil {
				return err
			}

			for _, name := range args {
				if !a.manifest.Remove(name) {
					return fmt.Errorf("%s is not in %s", name, a.manifest.Path())
				}
				printInfo("Removing %s", name)
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

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the plan without removing")
	return cmd
}
