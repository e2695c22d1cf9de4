package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropper-mc/dropper/pkg/install"
)

// newListCmd creates the "list" command: show manifest entries alongside
// what is actually installed.
func newListCmd(rootDir *string) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show manifest entries and their installed versions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *rootDir)
			if err != nil {
				return err
			}
			st, err := a.store.Load()
			if err != nil {
				return err
			}

			if len(a.manifest.Entries) == 0 && len(st.Plugins) == 0 {
				printInfo("No plugins in %s", a.manifest.Path())
				return nil
			}

			fmt.Println(StyleTitle.Render("Plugins"))
			seen := make(map[string]bool, len(a.manifest.Entries))
			for _, e := range a.manifest.Entries {
				seen[e.Name] = true
				printEntry(e.Specifier(), st.Plugins[e.Name])
			}

			// Installed but no longer wanted: next update removes these.
			for _, name := range sortedNames(st.Plugins) {
				if seen[name] {
					continue
				}
				rec := st.Plugins[name]
				printKeyValue(name, fmt.Sprintf("%s %s", rec.Version,
					StyleWarning.Render("(not in manifest, removed on next update)")))
			}
			return nil
		},
	}
}

func printEntry(specifier string, rec install.Record) {
	if rec.Name == "" {
		printKeyValue(specifier, StyleDim.Render("not installed"))
		return
	}
	printKeyValue(specifier, fmt.Sprintf("%s %s", rec.Version,
		StyleDim.Render("from "+rec.SourceID)))
}
