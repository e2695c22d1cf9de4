package cli

import (
	"github.com/spf13/cobra"
)

// newRefreshCmd creates the "refresh" command: drop cached upstream
// metadata so the next resolution re-queries every source.
func newRefreshCmd(rootDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [name...]",
		Short: "Drop cached upstream metadata",
		Long: `Refresh invalidates the metadata cache, either for the named plugins
or entirely. The next add or update re-queries every configured source
instead of trusting entries that are still within their TTL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *rootDir)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if err := a.registry.InvalidateAll(); err != nil {
					return err
				}
				printSuccess("Cleared all cached metadata")
				return nil
			}
			for _, name := range args {
				if err := a.registry.Invalidate(name); err != nil {
					return err
				}
				printSuccess("Cleared cached metadata for %s", name)
			}
			return nil
		},
	}
}
