package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	version string // semantic version (e.g., "v1.2.3")
	commit  string // git commit SHA
	date    string // build timestamp
)

// SetVersion sets the version information displayed by --version.
// This is typically called by the main package with values injected via
// ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the dropper CLI and returns an error if any command fails.
//
// The function sets up the root command with all subcommands, configures
// logging based on the --verbose flag, and executes the command tree.
// The logger is attached to the context and accessible to all commands
// via loggerFromContext.
func Execute(ctx context.Context) error {
	var (
		verbose bool
		rootDir string
	)

	root := &cobra.Command{
		Use:          "dropper",
		Short:        "Dropper keeps a Minecraft server's plugins in sync with pkg.yml",
		Long:         `Dropper is a package manager for Minecraft server plugins: declare the plugins you want in pkg.yml, and dropper resolves versions across upstream sources, downloads the jars, and keeps the plugin directory in sync.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("dropper %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&rootDir, "dir", "C", ".", "server root directory containing pkg.yml")

	root.AddCommand(newAddCmd(&rootDir))
	root.AddCommand(newUpdateCmd(&rootDir))
	root.AddCommand(newRemoveCmd(&rootDir))
	root.AddCommand(newListCmd(&rootDir))
	root.AddCommand(newRefreshCmd(&rootDir))

	return root.ExecuteContext(ctx)
}
