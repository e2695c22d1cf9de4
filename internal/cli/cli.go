// Package cli implements the dropper command-line interface.
//
// This package provides commands for managing the plugin manifest
// (add, remove), synchronizing the plugin directory with it (update),
// inspecting the installed set (list), and refreshing cached upstream
// metadata (refresh). The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
//   - add: Add plugins to pkg.yml and install them
//   - update: Resolve pkg.yml and bring the plugin directory in sync
//   - remove: Remove plugins from pkg.yml and uninstall them
//   - list: Show manifest entries and their installed versions
//   - refresh: Drop cached upstream metadata
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers
// are passed through context.Context so the resolution and install
// pipeline can report structured progress.
package cli
