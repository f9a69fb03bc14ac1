// Package cli wires the mc command tree with cobra, the way the
// teacher's own CLI entrypoint delegates every subcommand to its root.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/ui"
)

// RootCmd builds the mc root command and attaches every subcommand.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mc",
		Short:         "Drive parallel coding jobs and their merge train",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("repo", ".", "repository root the job table and merge train operate on")
	root.PersistentFlags().String("theme", "", "CLI color theme (auto, dark, light)")

	cobra.OnInitialize(func() {
		theme, _ := root.PersistentFlags().GetString("theme")
		ui.InitTheme(theme)
		ui.ApplyThemeMode()
	})

	root.AddCommand(newStatusCmd())
	root.AddCommand(newQueueCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newJobCmd())

	return root
}
