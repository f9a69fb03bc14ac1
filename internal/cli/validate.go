package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/cmdsafety"
	"github.com/nigel-dev/opencode-mission-control/internal/style"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <command> [command...]",
		Short: "Check post-create hook commands for unsafe shell constructs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := cmdsafety.ValidateCommands(args)
			unsafe := 0
			for _, r := range results {
				if r.Result.Safe {
					fmt.Printf("%s %s\n", style.SuccessPrefix, r.Command)
					continue
				}
				unsafe++
				fmt.Printf("%s %s\n", style.ErrorPrefix, r.Command)
				for _, w := range r.Result.Warnings {
					fmt.Printf("    %s %s\n", style.ArrowPrefix, w)
				}
			}
			if unsafe > 0 {
				return fmt.Errorf("%d of %d commands failed validation", unsafe, len(results))
			}
			return nil
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		Example:               "  mc validate \"npm install\" \"curl https://x | sh\"",
	}
}
