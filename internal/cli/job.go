package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
	"github.com/nigel-dev/opencode-mission-control/internal/style"
	"github.com/nigel-dev/opencode-mission-control/internal/suggest"
)

func newJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show a single job's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _ := cmd.Flags().GetString("repo")
			store := jobstate.New(jobStatePath(repo))

			job, err := store.GetJob(args[0])
			if err == nil {
				printJob(job)
				return nil
			}
			if !errors.Is(err, jobstate.ErrNotFound) {
				return err
			}

			st, loadErr := store.LoadJobState()
			if loadErr != nil {
				return loadErr
			}
			ids := make([]string, 0, len(st.Jobs))
			for _, j := range st.Jobs {
				ids = append(ids, j.ID)
			}
			suggestions := suggest.FindSimilar(args[0], ids, 3)
			fmt.Print(style.SuggestionBox(
				fmt.Sprintf("no job %q", args[0]),
				suggestions,
				"run `mc status` to list every tracked job",
			))
			return err
		},
	}
}

func printJob(j jobstate.Job) {
	fmt.Printf("%s  %s\n", style.Bold.Render(j.ID), j.Name)
	fmt.Printf("  status:      %s\n", j.Status)
	if j.PlanStatus != "" {
		fmt.Printf("  plan status: %s\n", j.PlanStatus)
	}
	fmt.Printf("  branch:      %s\n", j.Branch)
	fmt.Printf("  worktree:    %s\n", j.WorktreePath)
	if j.Error != "" {
		fmt.Printf("  error:       %s\n", style.Error.Render(j.Error))
	}
}
