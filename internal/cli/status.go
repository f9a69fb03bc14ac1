package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
	"github.com/nigel-dev/opencode-mission-control/internal/style"
	"github.com/nigel-dev/opencode-mission-control/internal/ui"
	"github.com/nigel-dev/opencode-mission-control/internal/xdg"
)

func jobStatePath(repo string) string {
	return filepath.Join(xdg.DataDir(), xdg.ProjectID(repo), "jobs.json")
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List known jobs and their current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _ := cmd.Flags().GetString("repo")
			store := jobstate.New(jobStatePath(repo))

			st, err := store.LoadJobState()
			if err != nil {
				return fmt.Errorf("loading job state: %w", err)
			}
			if len(st.Jobs) == 0 {
				fmt.Println(style.Dim.Render("no jobs tracked yet"))
				return nil
			}

			table := style.NewTable(
				style.Column{Name: "ID", Width: 12},
				style.Column{Name: "NAME", Width: 20},
				style.Column{Name: "STATUS", Width: 14},
				style.Column{Name: "PLAN", Width: 14},
				style.Column{Name: "BRANCH", Width: 20},
			)
			for _, j := range st.Jobs {
				plan := string(j.PlanStatus)
				if plan == "" {
					plan = "-"
				}
				table.AddRow(
					j.ID,
					j.Name,
					ui.RenderStatusIcon(string(j.Status))+" "+ui.RenderStatus(string(j.Status)),
					plan,
					j.Branch,
				)
			}
			fmt.Print(table.Render())
			return nil
		},
	}
	return cmd
}
