package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/config"
	"github.com/nigel-dev/opencode-mission-control/internal/gitmutex"
	"github.com/nigel-dev/opencode-mission-control/internal/integration"
	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
	"github.com/nigel-dev/opencode-mission-control/internal/mergetrain"
	"github.com/nigel-dev/opencode-mission-control/internal/style"
	"github.com/nigel-dev/opencode-mission-control/internal/xdg"
)

func configPath(repo string) string {
	return filepath.Join(repo, ".mission-control", "config.toml")
}

func newQueueCmd() *cobra.Command {
	queue := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drain the merge train queue",
	}
	queue.AddCommand(newQueueListCmd())
	queue.AddCommand(newQueueRunCmd())
	return queue
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs ready to merge, in FIFO order",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _ := cmd.Flags().GetString("repo")
			store := jobstate.New(jobStatePath(repo))

			st, err := store.LoadJobState()
			if err != nil {
				return fmt.Errorf("loading job state: %w", err)
			}

			var ready []jobstate.Job
			for _, j := range st.Jobs {
				if j.PlanStatus == jobstate.PlanReadyMerge {
					ready = append(ready, j)
				}
			}
			if len(ready) == 0 {
				fmt.Println(style.Dim.Render("merge train queue is empty"))
				return nil
			}
			for i, j := range ready {
				fmt.Printf("%d. %s %s (%s)\n", i+1, style.Info.Render(j.ID), j.Name, j.Branch)
			}
			return nil
		},
	}
}

func newQueueRunCmd() *cobra.Command {
	var planID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the merge train for every ready-to-merge job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if planID == "" {
				return fmt.Errorf("--plan is required")
			}

			repo, _ := cmd.Flags().GetString("repo")
			projectID := xdg.ProjectID(repo)
			store := jobstate.New(jobStatePath(repo))

			cfg, err := config.Load(configPath(repo))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			mu := gitmutex.New()
			integrationPath := integration.WorktreePath(projectID, planID)

			st, err := store.LoadJobState()
			if err != nil {
				return fmt.Errorf("loading job state: %w", err)
			}

			train := mergetrain.New(integrationPath, mu, mergetrain.Config{
				TestCommand:   cfg.MergeTrain.TestCommand,
				TestTimeout:   cfg.MergeTrain.TestTimeout.Duration,
				MergeStrategy: mergetrain.MergeStrategy(cfg.MergeTrain.MergeStrategy),
				SetupCommands: cfg.MergeTrain.SetupCommands,
			})

			var queued int
			for _, j := range st.Jobs {
				if j.PlanStatus == jobstate.PlanReadyMerge {
					train.Enqueue(j)
					queued++
				}
			}
			if queued == 0 {
				fmt.Println(style.Dim.Render("nothing ready to merge"))
				return nil
			}

			results := train.ProcessAll(context.Background())
			for i, r := range results {
				fmt.Print(style.ProgressBar((i+1)*100/len(results), 24), " ")
				switch {
				case r.Success:
					fmt.Printf("%s %s merged\n", style.SuccessPrefix, r.JobID)
				case r.Kind == mergetrain.KindConflict:
					fmt.Printf("%s %s conflict in %v\n", style.ErrorPrefix, r.JobID, r.Files)
				default:
					fmt.Printf("%s %s test failure: %s\n", style.ErrorPrefix, r.JobID, r.Output)
				}

				patch := jobResultPatch(r)
				if err := store.UpdateJob(r.JobID, patch); err != nil {
					fmt.Printf("%s failed to record result for %s: %v\n", style.WarningPrefix, r.JobID, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&planID, "plan", "", "plan id whose integration worktree backs the merge train")
	return cmd
}

func jobResultPatch(r mergetrain.MergeResult) func(*jobstate.Job) {
	return func(j *jobstate.Job) {
		if r.Success {
			j.PlanStatus = jobstate.PlanMerged
			j.MergedAt = r.MergedAt
			return
		}
		if r.Kind == mergetrain.KindConflict {
			j.PlanStatus = jobstate.PlanConflict
		} else {
			j.PlanStatus = jobstate.PlanFailed
		}
		j.Error = r.Output
	}
}
