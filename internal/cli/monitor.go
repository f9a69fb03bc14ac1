package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
	"github.com/nigel-dev/opencode-mission-control/internal/monitor"
	"github.com/nigel-dev/opencode-mission-control/internal/style"
	"github.com/nigel-dev/opencode-mission-control/internal/tmux"
)

func newMonitorCmd() *cobra.Command {
	var pollInterval time.Duration
	var idleThreshold time.Duration

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch running jobs and mark them completed/failed as their sessions finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, _ := cmd.Flags().GetString("repo")
			store := jobstate.New(jobStatePath(repo))

			m, err := monitor.New(store, tmux.New(), monitor.Config{
				PollInterval:  pollInterval,
				IdleThreshold: idleThreshold,
			})
			if err != nil {
				return fmt.Errorf("starting monitor: %w", err)
			}

			m.On(monitor.EventComplete, func(e monitor.Event) {
				fmt.Printf("%s %s completed\n", style.SuccessPrefix, e.JobID)
			})
			m.On(monitor.EventFailed, func(e monitor.Event) {
				fmt.Printf("%s %s failed\n", style.ErrorPrefix, e.JobID)
			})

			m.Start()
			defer m.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh
			return nil
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 10*time.Second, "how often to poll job sessions")
	cmd.Flags().DurationVar(&idleThreshold, "idle-threshold", 30*time.Second, "how long a pane must be unchanged before it is considered idle")
	return cmd
}
