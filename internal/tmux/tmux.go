// Package tmux wraps the handful of tmux subcommands the job monitor
// needs to probe a session's pane, grounded on the pack's own tmux
// wrapper (internal/tmux.Tmux, from the sibling fork) but trimmed to the
// read-side operations: has-session, capture-pane, and pane exit status.
package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Common errors, mirrored from the wider pack's tmux wrapper.
var (
	ErrNoServer        = errors.New("no tmux server running")
	ErrSessionNotFound = errors.New("session not found")
)

// Tmux wraps tmux pane-probing operations via subprocess.
type Tmux struct{}

// New creates a Tmux wrapper.
func New() *Tmux {
	return &Tmux{}
}

func (t *Tmux) run(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return "", t.wrapError(err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (t *Tmux) wrapError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") ||
		strings.Contains(stderr, "server exited unexpectedly") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "can't find") || strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "no current target") {
		return ErrSessionNotFound
	}
	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	}
	return fmt.Errorf("tmux %s: %w", args[0], err)
}

// HasSession reports whether target exists.
func (t *Tmux) HasSession(target string) (bool, error) {
	_, err := t.run("has-session", "-t", target)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrNoServer) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CapturePaneAll captures all scrollback content of target's pane.
func (t *Tmux) CapturePaneAll(target string) (string, error) {
	return t.run("capture-pane", "-p", "-t", target, "-S", "-")
}

// PaneExitStatus returns the exit status of target's pane when tmux has
// kept it around after the underlying command exited (remain-on-exit).
// ok is false when the pane is gone entirely or the status could not be
// determined, which the caller treats as an undefined exit status.
func (t *Tmux) PaneExitStatus(target string) (status int, ok bool, err error) {
	out, runErr := t.run("list-panes", "-t", target, "-F", "#{pane_dead} #{pane_dead_status}")
	if runErr != nil {
		if errors.Is(runErr, ErrSessionNotFound) || errors.Is(runErr, ErrNoServer) {
			return 0, false, nil
		}
		return 0, false, runErr
	}

	parts := strings.Fields(out)
	if len(parts) != 2 || parts[0] != "1" {
		return 0, false, nil
	}

	code, parseErr := strconv.Atoi(parts[1])
	if parseErr != nil {
		return 0, false, nil
	}
	return code, true, nil
}
