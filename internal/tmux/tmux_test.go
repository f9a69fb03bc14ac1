package tmux

import (
	"fmt"
	"os/exec"
	"testing"
	"time"
)

func skipIfNoTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available, skipping integration test")
	}
}

func uniqueSessionName(t *testing.T) string {
	return fmt.Sprintf("mc-test-%d", time.Now().UnixNano())
}

func TestHasSession_UnknownTargetIsFalse(t *testing.T) {
	skipIfNoTmux(t)
	tm := New()

	ok, err := tm.HasSession("definitely-not-a-real-session-xyz")
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if ok {
		t.Error("expected HasSession to report false for unknown session")
	}
}

func TestHasSession_CreatedSessionIsTrue(t *testing.T) {
	skipIfNoTmux(t)
	tm := New()
	name := uniqueSessionName(t)

	if out, err := exec.Command("tmux", "new-session", "-d", "-s", name).CombinedOutput(); err != nil {
		t.Skipf("could not create tmux session (no server in this sandbox): %v\n%s", err, out)
	}
	defer exec.Command("tmux", "kill-session", "-t", name).Run()

	ok, err := tm.HasSession(name)
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if !ok {
		t.Error("expected HasSession to report true for a live session")
	}
}

func TestCapturePaneAll_ReturnsContent(t *testing.T) {
	skipIfNoTmux(t)
	tm := New()
	name := uniqueSessionName(t)

	if out, err := exec.Command("tmux", "new-session", "-d", "-s", name).CombinedOutput(); err != nil {
		t.Skipf("could not create tmux session: %v\n%s", err, out)
	}
	defer exec.Command("tmux", "kill-session", "-t", name).Run()

	if _, err := tm.CapturePaneAll(name); err != nil {
		t.Fatalf("CapturePaneAll: %v", err)
	}
}

func TestPaneExitStatus_UnknownTargetIsUndefined(t *testing.T) {
	skipIfNoTmux(t)
	tm := New()

	_, ok, err := tm.PaneExitStatus("definitely-not-a-real-session-xyz")
	if err != nil {
		t.Fatalf("PaneExitStatus: %v", err)
	}
	if ok {
		t.Error("expected undefined exit status for unknown target")
	}
}
