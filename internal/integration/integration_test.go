package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/nigel-dev/opencode-mission-control/internal/gitmutex"
	"github.com/nigel-dev/opencode-mission-control/internal/worktree"
)

func skipIfNoGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available, skipping integration test")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	skipIfNoGit(t)

	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")

	return dir
}

func newLifecycle(t *testing.T, repoDir string) (*Lifecycle, string) {
	t.Helper()
	dataDir := t.TempDir()
	os.Setenv("XDG_DATA_HOME", dataDir)
	t.Cleanup(func() { os.Unsetenv("XDG_DATA_HOME") })

	return New(repoDir, "proj-1", gitmutex.New()), dataDir
}

func TestLifecycle_CreateGetDelete(t *testing.T) {
	repoDir := initRepo(t)
	lc, _ := newLifecycle(t, repoDir)
	ctx := context.Background()

	created, err := lc.CreateIntegrationBranch(ctx, "plan-1", worktree.PostCreateHook{})
	if err != nil {
		t.Fatalf("CreateIntegrationBranch: %v", err)
	}
	if created.Branch != "mc/integration-plan-1" {
		t.Errorf("Branch = %q", created.Branch)
	}

	path, err := lc.GetIntegrationWorktree(ctx, "plan-1")
	if err != nil {
		t.Fatalf("GetIntegrationWorktree: %v", err)
	}
	if path != created.WorktreePath {
		t.Errorf("path = %q, want %q", path, created.WorktreePath)
	}

	if err := lc.DeleteIntegrationBranch(ctx, "plan-1"); err != nil {
		t.Fatalf("DeleteIntegrationBranch: %v", err)
	}

	if _, err := lc.GetIntegrationWorktree(ctx, "plan-1"); err != ErrNotRegistered {
		t.Errorf("GetIntegrationWorktree after delete = %v, want ErrNotRegistered", err)
	}
}

func TestLifecycle_CreateTearsDownPriorCrashedRun(t *testing.T) {
	repoDir := initRepo(t)
	lc, _ := newLifecycle(t, repoDir)
	ctx := context.Background()

	first, err := lc.CreateIntegrationBranch(ctx, "plan-2", worktree.PostCreateHook{})
	if err != nil {
		t.Fatalf("first CreateIntegrationBranch: %v", err)
	}

	second, err := lc.CreateIntegrationBranch(ctx, "plan-2", worktree.PostCreateHook{})
	if err != nil {
		t.Fatalf("second CreateIntegrationBranch: %v", err)
	}
	if second.WorktreePath != first.WorktreePath {
		t.Errorf("expected stable worktree path across recreate, got %q vs %q", second.WorktreePath, first.WorktreePath)
	}
}

func TestDeleteIntegrationBranch_ToleratesAbsence(t *testing.T) {
	repoDir := initRepo(t)
	lc, _ := newLifecycle(t, repoDir)

	if err := lc.DeleteIntegrationBranch(context.Background(), "never-created"); err != nil {
		t.Errorf("DeleteIntegrationBranch of nonexistent plan should be tolerated, got %v", err)
	}
}
