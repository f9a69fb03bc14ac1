package gitutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrGit is wrapped into errors returned for a non-zero git exit so
// callers can match on it with errors.Is while still seeing the raw
// stderr via the error message, mirroring internal/swarm's SwarmGitError
// ("ZFC: callers observe the raw output and decide what to do").
var ErrGit = errors.New("git command failed")

// GitError carries the raw output of a failed git invocation.
type GitError struct {
	Args   []string
	Result Result
}

func (e *GitError) Error() string {
	if e.Result.Stderr != "" {
		return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Result.Stderr)
	}
	return fmt.Sprintf("git %s: exit %d", strings.Join(e.Args, " "), e.Result.ExitCode)
}

func (e *GitError) Unwrap() error { return ErrGit }

// Git is a thin, directory-bound wrapper over the specific git subcommand
// surface this module needs (spec §6). Every mutating method here is
// expected to be called while holding an internal/gitmutex.Mutex; Git
// itself does no locking.
type Git struct {
	Dir string
}

// New returns a Git bound to dir.
func New(dir string) *Git {
	return &Git{Dir: dir}
}

func (g *Git) run(ctx context.Context, args ...string) (Result, error) {
	return GitCommand(ctx, g.Dir, args...)
}

func (g *Git) runOk(ctx context.Context, args ...string) (Result, error) {
	res, err := g.run(ctx, args...)
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, &GitError{Args: args, Result: res}
	}
	return res, nil
}

// RevParse resolves ref (defaulting to HEAD when ref is empty) to a commit.
func (g *Git) RevParse(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	res, err := g.runOk(ctx, "rev-parse", ref)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// BranchExists reports whether branch exists locally.
func (g *Git) BranchExists(ctx context.Context, branch string) (bool, error) {
	res, err := g.run(ctx, "branch", "--list", branch)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// BranchCreate creates branch at startPoint (defaulting to HEAD).
func (g *Git) BranchCreate(ctx context.Context, branch, startPoint string) error {
	if startPoint == "" {
		startPoint = "HEAD"
	}
	_, err := g.runOk(ctx, "branch", branch, startPoint)
	return err
}

// BranchDelete force-deletes a local branch. Tolerates "not found".
func (g *Git) BranchDelete(ctx context.Context, branch string) error {
	res, err := g.run(ctx, "branch", "-D", branch)
	if err != nil {
		return err
	}
	if !res.Ok() && !strings.Contains(res.Stderr, "not found") {
		return &GitError{Args: []string{"branch", "-D", branch}, Result: res}
	}
	return nil
}

// DefaultBranch resolves the remote's default branch from
// refs/remotes/origin/HEAD, falling back to "main" when it is unset.
func (g *Git) DefaultBranch(ctx context.Context) string {
	res, err := g.run(ctx, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil || !res.Ok() {
		return "main"
	}
	// Output looks like "refs/remotes/origin/main".
	parts := strings.Split(res.Stdout, "/")
	if len(parts) == 0 {
		return "main"
	}
	name := parts[len(parts)-1]
	if name == "" {
		return "main"
	}
	return name
}

// WorktreeAdd creates a new worktree at path on branch, creating the
// branch at startPoint when it does not already exist.
func (g *Git) WorktreeAdd(ctx context.Context, path, branch, startPoint string) error {
	exists, err := g.BranchExists(ctx, branch)
	if err != nil {
		return err
	}

	var args []string
	if exists {
		args = []string{"worktree", "add", path, branch}
	} else {
		args = []string{"worktree", "add", "-b", branch, path}
		if startPoint != "" {
			args = append(args, startPoint)
		}
	}

	_, err = g.runOk(ctx, args...)
	return err
}

// WorktreeRemove removes a worktree, forcing removal of dirty worktrees
// when force is true.
func (g *Git) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := g.runOk(ctx, args...)
	return err
}

// WorktreeListPorcelain returns the raw `git worktree list --porcelain`
// output for the caller to parse.
func (g *Git) WorktreeListPorcelain(ctx context.Context) (string, error) {
	res, err := g.runOk(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// MergeSquash runs `git merge --squash <branch>`.
func (g *Git) MergeSquash(ctx context.Context, branch string) Result {
	res, _ := g.run(ctx, "merge", "--squash", branch)
	return res
}

// MergeNoFF runs `git merge --no-ff -m <msg> <branch>`.
func (g *Git) MergeNoFF(ctx context.Context, branch, msg string) Result {
	res, _ := g.run(ctx, "merge", "--no-ff", "-m", msg, branch)
	return res
}

// MergeAbort aborts an in-progress merge. Best-effort: errors are ignored
// by convention at the call site (spec §7 "cleanup paths are best-effort").
func (g *Git) MergeAbort(ctx context.Context) {
	_, _ = g.run(ctx, "merge", "--abort")
}

// Commit runs `git commit -m <msg>`.
func (g *Git) Commit(ctx context.Context, msg string) Result {
	res, _ := g.run(ctx, "commit", "-m", msg)
	return res
}

// ResetHard runs `git reset --hard <ref>`, best-effort.
func (g *Git) ResetHard(ctx context.Context, ref string) {
	_, _ = g.run(ctx, "reset", "--hard", ref)
}

// CleanFD runs `git clean -fd`, best-effort.
func (g *Git) CleanFD(ctx context.Context) {
	_, _ = g.run(ctx, "clean", "-fd")
}

// FetchOrigin runs `git fetch origin`.
func (g *Git) FetchOrigin(ctx context.Context) error {
	_, err := g.runOk(ctx, "fetch", "origin")
	return err
}

// Rebase runs `git rebase <ref>`.
func (g *Git) Rebase(ctx context.Context, ref string) Result {
	res, _ := g.run(ctx, "rebase", ref)
	return res
}

// RebaseAbort runs `git rebase --abort`, best-effort.
func (g *Git) RebaseAbort(ctx context.Context) {
	_, _ = g.run(ctx, "rebase", "--abort")
}

// StatusClean reports whether the worktree has a clean tree.
func (g *Git) StatusClean(ctx context.Context) (bool, error) {
	res, err := g.runOk(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return res.Stdout == "", nil
}

// ParseConflictFiles scans stderr for "CONFLICT (<kind>): <path>" lines,
// stripping an optional "Merge conflict in " prefix from the captured
// path. If none matched, the trimmed stderr is returned as a
// single-element slice (or nil when stderr is blank).
func ParseConflictFiles(stderr string) []string {
	var files []string
	for _, line := range strings.Split(stderr, "\n") {
		idx := strings.Index(line, "CONFLICT (")
		if idx < 0 {
			continue
		}
		rest := line[idx:]
		closeParen := strings.Index(rest, "): ")
		if closeParen < 0 {
			continue
		}
		path := strings.TrimSpace(rest[closeParen+3:])
		path = strings.TrimPrefix(path, "Merge conflict in ")
		if path != "" {
			files = append(files, path)
		}
	}
	if len(files) > 0 {
		return files
	}
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		return nil
	}
	return []string{trimmed}
}
