// Package integration creates, refreshes, and tears down the dedicated
// integration branch and worktree the merge train merges into, grounded
// on internal/swarm's CreateIntegrationBranch/MergeToIntegration/
// AbortMerge/LandToMain family — generalized from a swarm epic id to a
// plan id and from the swarm's own git wrapper to gitutil.
package integration

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nigel-dev/opencode-mission-control/internal/gitmutex"
	"github.com/nigel-dev/opencode-mission-control/internal/gitutil"
	"github.com/nigel-dev/opencode-mission-control/internal/worktree"
	"github.com/nigel-dev/opencode-mission-control/internal/xdg"
)

// BranchName returns the integration branch name for planId.
func BranchName(planId string) string {
	return "mc/integration-" + planId
}

// WorktreePath returns the absolute integration worktree path for planId
// under the project's managed data directory.
func WorktreePath(projectID, planId string) string {
	return filepath.Join(xdg.DataDir(), projectID, "mc-integration-"+planId)
}

// Lifecycle manages the integration branch + worktree for a single
// repository, serializing every mutating call through mu.
type Lifecycle struct {
	repoDir   string
	projectID string
	mu        *gitmutex.Mutex
	repoGit   *gitutil.Git
	wt        *worktree.Provider
}

// New returns a Lifecycle rooted at repoDir.
func New(repoDir, projectID string, mu *gitmutex.Mutex) *Lifecycle {
	return &Lifecycle{
		repoDir:   repoDir,
		projectID: projectID,
		mu:        mu,
		repoGit:   gitutil.New(repoDir),
		wt:        worktree.New(repoDir, mu),
	}
}

// Created is the result of CreateIntegrationBranch.
type Created struct {
	Branch       string
	WorktreePath string
}

// CreateIntegrationBranch computes the branch/worktree for planId. If a
// prior crashed run left them behind, they are torn down first, errors
// ignored, before creating fresh ones at the resolved default branch's
// current commit.
func (l *Lifecycle) CreateIntegrationBranch(ctx context.Context, planId string, postCreate worktree.PostCreateHook) (Created, error) {
	branch := BranchName(planId)
	path := WorktreePath(l.projectID, planId)

	_ = l.DeleteIntegrationBranch(ctx, planId)

	defaultBranch := l.repoGit.DefaultBranch(ctx)
	startPoint, err := l.repoGit.RevParse(ctx, defaultBranch)
	if err != nil {
		// The default branch may not resolve locally; fall back to local HEAD.
		startPoint, err = l.repoGit.RevParse(ctx, "HEAD")
		if err != nil {
			return Created{}, fmt.Errorf("resolving start point: %w", err)
		}
	}

	var branchErr error
	l.mu.WithLock(func() error {
		branchErr = l.repoGit.BranchCreate(ctx, branch, startPoint)
		return branchErr
	})
	if branchErr != nil {
		return Created{}, fmt.Errorf("creating integration branch: %w", branchErr)
	}

	wtPath, err := l.wt.Create(ctx, worktree.CreateOptions{
		Branch:     branch,
		BasePath:   path,
		StartPoint: startPoint,
		PostCreate: postCreate,
	})
	if err != nil {
		return Created{}, fmt.Errorf("creating integration worktree: %w", err)
	}

	return Created{Branch: branch, WorktreePath: wtPath}, nil
}

// ErrNotRegistered is returned by GetIntegrationWorktree when the
// integration worktree is not registered with git.
var ErrNotRegistered = fmt.Errorf("integration worktree not registered")

// GetIntegrationWorktree returns the integration worktree path for
// planId, failing if git does not have it registered.
func (l *Lifecycle) GetIntegrationWorktree(ctx context.Context, planId string) (string, error) {
	path := WorktreePath(l.projectID, planId)
	infos, err := l.wt.List(ctx)
	if err != nil {
		return "", fmt.Errorf("listing worktrees: %w", err)
	}
	for _, info := range infos {
		if info.Path == path {
			return path, nil
		}
	}
	return "", ErrNotRegistered
}

// DeleteIntegrationBranch force-removes the integration worktree
// (ignoring absence) then deletes the branch. Not-found errors are
// tolerated throughout.
func (l *Lifecycle) DeleteIntegrationBranch(ctx context.Context, planId string) error {
	path := WorktreePath(l.projectID, planId)
	branch := BranchName(planId)

	_ = l.wt.Remove(ctx, path, true)

	var err error
	l.mu.WithLock(func() error {
		err = l.repoGit.BranchDelete(ctx, branch)
		return err
	})
	return err
}

// RefreshResult reports the outcome of RefreshIntegrationFromMain.
type RefreshResult struct {
	Success   bool
	Conflicts []string
}

// RefreshIntegrationFromMain fetches origin and rebases the integration
// worktree onto origin/<default>. On conflict, the rebase is aborted and
// the conflicting files are parsed from stderr.
func (l *Lifecycle) RefreshIntegrationFromMain(ctx context.Context, planId string) (RefreshResult, error) {
	path, err := l.GetIntegrationWorktree(ctx, planId)
	if err != nil {
		return RefreshResult{}, err
	}

	wtGit := gitutil.New(path)
	if err := wtGit.FetchOrigin(ctx); err != nil {
		return RefreshResult{}, fmt.Errorf("fetch origin: %w", err)
	}

	defaultBranch := l.repoGit.DefaultBranch(ctx)
	ref := "origin/" + defaultBranch

	var res gitutil.Result
	l.mu.WithLock(func() error {
		res = wtGit.Rebase(ctx, ref)
		return nil
	})

	if res.Ok() {
		return RefreshResult{Success: true}, nil
	}

	conflicts := gitutil.ParseConflictFiles(res.Stderr)
	l.mu.WithLock(func() error {
		wtGit.RebaseAbort(ctx)
		return nil
	})

	return RefreshResult{Success: false, Conflicts: conflicts}, nil
}
