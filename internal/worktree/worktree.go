// Package worktree creates, removes, lists, and syncs git worktrees for
// isolated jobs, running post-create setup hooks the way the teacher's
// dog kennel wires up a worker's worktree per rig, but generalized to a
// single repository with per-job configuration instead of per-rig config.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nigel-dev/opencode-mission-control/internal/gitmutex"
	"github.com/nigel-dev/opencode-mission-control/internal/gitutil"
)

// ErrDirty is returned by Remove when force is false and the worktree has
// uncommitted or untracked changes.
var ErrDirty = errors.New("worktree has uncommitted changes")

// WorktreeInfo describes a single entry from `git worktree list`.
type WorktreeInfo struct {
	Path   string
	Branch string
	Head   string
	IsMain bool
}

// PostCreateHook describes the setup to run immediately after a worktree
// is created. All paths are relative; Resolve rejects anything else.
type PostCreateHook struct {
	CopyFiles   []string
	SymlinkDirs []string
	Commands    []string
}

// CreateOptions configures Provider.Create.
type CreateOptions struct {
	Branch     string
	BasePath   string
	StartPoint string // defaults to HEAD
	PostCreate PostCreateHook
}

// Provider creates/removes/lists/syncs worktrees against a single
// repository, serializing every mutating git invocation through a shared
// Mutex the way internal/swarm's gitRun callers are expected to.
type Provider struct {
	repoDir string
	mu      *gitmutex.Mutex
	git     *gitutil.Git
}

// New returns a Provider rooted at the main checkout repoDir.
func New(repoDir string, mu *gitmutex.Mutex) *Provider {
	return &Provider{repoDir: repoDir, mu: mu, git: gitutil.New(repoDir)}
}

// Create creates a worktree at opts.BasePath on opts.Branch, creating the
// branch at opts.StartPoint (or HEAD) if it does not already exist, then
// runs the resolved post-create hook. Returns the absolute worktree path.
func (p *Provider) Create(ctx context.Context, opts CreateOptions) (string, error) {
	if err := os.MkdirAll(filepath.Dir(opts.BasePath), 0755); err != nil {
		return "", fmt.Errorf("creating worktree parent dir: %w", err)
	}

	startPoint := opts.StartPoint
	if startPoint == "" {
		startPoint = "HEAD"
	}

	var err error
	p.mu.WithLock(func() error {
		err = p.git.WorktreeAdd(ctx, opts.BasePath, opts.Branch, startPoint)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("git worktree add: %w", err)
	}

	absPath, absErr := filepath.Abs(opts.BasePath)
	if absErr != nil {
		absPath = opts.BasePath
	}

	if err := runPostCreate(ctx, p.repoDir, absPath, opts.PostCreate); err != nil {
		// Hook failures are warned, not fatal; the worktree already exists
		// and the caller owns it regardless (mirrors RunSetupHooks).
		fmt.Printf("warning: post-create hook failed for %s: %v\n", absPath, err)
	}

	return absPath, nil
}

// Remove deletes the worktree at path. If force is false and the
// worktree is dirty, Remove fails with ErrDirty.
func (p *Provider) Remove(ctx context.Context, path string, force bool) error {
	if !force {
		wtGit := gitutil.New(path)
		clean, err := wtGit.StatusClean(ctx)
		if err != nil {
			return fmt.Errorf("checking worktree status: %w", err)
		}
		if !clean {
			return ErrDirty
		}
	}

	var err error
	p.mu.WithLock(func() error {
		err = p.git.WorktreeRemove(ctx, path, force)
		return err
	})
	if err != nil {
		return fmt.Errorf("git worktree remove: %w", err)
	}

	// Best-effort: git sometimes leaves the directory behind when the
	// remove was forced over dirty state.
	if _, statErr := os.Stat(path); statErr == nil {
		_ = os.RemoveAll(path)
	}
	return nil
}

// List parses `git worktree list --porcelain` into WorktreeInfo entries.
// The first entry is the repository's own checkout (IsMain=true).
func (p *Provider) List(ctx context.Context) ([]WorktreeInfo, error) {
	out, err := p.git.WorktreeListPorcelain(ctx)
	if err != nil {
		return nil, fmt.Errorf("git worktree list: %w", err)
	}
	return parsePorcelain(out), nil
}

func parsePorcelain(out string) []WorktreeInfo {
	var infos []WorktreeInfo
	var cur *WorktreeInfo

	flush := func() {
		if cur != nil {
			infos = append(infos, *cur)
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur = &WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if cur != nil {
				cur.Head = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if cur != nil {
				ref := strings.TrimPrefix(line, "branch ")
				cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		}
	}
	flush()

	if len(infos) > 0 {
		infos[0].IsMain = true
	}
	return infos
}

// SyncStrategy is the reconciliation strategy used by Sync.
type SyncStrategy string

const (
	SyncRebase SyncStrategy = "rebase"
	SyncMerge  SyncStrategy = "merge"
)

// SyncSource says where Sync pulls updates from before reconciling.
type SyncSource string

const (
	SyncLocal  SyncSource = "local"
	SyncOrigin SyncSource = "origin"
)

// SyncResult reports the outcome of a Sync call.
type SyncResult struct {
	Success   bool
	Conflicts []string
}

// Sync reconciles the worktree at path against baseBranch using strategy,
// fetching from origin first when source is SyncOrigin. On failure, the
// in-progress rebase/merge is aborted and conflicting files are returned.
func (p *Provider) Sync(ctx context.Context, path string, strategy SyncStrategy, baseBranch string, source SyncSource) (SyncResult, error) {
	wtGit := gitutil.New(path)

	if source == SyncOrigin {
		if err := wtGit.FetchOrigin(ctx); err != nil {
			return SyncResult{}, fmt.Errorf("fetch origin: %w", err)
		}
	}

	ref := baseBranch
	if source == SyncOrigin {
		ref = "origin/" + baseBranch
	}

	var res gitutil.Result
	p.mu.WithLock(func() error {
		switch strategy {
		case SyncRebase:
			res = wtGit.Rebase(ctx, ref)
		default:
			res = wtGit.MergeNoFF(ctx, ref, fmt.Sprintf("merge %s into worktree", ref))
		}
		return nil
	})

	if res.Ok() {
		return SyncResult{Success: true}, nil
	}

	conflicts := conflictFilesFromStatus(ctx, wtGit)
	p.mu.WithLock(func() error {
		if strategy == SyncRebase {
			wtGit.RebaseAbort(ctx)
		} else {
			wtGit.MergeAbort(ctx)
		}
		return nil
	})

	return SyncResult{Success: false, Conflicts: conflicts}, nil
}

func conflictFilesFromStatus(ctx context.Context, g *gitutil.Git) []string {
	res, err := gitutil.GitCommand(ctx, g.Dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil || res.Stdout == "" {
		return nil
	}
	return strings.Split(res.Stdout, "\n")
}
