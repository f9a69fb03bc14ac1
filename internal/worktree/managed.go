package worktree

import (
	"path/filepath"
	"strings"

	"github.com/nigel-dev/opencode-mission-control/internal/xdg"
)

// ManagedInfo is the result of checking whether a path lives inside a
// worktree this orchestrator manages.
type ManagedInfo struct {
	IsManaged    bool
	WorktreePath string
	JobName      string
}

// IsInManagedWorktree reports whether path falls under
// <dataDir>/<projectID>/<jobName>/..., returning the job name (the first
// path segment under projectID) when it does.
func IsInManagedWorktree(path, projectID string) ManagedInfo {
	root := filepath.Join(xdg.DataDir(), projectID)

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ManagedInfo{}
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ManagedInfo{}
	}

	return ManagedInfo{
		IsManaged:    true,
		WorktreePath: absPath,
		JobName:      segments[0],
	}
}
