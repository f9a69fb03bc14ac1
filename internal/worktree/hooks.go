package worktree

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// alwaysSymlinked is appended to every resolved symlinkDirs list
// regardless of config or override contents.
const alwaysSymlinked = ".opencode"

// ResolvePostCreateHook composes config defaults with per-job overrides
// into a single PostCreateHook, the way the rig-level setup-hooks
// resolver layers config onto per-worker overrides. Commands from
// defaults run before commands from overrides.
func ResolvePostCreateHook(defaults, overrides PostCreateHook) PostCreateHook {
	return PostCreateHook{
		CopyFiles:   resolveCopyFiles(append(append([]string{}, defaults.CopyFiles...), overrides.CopyFiles...)),
		SymlinkDirs: resolveSymlinkDirs(append(append([]string{}, defaults.SymlinkDirs...), overrides.SymlinkDirs...)),
		Commands:    append(append([]string{}, defaults.Commands...), overrides.Commands...),
	}
}

// resolveCopyFiles dedupes and normalizes entries. If any entry is
// absolute or contains a ".." segment, the whole list is discarded —
// copying outside the worktree is never partially honored.
func resolveCopyFiles(entries []string) []string {
	normalized, bad := normalizeEntries(entries)
	if bad {
		return nil
	}
	return normalized
}

// resolveSymlinkDirs dedupes and normalizes entries, dropping only the
// offending ones when an entry is unsafe, then always appends
// alwaysSymlinked.
func resolveSymlinkDirs(entries []string) []string {
	var safe []string
	seen := map[string]bool{}
	for _, e := range entries {
		e = strings.TrimRight(e, "/")
		if e == "" || isUnsafePath(e) {
			continue
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		safe = append(safe, e)
	}
	if !seen[alwaysSymlinked] {
		safe = append(safe, alwaysSymlinked)
	}
	return safe
}

func normalizeEntries(entries []string) ([]string, bool) {
	var out []string
	seen := map[string]bool{}
	for _, e := range entries {
		e = strings.TrimRight(e, "/")
		if e == "" {
			continue
		}
		if isUnsafePath(e) {
			return nil, true
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, false
}

func isUnsafePath(p string) bool {
	if filepath.IsAbs(p) {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// runPostCreate runs the three post-create steps in order: copy files
// from mainRepoDir into worktreeDir, create directory symlinks, then run
// commands with worktreeDir as the working directory.
func runPostCreate(ctx context.Context, mainRepoDir, worktreeDir string, hook PostCreateHook) error {
	for _, rel := range hook.CopyFiles {
		if err := copyFile(filepath.Join(mainRepoDir, rel), filepath.Join(worktreeDir, rel)); err != nil {
			return fmt.Errorf("copying %s: %w", rel, err)
		}
	}

	for _, rel := range hook.SymlinkDirs {
		target := filepath.Join(worktreeDir, rel)
		source := filepath.Join(mainRepoDir, rel)
		if err := replaceSymlink(source, target); err != nil {
			return fmt.Errorf("symlinking %s: %w", rel, err)
		}
	}

	for _, cmdline := range hook.Commands {
		if err := runCommand(ctx, worktreeDir, cmdline); err != nil {
			return fmt.Errorf("running %q: %w", cmdline, err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func replaceSymlink(source, target string) error {
	if _, err := os.Lstat(target); err == nil {
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	return os.Symlink(source, target)
}

func runCommand(ctx context.Context, dir, cmdline string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
