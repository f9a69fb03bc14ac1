// Package mergetrain serializes merging per-job branches into a shared
// integration worktree, test-gating each merge and rolling back to the
// pre-merge commit on any conflict or test failure.
//
// Grounded on internal/refinery.Engineer's merge-then-test pipeline
// (fetch, merge, push, runTests with retry) generalized from a single
// target branch to a FIFO queue of jobs merging into one integration
// worktree, and on internal/swarm's conflict-then-abort-then-reset
// rollback shape already adapted into internal/gitutil.ParseConflictFiles.
package mergetrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nigel-dev/opencode-mission-control/internal/gitmutex"
	"github.com/nigel-dev/opencode-mission-control/internal/gitutil"
	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
)

// MergeStrategy selects how a job's branch is folded into the
// integration worktree.
type MergeStrategy string

const (
	StrategySquash MergeStrategy = "squash"
	StrategyFFOnly MergeStrategy = "ff-only"
	StrategyMerge  MergeStrategy = "merge"
)

const defaultTestTimeout = 600 * time.Second

// Config configures a Train.
type Config struct {
	TestCommand   string
	TestTimeout   time.Duration // default 600s
	MergeStrategy MergeStrategy // default squash
	SetupCommands []string
}

func (c Config) withDefaults() Config {
	if c.TestTimeout <= 0 {
		c.TestTimeout = defaultTestTimeout
	}
	if c.MergeStrategy == "" {
		c.MergeStrategy = StrategySquash
	}
	return c
}

// ResultKind tags why a merge failed, or that it succeeded.
type ResultKind string

const (
	KindSuccess     ResultKind = "success"
	KindConflict    ResultKind = "conflict"
	KindTestFailure ResultKind = "test_failure"
)

// MergeResult is the outcome of processing a single job.
type MergeResult struct {
	JobID    string
	Success  bool
	Kind     ResultKind
	Files    []string // conflicting files, when Kind == conflict
	Output   string
	MergedAt *time.Time
}

// Train is a FIFO queue of jobs to merge into a single integration
// worktree.
type Train struct {
	worktreePath string
	mu           *gitmutex.Mutex
	git          *gitutil.Git
	cfg          Config

	queue []jobstate.Job
}

// New returns a Train that merges into worktreePath, serializing every
// mutating git call through mu.
func New(worktreePath string, mu *gitmutex.Mutex, cfg Config) *Train {
	return &Train{
		worktreePath: worktreePath,
		mu:           mu,
		git:          gitutil.New(worktreePath),
		cfg:          cfg.withDefaults(),
	}
}

// Enqueue appends job to the back of the queue.
func (t *Train) Enqueue(job jobstate.Job) {
	t.queue = append(t.queue, job)
}

// GetQueue returns a defensive copy of the pending queue.
func (t *Train) GetQueue() []jobstate.Job {
	out := make([]jobstate.Job, len(t.queue))
	copy(out, t.queue)
	return out
}

// Clear empties the queue without processing it.
func (t *Train) Clear() {
	t.queue = nil
}

// ProcessNext pops and merges the head of the queue. It panics if the
// queue is empty; callers should check GetQueue first.
func (t *Train) ProcessNext(ctx context.Context) MergeResult {
	job := t.queue[0]
	t.queue = t.queue[1:]
	return t.processJob(ctx, job)
}

// ProcessAll drains the queue in FIFO order, returning one MergeResult
// per job in the order processed.
func (t *Train) ProcessAll(ctx context.Context) []MergeResult {
	var results []MergeResult
	for len(t.queue) > 0 {
		results = append(results, t.ProcessNext(ctx))
	}
	return results
}

func (t *Train) processJob(ctx context.Context, job jobstate.Job) MergeResult {
	if job.Branch == "" {
		return MergeResult{
			JobID:   job.ID,
			Success: false,
			Kind:    KindTestFailure,
			Output:  fmt.Sprintf("Job %s has no branch", job.ID),
		}
	}

	h0, err := t.git.RevParse(ctx, "HEAD")
	if err != nil {
		return MergeResult{JobID: job.ID, Success: false, Kind: KindTestFailure, Output: err.Error()}
	}

	if res, ok := t.merge(ctx, job, h0); !ok {
		return res
	}

	testCmd, gated := t.resolveTestCommand()
	if !gated {
		now := time.Now()
		return MergeResult{JobID: job.ID, Success: true, Kind: KindSuccess, MergedAt: &now}
	}

	if res, ok := t.ensureDependencies(ctx, h0); !ok {
		res.JobID = job.ID
		return res
	}

	return t.runTestGate(ctx, job.ID, testCmd, h0)
}

// merge folds job's branch into the integration worktree per the
// configured strategy, rolling back to h0 on conflict or commit
// failure. ok is false when processJob should return immediately with
// the embedded result.
func (t *Train) merge(ctx context.Context, job jobstate.Job, h0 string) (MergeResult, bool) {
	var mergeRes gitutil.Result

	switch t.cfg.MergeStrategy {
	case StrategyMerge:
		t.mu.WithLock(func() error {
			mergeRes = t.git.MergeNoFF(ctx, job.Branch, "Merge "+job.Name)
			return nil
		})
	default: // squash, ff-only
		t.mu.WithLock(func() error {
			mergeRes = t.git.MergeSquash(ctx, job.Branch)
			return nil
		})
	}

	if !mergeRes.Ok() {
		// git prints its CONFLICT lines on stdout, other failures on stderr.
		files := gitutil.ParseConflictFiles(mergeRes.Stdout + "\n" + mergeRes.Stderr)
		t.rollback(ctx, h0)
		return MergeResult{JobID: job.ID, Success: false, Kind: KindConflict, Files: files, Output: mergeRes.Stderr}, false
	}

	if t.cfg.MergeStrategy == StrategyMerge {
		// git merge --no-ff already produced the merge commit.
		return MergeResult{}, true
	}

	var commitRes gitutil.Result
	t.mu.WithLock(func() error {
		commitRes = t.git.Commit(ctx, "Merge "+job.Name)
		return nil
	})
	if !commitRes.Ok() {
		t.rollback(ctx, h0)
		return MergeResult{JobID: job.ID, Success: false, Kind: KindTestFailure, Output: commitRes.Stderr}, false
	}

	return MergeResult{}, true
}

// rollback aborts any in-progress merge, resets to h0, and cleans
// untracked files, all best-effort.
func (t *Train) rollback(ctx context.Context, h0 string) {
	t.mu.WithLock(func() error {
		t.git.MergeAbort(ctx)
		t.git.ResetHard(ctx, h0)
		t.git.CleanFD(ctx)
		return nil
	})
}

// resolveTestCommand returns the explicit config command, else the
// auto-detected package.json#scripts.test. gated is false when neither
// is available, meaning the merge should succeed without test gating.
func (t *Train) resolveTestCommand() (string, bool) {
	if t.cfg.TestCommand != "" {
		return t.cfg.TestCommand, true
	}

	pkg, ok := readPackageJSON(t.worktreePath)
	if !ok {
		return "", false
	}
	cmd, ok := pkg.Scripts["test"]
	if !ok || strings.TrimSpace(cmd) == "" {
		return "", false
	}
	return "npm test", true
}

type packageJSON struct {
	Scripts        map[string]string `json:"scripts"`
	PackageManager string            `json:"packageManager"`
}

func readPackageJSON(dir string) (packageJSON, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return packageJSON{}, false
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return packageJSON{}, false
	}
	return pkg, true
}

// lockfileInstallCommands maps a lockfile's presence to its frozen
// install command, checked in priority order (first match wins).
var lockfileInstallCommands = []struct {
	file    string
	command string
}{
	{"bun.lockb", "bun install --frozen-lockfile"},
	{"bun.lock", "bun install --frozen-lockfile"},
	{"pnpm-lock.yaml", "pnpm install --frozen-lockfile"},
	{"yarn.lock", "yarn install --frozen-lockfile"},
	{"package-lock.json", "npm ci"},
	{"npm-shrinkwrap.json", "npm ci"},
}

// resolveInstallCommand returns the dependency-install command for dir,
// matching lockfiles before falling back to package.json#packageManager.
func resolveInstallCommand(dir string) (string, bool) {
	for _, entry := range lockfileInstallCommands {
		if _, err := os.Stat(filepath.Join(dir, entry.file)); err == nil {
			return entry.command, true
		}
	}

	pkg, ok := readPackageJSON(dir)
	if !ok {
		return "", false
	}
	for _, pm := range []string{"bun", "pnpm", "yarn"} {
		if strings.HasPrefix(pkg.PackageManager, pm+"@") {
			return pm + " install", true
		}
	}
	return "", false
}

// needsInstall reports whether dir's node_modules is missing or a
// dangling symlink.
func needsInstall(dir string) bool {
	path := filepath.Join(dir, "node_modules")
	info, err := os.Lstat(path)
	if err != nil {
		return true
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if _, err := os.Stat(path); err != nil {
			return true
		}
	}
	return false
}

// ensureDependencies runs setupCommands (if configured) or an
// auto-detected lockfile install command, rolling back to h0 on any
// failure or timeout.
func (t *Train) ensureDependencies(ctx context.Context, h0 string) (MergeResult, bool) {
	if len(t.cfg.SetupCommands) > 0 {
		for _, cmd := range t.cfg.SetupCommands {
			output, timedOut, err := t.runCommand(ctx, cmd)
			if timedOut || err != nil {
				t.rollback(ctx, h0)
				return MergeResult{
					Success: false,
					Kind:    KindTestFailure,
					Output:  fmt.Sprintf("Dependency setup command failed/timed out (%s)\n%s", cmd, output),
				}, false
			}
		}
		return MergeResult{}, true
	}

	if !needsInstall(t.worktreePath) {
		return MergeResult{}, true
	}

	installCmd, ok := resolveInstallCommand(t.worktreePath)
	if !ok {
		return MergeResult{}, true
	}

	output, timedOut, err := t.runCommand(ctx, installCmd)
	if timedOut || err != nil {
		t.rollback(ctx, h0)
		return MergeResult{
			Success: false,
			Kind:    KindTestFailure,
			Output:  fmt.Sprintf("Dependency setup command failed/timed out (%s)\n%s", installCmd, output),
		}, false
	}
	return MergeResult{}, true
}

// runTestGate runs testCmd with the configured timeout, rolling back to
// h0 on timeout or non-zero exit.
func (t *Train) runTestGate(ctx context.Context, jobID, testCmd, h0 string) MergeResult {
	output, timedOut, err := t.runCommand(ctx, testCmd)
	if timedOut {
		t.rollback(ctx, h0)
		return MergeResult{
			JobID:  jobID,
			Kind:   KindTestFailure,
			Output: fmt.Sprintf("Test timed out after %dms", t.cfg.TestTimeout.Milliseconds()),
		}
	}
	if err != nil {
		t.rollback(ctx, h0)
		return MergeResult{JobID: jobID, Kind: KindTestFailure, Output: output}
	}

	now := time.Now()
	return MergeResult{JobID: jobID, Success: true, Kind: KindSuccess, MergedAt: &now}
}

// runCommand runs cmdline through a shell in the integration worktree,
// bounded by the configured test timeout.
func (t *Train) runCommand(ctx context.Context, cmdline string) (output string, timedOut bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, t.cfg.TestTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", cmdline) //nolint:gosec // cmdline is operator-configured, not branch-controlled
	cmd.Dir = t.worktreePath
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return buf.String(), true, runCtx.Err()
	}
	return buf.String(), false, err
}
