// Package jobstate owns the on-disk job table: a single JSON document
// describing every job the orchestrator knows about, written atomically
// and guarded by an advisory file lock across processes.
package jobstate

import "time"

// CurrentVersion is the schema version of a fresh snapshot. Versions 1
// through 3 are recognized on read; SaveJobState writes the Version the
// snapshot carries, so a loaded older file keeps its version.
const CurrentVersion = 3

// JobStatus is the lifecycle status of a vanilla (non-planner) Job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobStopped   JobStatus = "stopped"
)

// JobMode selects the kind of session a Job drives.
type JobMode string

const (
	ModeVanilla JobMode = "vanilla"
	ModePlan    JobMode = "plan"
	ModeRalph   JobMode = "ralph"
	ModeULW     JobMode = "ulw"
)

// Placement says whether a job occupies its own multiplexer session or a
// window inside a shared one.
type Placement string

const (
	PlacementSession Placement = "session"
	PlacementWindow  Placement = "window"
)

// PlanStatus is the richer lifecycle used by planner-driven JobSpecs,
// tracking a job through the merge train in addition to execution.
type PlanStatus string

const (
	PlanQueued      PlanStatus = "queued"
	PlanWaitingDeps PlanStatus = "waiting_deps"
	PlanRunning     PlanStatus = "running"
	PlanCompleted   PlanStatus = "completed"
	PlanFailed      PlanStatus = "failed"
	PlanReadyMerge  PlanStatus = "ready_to_merge"
	PlanMerging     PlanStatus = "merging"
	PlanMerged      PlanStatus = "merged"
	PlanConflict    PlanStatus = "conflict"
	PlanNeedsRebase PlanStatus = "needs_rebase"
	PlanStopped     PlanStatus = "stopped"
	PlanCanceled    PlanStatus = "canceled"
)

// Job is a single unit of isolated, externally-spawned work.
type Job struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	WorktreePath      string    `json:"worktreePath"`
	Branch            string    `json:"branch"`
	BaseBranch        string    `json:"baseBranch,omitempty"`
	MultiplexerTarget string    `json:"multiplexerTarget"`
	Placement         Placement `json:"placement"`

	Status JobStatus `json:"status"`

	Port            int    `json:"port,omitempty"`
	LaunchSessionID string `json:"launchSessionId,omitempty"`
	ServerURL       string `json:"serverUrl,omitempty"`

	Mode JobMode `json:"mode"`

	Prompt      string     `json:"prompt"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExitCode    *int       `json:"exitCode,omitempty"`

	// JobSpec extension fields. Present only on planner-driven jobs;
	// nil/zero otherwise.
	TouchSet      []string   `json:"touchSet,omitempty"`
	DependsOn     []string   `json:"dependsOn,omitempty"`
	Priority      int        `json:"priority,omitempty"`
	PlanStatus    PlanStatus `json:"planStatus,omitempty"`
	RelayPatterns []string   `json:"relayPatterns,omitempty"`

	CopyFiles   []string `json:"copyFiles,omitempty"`
	SymlinkDirs []string `json:"symlinkDirs,omitempty"`
	Commands    []string `json:"commands,omitempty"`

	MergeOrder int        `json:"mergeOrder,omitempty"`
	MergedAt   *time.Time `json:"mergedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// JobState is the full on-disk snapshot: every job plus bookkeeping.
type JobState struct {
	Version   int       `json:"version"`
	Jobs      []Job     `json:"jobs"`
	UpdatedAt time.Time `json:"updatedAt"`
}
