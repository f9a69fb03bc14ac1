package jobstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/nigel-dev/opencode-mission-control/internal/util"
)

// ErrNotFound is returned by updateJob/removeJob when no job has the
// given id.
var ErrNotFound = errors.New("job not found")

// ErrUnsupportedVersion is returned by loadJobState when the file on disk
// carries a schema version this package does not recognize.
var ErrUnsupportedVersion = errors.New("unsupported job state version")

// indexLockTimeout bounds how long a Store waits for the advisory file
// lock before giving up, mirroring the sessions-index lock in the
// teacher's seance command.
const indexLockTimeout = 5 * time.Second

// Store owns a single job-state JSON document on disk, guarded by an
// advisory flock so that multiple orchestrator processes sharing a data
// directory serialize their read-modify-write cycles.
type Store struct {
	path string
}

// New returns a Store backed by the JSON document at path. AddJob,
// UpdateJob and RemoveJob create the parent directory when it is missing.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// withLock acquires the advisory lock for the duration of f.
func (s *Store) withLock(f func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating job state directory: %w", err)
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), indexLockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring job state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for job state lock")
	}
	defer fl.Unlock()

	return f()
}

// LoadJobState returns the current snapshot, or a fresh empty one if the
// file does not yet exist on disk.
func (s *Store) LoadJobState() (JobState, error) {
	return s.load()
}

func (s *Store) load() (JobState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return JobState{Version: CurrentVersion, Jobs: []Job{}, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return JobState{}, fmt.Errorf("reading job state: %w", err)
	}

	var st JobState
	if err := json.Unmarshal(data, &st); err != nil {
		return JobState{}, fmt.Errorf("parsing job state: %w", err)
	}
	if st.Version < 1 || st.Version > 3 {
		return JobState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, st.Version)
	}
	if st.Jobs == nil {
		st.Jobs = []Job{}
	}
	return st, nil
}

// SaveJobState persists st atomically, refreshing UpdatedAt first.
func (s *Store) SaveJobState(st JobState) error {
	st.UpdatedAt = time.Now()
	return util.AtomicWriteJSON(s.path, st)
}

// NewJobID returns a fresh, unique job identifier. AddJob uses it for
// jobs that arrive without an id.
func NewJobID() string {
	return uuid.NewString()
}

// AddJob appends j to the job table, assigning a fresh id via NewJobID if
// the caller left j.ID empty. Duplicate caller-supplied ids are not
// rejected; the caller is responsible for ensuring uniqueness in that case.
func (s *Store) AddJob(j Job) error {
	if j.ID == "" {
		j.ID = NewJobID()
	}
	return s.withLock(func() error {
		st, err := s.load()
		if err != nil {
			return err
		}
		st.Jobs = append(st.Jobs, j)
		return s.SaveJobState(st)
	})
}

// UpdateJob applies patch to the job with the given id and saves the
// result. Returns ErrNotFound if no such job exists.
func (s *Store) UpdateJob(id string, patch func(*Job)) error {
	return s.withLock(func() error {
		st, err := s.load()
		if err != nil {
			return err
		}
		idx := indexOf(st.Jobs, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		patch(&st.Jobs[idx])
		return s.SaveJobState(st)
	})
}

// RemoveJob deletes the job with the given id. Returns ErrNotFound if no
// such job exists.
func (s *Store) RemoveJob(id string) error {
	return s.withLock(func() error {
		st, err := s.load()
		if err != nil {
			return err
		}
		idx := indexOf(st.Jobs, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		st.Jobs = append(st.Jobs[:idx], st.Jobs[idx+1:]...)
		return s.SaveJobState(st)
	})
}

// GetJob returns the job with the given id, or ErrNotFound.
func (s *Store) GetJob(id string) (Job, error) {
	st, err := s.load()
	if err != nil {
		return Job{}, err
	}
	idx := indexOf(st.Jobs, id)
	if idx < 0 {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return st.Jobs[idx], nil
}

// GetJobByName returns the job with the given name, or ErrNotFound.
func (s *Store) GetJobByName(name string) (Job, error) {
	st, err := s.load()
	if err != nil {
		return Job{}, err
	}
	for _, j := range st.Jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return Job{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// GetRunningJobs returns every job whose Status is JobRunning.
func (s *Store) GetRunningJobs() ([]Job, error) {
	st, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Job
	for _, j := range st.Jobs {
		if j.Status == JobRunning {
			out = append(out, j)
		}
	}
	return out, nil
}

func indexOf(jobs []Job, id string) int {
	for i, j := range jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}
