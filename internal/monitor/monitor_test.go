package monitor

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
)

type fakeProbe struct {
	mu        sync.Mutex
	sessions  map[string]bool
	exitCode  map[string]int
	exitKnown map[string]bool
	content   map[string]string
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{
		sessions:  map[string]bool{},
		exitCode:  map[string]int{},
		exitKnown: map[string]bool{},
		content:   map[string]string{},
	}
}

func (f *fakeProbe) HasSession(target string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[target], nil
}

func (f *fakeProbe) CapturePaneAll(target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content[target], nil
}

func (f *fakeProbe) PaneExitStatus(target string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitCode[target], f.exitKnown[target], nil
}

func newTestStore(t *testing.T) *jobstate.Store {
	t.Helper()
	return jobstate.New(filepath.Join(t.TempDir(), "jobs.json"))
}

func TestNew_RejectsShortPollIntervalOutsideTestMode(t *testing.T) {
	store := newTestStore(t)
	probe := newFakeProbe()

	_, err := New(store, probe, Config{PollInterval: time.Second})
	if err == nil {
		t.Fatal("expected error for sub-10s poll interval in production mode")
	}
}

func TestNew_AllowsShortPollIntervalInTestMode(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	probe := newFakeProbe()

	m, err := New(store, probe, Config{PollInterval: 10 * time.Millisecond, IdleThreshold: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Monitor")
	}
}

func TestPollOnce_PaneGoneZeroExitCompletesJob(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = false
	probe.exitKnown["mc-test"] = true
	probe.exitCode["mc-test"] = 0

	m, err := New(store, probe, Config{PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	var fired int
	m.On(EventComplete, func(e Event) { fired++ })

	m.pollOnce()

	if fired != 1 {
		t.Errorf("complete fired %d times, want 1", fired)
	}
	got, err := store.GetJob("j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != jobstate.JobCompleted {
		t.Errorf("Status = %v, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestPollOnce_PaneGoneNonZeroExitFailsJob(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = false
	probe.exitKnown["mc-test"] = true
	probe.exitCode["mc-test"] = 1

	m, _ := New(store, probe, Config{PollInterval: 10 * time.Millisecond})

	var fired int
	m.On(EventFailed, func(e Event) { fired++ })
	m.pollOnce()

	if fired != 1 {
		t.Errorf("failed fired %d times, want 1", fired)
	}
	got, _ := store.GetJob("j1")
	if got.Status != jobstate.JobFailed {
		t.Errorf("Status = %v, want failed", got.Status)
	}
}

func TestPollOnce_PaneGoneUndefinedExitCompletesForBackCompat(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = false
	// exitKnown left false: undefined exit status.

	m, _ := New(store, probe, Config{PollInterval: 10 * time.Millisecond})

	var completed, failed int
	m.On(EventComplete, func(e Event) { completed++ })
	m.On(EventFailed, func(e Event) { failed++ })
	m.pollOnce()

	if completed != 1 || failed != 0 {
		t.Errorf("completed=%d failed=%d, want 1,0", completed, failed)
	}
}

func TestPollOnce_IdleQuiescenceCompletesAfterThreshold(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = true
	probe.content["mc-test"] = "x\n  ctrl+p commands\n"

	m, _ := New(store, probe, Config{PollInterval: 10 * time.Millisecond, IdleThreshold: 30 * time.Millisecond})

	var fired int
	m.On(EventComplete, func(e Event) { fired++ })

	m.pollOnce() // first sighting: starts idle tracking, not yet complete
	if fired != 0 {
		t.Fatalf("should not complete on first idle sighting, fired=%d", fired)
	}

	time.Sleep(40 * time.Millisecond)
	m.pollOnce() // content unchanged, enough time elapsed

	if fired != 1 {
		t.Errorf("expected complete after idle threshold elapsed, fired=%d", fired)
	}
}

func TestPollOnce_ContentChangeResetsIdleAccumulator(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = true
	probe.content["mc-test"] = "x\n  ctrl+p commands\n"

	m, _ := New(store, probe, Config{PollInterval: 10 * time.Millisecond, IdleThreshold: 20 * time.Millisecond})

	var fired int
	m.On(EventComplete, func(e Event) { fired++ })

	m.pollOnce()
	time.Sleep(25 * time.Millisecond)
	probe.content["mc-test"] = "y\n  ctrl+p commands\n" // content changed: resets accumulator
	m.pollOnce()

	if fired != 0 {
		t.Errorf("content change should reset idle accumulator, fired=%d", fired)
	}
}

func TestPollOnce_StreamingIndicatorPreventsIdle(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	if err := store.AddJob(jobstate.Job{ID: "j1", Status: jobstate.JobRunning, MultiplexerTarget: "mc-test"}); err != nil {
		t.Fatal(err)
	}

	probe := newFakeProbe()
	probe.sessions["mc-test"] = true
	probe.content["mc-test"] = "working...\n  esc interrupt\n"

	m, _ := New(store, probe, Config{PollInterval: 10 * time.Millisecond, IdleThreshold: 10 * time.Millisecond})

	var fired int
	m.On(EventComplete, func(e Event) { fired++ })

	m.pollOnce()
	time.Sleep(20 * time.Millisecond)
	m.pollOnce()

	if fired != 0 {
		t.Error("streaming indicator should prevent idle completion")
	}
}

func TestStartStop_Idempotent(t *testing.T) {
	t.Setenv("MC_TEST_MODE", "1")
	store := newTestStore(t)
	probe := newFakeProbe()

	m, err := New(store, probe, Config{PollInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	m.Stop() // safe before start
	m.Start()
	m.Start() // second start is a no-op
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop() // idempotent
}
