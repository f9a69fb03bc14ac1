// Package monitor polls running jobs and decides when their externally
// spawned sessions have reached "done", either via process exit or
// terminal-content quiescence, the way the pack's long-lived interactive
// workers are watched rather than waited on synchronously.
package monitor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nigel-dev/opencode-mission-control/internal/jobstate"
	"github.com/nigel-dev/opencode-mission-control/internal/tmux"
)

// minProductionPollInterval is the floor pollInterval must meet outside
// test mode.
const minProductionPollInterval = 10 * time.Second

// testModeEnv relaxes the minimum poll interval when set to "1", the same
// boolean-env-toggle idiom internal/ui uses for MC_AGENT_MODE.
const testModeEnv = "MC_TEST_MODE"

func isTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}

// EventKind is the kind of event a Monitor emits.
type EventKind string

const (
	EventComplete EventKind = "complete"
	EventFailed   EventKind = "failed"
)

// Event carries the job id a completion/failure was observed for.
type Event struct {
	Kind  EventKind
	JobID string
}

// Handler receives Monitor events in subscription order.
type Handler func(Event)

// PaneProbe is the subset of tmux operations the monitor needs. Defined
// as an interface so tests can substitute a fake multiplexer.
type PaneProbe interface {
	HasSession(target string) (bool, error)
	CapturePaneAll(target string) (string, error)
	PaneExitStatus(target string) (status int, ok bool, err error)
}

// Config configures a Monitor.
type Config struct {
	PollInterval  time.Duration // default 10s
	IdleThreshold time.Duration
}

// Monitor polls the job store for running jobs and decides completion.
type Monitor struct {
	store *jobstate.Store
	probe PaneProbe
	cfg   Config

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	handlers map[EventKind][]Handler

	idleState map[string]idleRecord
}

type idleRecord struct {
	lastContent string
	idleSince   time.Time
	accumulated time.Duration
}

// New constructs a Monitor. Outside test mode, cfg.PollInterval below
// 10s is rejected.
func New(store *jobstate.Store, probe PaneProbe, cfg Config) (*Monitor, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = minProductionPollInterval
	}
	if cfg.PollInterval < minProductionPollInterval && !isTestMode() {
		return nil, fmt.Errorf("pollInterval %s is below the %s minimum", cfg.PollInterval, minProductionPollInterval)
	}

	return &Monitor{
		store:     store,
		probe:     probe,
		cfg:       cfg,
		handlers:  make(map[EventKind][]Handler),
		idleState: make(map[string]idleRecord),
	}, nil
}

// On subscribes handler to events of kind, run in subscription order.
func (m *Monitor) On(kind EventKind, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = append(m.handlers[kind], handler)
}

func (m *Monitor) emit(kind EventKind, jobID string) {
	m.mu.Lock()
	handlers := append([]Handler{}, m.handlers[kind]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(Event{Kind: kind, JobID: jobID})
	}
}

// Start runs an initial poll immediately, then schedules periodic
// polling. A second Start call is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.loop()
}

func (m *Monitor) loop() {
	defer close(m.doneCh)

	m.pollOnce()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			// An in-flight poll suppresses the next tick until it
			// finishes; pollOnce runs synchronously in this goroutine so
			// overlapping ticks are already impossible.
			m.pollOnce()
		}
	}
}

// Stop cancels the scheduled poll. Idempotent and safe before Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	doneCh := m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// pollOnce runs a single polling pass over every running job.
func (m *Monitor) pollOnce() {
	jobs, err := m.store.GetRunningJobs()
	if err != nil {
		fmt.Printf("warning: monitor failed to load running jobs: %v\n", err)
		return
	}

	for _, job := range jobs {
		m.pollJob(job)
	}
}

func (m *Monitor) pollJob(job jobstate.Job) {
	target := job.MultiplexerTarget

	present, err := m.probe.HasSession(target)
	if err != nil {
		fmt.Printf("warning: probe failed for %s: %v\n", target, err)
		return
	}

	if !present {
		m.handlePaneGone(job, target)
		return
	}

	m.handlePanePresent(job, target)
}

func (m *Monitor) handlePaneGone(job jobstate.Job, target string) {
	status, ok, err := m.probe.PaneExitStatus(target)
	if err != nil {
		fmt.Printf("warning: exit status probe failed for %s: %v\n", target, err)
		return
	}

	// Undefined exit status is treated as completed for back-compatibility.
	if !ok || status == 0 {
		m.completeJob(job)
		return
	}
	m.failJob(job)
}

func (m *Monitor) completeJob(job jobstate.Job) {
	now := time.Now()
	_ = m.store.UpdateJob(job.ID, func(j *jobstate.Job) {
		j.Status = jobstate.JobCompleted
		j.CompletedAt = &now
	})
	delete(m.idleState, job.ID)
	m.emit(EventComplete, job.ID)
}

func (m *Monitor) failJob(job jobstate.Job) {
	now := time.Now()
	_ = m.store.UpdateJob(job.ID, func(j *jobstate.Job) {
		j.Status = jobstate.JobFailed
		j.CompletedAt = &now
	})
	delete(m.idleState, job.ID)
	m.emit(EventFailed, job.ID)
}

func (m *Monitor) handlePanePresent(job jobstate.Job, target string) {
	content, err := m.probe.CapturePaneAll(target)
	if err != nil {
		fmt.Printf("warning: capture failed for %s: %v\n", target, err)
		return
	}

	rec, seen := m.idleState[job.ID]
	if !isIdleSignature(content) || !seen || rec.lastContent != content {
		m.idleState[job.ID] = idleRecord{lastContent: content, idleSince: time.Now(), accumulated: 0}
		return
	}

	rec.accumulated = time.Since(rec.idleSince)
	m.idleState[job.ID] = rec

	if rec.accumulated >= m.cfg.IdleThreshold {
		m.completeJob(job)
	}
}

// idleSignature tokens, per the spec's UI hints.
const (
	idleFooterToken      = "ctrl+p commands"
	streamingMarkerEsc    = "esc interrupt"
)

var streamingGlyphs = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// isIdleSignature reports whether captured terminal content looks like
// the "waiting for input" footer shape: the prompt footer is present and
// no streaming indicators (interrupt hint or spinner glyphs) are.
func isIdleSignature(content string) bool {
	if !strings.Contains(content, idleFooterToken) {
		return false
	}
	if strings.Contains(content, streamingMarkerEsc) {
		return false
	}
	for _, glyph := range streamingGlyphs {
		if strings.Contains(content, glyph) {
			return false
		}
	}
	return true
}
