// Package relay implements the cross-job findings bus: a per-job inbox
// plus glob-based routing, delivering queued messages into a recipient's
// live session via internal/sdkclient. Routing is grounded on the
// gobwas/glob library used throughout the wider example pack's manifests
// for exactly this kind of path-pattern matching.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/nigel-dev/opencode-mission-control/internal/sdkclient"
)

// Severity is the optional severity of a relayed finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Context is the payload of a RelayMessage.
type Context struct {
	Finding    string
	FilePath   string
	LineNumber int
	Severity   Severity
}

// RelayMessage is a single queued finding, addressed from one job to
// another.
type RelayMessage struct {
	From      string
	To        string
	Context   Context
	Timestamp time.Time
}

// jobEntry is the per-job routing and inbox state.
type jobEntry struct {
	patterns []string
	globs    []glob.Glob
	inbox    []RelayMessage
}

// Bus owns every registered job's inbox and glob routing table.
type Bus struct {
	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{jobs: make(map[string]*jobEntry)}
}

// RegisterJob compiles relayPatterns into globs and ensures an empty
// inbox exists for name, even when relayPatterns is empty.
func (b *Bus) RegisterJob(name string, relayPatterns []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := &jobEntry{patterns: relayPatterns}
	for _, p := range relayPatterns {
		normalized := normalizePattern(p)
		g, err := glob.Compile(normalized, '/')
		if err != nil {
			return fmt.Errorf("compiling relay pattern %q: %w", p, err)
		}
		entry.globs = append(entry.globs, g)
	}

	if existing, ok := b.jobs[name]; ok {
		entry.inbox = existing.inbox
	}
	b.jobs[name] = entry
	return nil
}

// normalizePattern appends "**" to patterns ending in "/" so that
// "docs/" matches every file under docs.
func normalizePattern(pattern string) string {
	if strings.HasSuffix(pattern, "/") {
		return pattern + "**"
	}
	return pattern
}

// UnregisterJob removes name's inbox and routing patterns.
func (b *Bus) UnregisterJob(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, name)
}

// RelayFinding appends a message to to's inbox, creating the inbox on
// demand if to was never registered.
func (b *Bus) RelayFinding(from, to string, ctx Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.jobs[to]
	if !ok {
		entry = &jobEntry{}
		b.jobs[to] = entry
	}
	entry.inbox = append(entry.inbox, RelayMessage{
		From:      from,
		To:        to,
		Context:   ctx,
		Timestamp: time.Now(),
	})
}

// ShouldRelayForFile reports whether any of jobName's compiled globs
// match filePath.
func (b *Bus) ShouldRelayForFile(jobName, filePath string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.jobs[jobName]
	if !ok {
		return false
	}
	for _, g := range entry.globs {
		if g.Match(filePath) {
			return true
		}
	}
	return false
}

// Inbox returns a defensive copy of jobName's pending messages.
func (b *Bus) Inbox(jobName string) []RelayMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.jobs[jobName]
	if !ok {
		return nil
	}
	out := make([]RelayMessage, len(entry.inbox))
	copy(out, entry.inbox)
	return out
}

// DeliverTarget describes the session a job's inbox is delivered into.
type DeliverTarget struct {
	JobName         string
	Port            int
	LaunchSessionID string
	Password        string
}

// DeliverOptions filters which messages a DeliverMessages call sends.
type DeliverOptions struct {
	FilterFrom string // when non-empty, only messages From this job are delivered
}

// DeliverMessages sends every matching queued message for target's job
// as a formatted prompt via the SDK client, clearing the inbox only on
// success. Returns the number of messages delivered.
func (b *Bus) DeliverMessages(ctx context.Context, target DeliverTarget, opts DeliverOptions) (int, error) {
	if target.Port == 0 {
		return 0, nil
	}

	b.mu.Lock()
	entry, ok := b.jobs[target.JobName]
	if !ok || len(entry.inbox) == 0 {
		b.mu.Unlock()
		return 0, nil
	}
	pending := make([]RelayMessage, len(entry.inbox))
	copy(pending, entry.inbox)
	b.mu.Unlock()

	var toSend []RelayMessage
	for _, msg := range pending {
		if opts.FilterFrom != "" && msg.From != opts.FilterFrom {
			continue
		}
		toSend = append(toSend, msg)
	}
	if len(toSend) == 0 {
		return 0, nil
	}

	client, err := sdkclient.WaitForServer(ctx, target.Port, sdkclient.WaitForServerOptions{
		TimeoutMs: 5000,
		Password:  target.Password,
	})
	if err != nil {
		// Server unready during delivery: swallow per the error taxonomy,
		// leave the inbox untouched.
		return 0, nil
	}

	delivered := 0
	for _, msg := range toSend {
		prompt := formatPrompt(msg)
		if err := client.SendPrompt(ctx, target.LaunchSessionID, prompt, "", ""); err != nil {
			return 0, nil
		}
		delivered++
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.jobs[target.JobName]; ok {
		remaining := e.inbox[:0]
		for _, msg := range e.inbox {
			if opts.FilterFrom != "" && msg.From != opts.FilterFrom {
				remaining = append(remaining, msg)
			}
		}
		e.inbox = remaining
	}

	return delivered, nil
}

// formatPrompt renders a RelayMessage into the prompt text a recipient
// session receives.
func formatPrompt(msg RelayMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Inter-Job Communication from %s]\n", msg.From)
	if msg.Context.Severity != "" {
		fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(msg.Context.Severity)))
	}
	fmt.Fprintf(&b, "Finding: %s\n", msg.Context.Finding)
	if msg.Context.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", msg.Context.FilePath)
	}
	if msg.Context.LineNumber != 0 {
		fmt.Fprintf(&b, "Line: %d\n", msg.Context.LineNumber)
	}
	b.WriteString("\nConsider how this finding may affect your current work.")
	return b.String()
}
