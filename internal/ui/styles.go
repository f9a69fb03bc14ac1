// Package ui provides terminal styling for the orchestrator's CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
// Design philosophy: semantic colors that communicate meaning at a glance,
// minimal visual noise, and consistent rendering across all commands.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	if !ShouldUseColor() {
		// disable colors when not appropriate (non-TTY, NO_COLOR, etc.)
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		// use TrueColor for distinct status colors in modern terminals
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}

// ApplyThemeMode applies the theme mode settings to lipgloss.
// This should be called after InitTheme() has been called.
func ApplyThemeMode() {
	if !ShouldUseColor() {
		return
	}
	lipgloss.SetHasDarkBackground(HasDarkBackground())
}

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
// Source: https://github.com/ayu-theme/ayu-colors
var (
	// Core semantic colors (Ayu theme - adaptive light/dark)
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}

	// === Job/plan status colors ===
	// Only actionable states get color - queued/completed match standard text
	ColorStatusQueued = lipgloss.AdaptiveColor{
		Light: "", // standard text color
		Dark:  "",
	}
	ColorStatusRunning = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // yellow - active work, very visible
		Dark:  "#ffb454",
	}
	ColorStatusDone = lipgloss.AdaptiveColor{
		Light: "#9099a1", // slightly dimmed - visually shows "done"
		Dark:  "#8090a0",
	}
	ColorStatusBlocked = lipgloss.AdaptiveColor{
		Light: "#f07171", // red - needs attention
		Dark:  "#f26d78",
	}
	ColorStatusMerging = lipgloss.AdaptiveColor{
		Light: "#d2a6ff", // purple - merge train is actively handling it
		Dark:  "#d2a6ff",
	}
)

// Core styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Status styles for job/plan states
var (
	StatusQueuedStyle  = lipgloss.NewStyle().Foreground(ColorStatusQueued)
	StatusRunningStyle = lipgloss.NewStyle().Foreground(ColorStatusRunning)
	StatusDoneStyle    = lipgloss.NewStyle().Foreground(ColorStatusDone)
	StatusBlockedStyle = lipgloss.NewStyle().Foreground(ColorStatusBlocked)
	StatusMergingStyle = lipgloss.NewStyle().Foreground(ColorStatusMerging)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// BoldStyle for emphasis
var BoldStyle = lipgloss.NewStyle().Bold(true)

// CommandStyle for command names - subtle contrast, not attention-grabbing
var CommandStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
	Light: "#5c6166", // slightly darker than standard
	Dark:  "#bfbdb6", // slightly brighter than standard
})

// Status icons - consistent semantic indicators
// Design: small Unicode symbols, NOT emoji-style icons for visual consistency
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✖"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Job/plan status icons
const (
	StatusIconQueued  = "○" // waiting to run (hollow circle)
	StatusIconRunning = "◐" // active work (half-filled)
	StatusIconBlocked = "●" // needs attention (filled circle)
	StatusIconDone    = "✓" // completed/merged (checkmark)
	StatusIconMerging = "↻" // merge train processing it
)

// Tree characters for hierarchical display
const (
	TreeChild  = "╟─ "
	TreeLast   = "└─ "
	TreeIndent = "  "
)

// Separators - 42 characters wide
const (
	SeparatorLight = "──────────────────────────────────────────"
	SeparatorHeavy = "══════════════════════════════════════════"
)

// === Core Render Functions ===

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderBold renders text in bold
func RenderBold(s string) string {
	return BoldStyle.Render(s)
}

// RenderCommand renders a command name with subtle styling
func RenderCommand(s string) string {
	return CommandStyle.Render(s)
}

// === Icon Render Functions ===

func RenderPassIcon() string {
	return PassStyle.Render(IconPass)
}

func RenderWarnIcon() string {
	return WarnStyle.Render(IconWarn)
}

func RenderFailIcon() string {
	return FailStyle.Render(IconFail)
}

func RenderSkipIcon() string {
	return MutedStyle.Render(IconSkip)
}

func RenderInfoIcon() string {
	return AccentStyle.Render(IconInfo)
}

// === Job/plan status renderers ===
// Statuses accepted here are jobstate.JobStatus and jobstate.PlanStatus
// values ("running", "completed", "failed", "stopped", "queued",
// "waiting_deps", "merging", "merged", "conflict", "needs_rebase",
// "ready_to_merge", "canceled"), passed as plain strings so this package has
// no dependency on jobstate.

// RenderStatus renders a job/plan status with semantic styling.
func RenderStatus(status string) string {
	switch status {
	case "running":
		return StatusRunningStyle.Render(status)
	case "failed", "conflict", "needs_rebase":
		return StatusBlockedStyle.Render(status)
	case "merging":
		return StatusMergingStyle.Render(status)
	case "completed", "merged", "stopped", "canceled":
		return StatusDoneStyle.Render(status)
	default: // queued, waiting_deps, ready_to_merge, and others
		return StatusQueuedStyle.Render(status)
	}
}

// RenderStatusIcon returns the appropriate icon for a status with semantic
// coloring. This is the canonical source for status icon rendering.
func RenderStatusIcon(status string) string {
	switch status {
	case "queued", "waiting_deps", "ready_to_merge":
		return StatusIconQueued
	case "running":
		return StatusRunningStyle.Render(StatusIconRunning)
	case "failed", "conflict", "needs_rebase":
		return StatusBlockedStyle.Render(StatusIconBlocked)
	case "merging":
		return StatusMergingStyle.Render(StatusIconMerging)
	case "completed", "merged", "stopped", "canceled":
		return StatusDoneStyle.Render(StatusIconDone)
	default:
		return "?"
	}
}

// GetStatusStyle returns the lipgloss style for a given status. Use this
// when applying the semantic color to custom text.
func GetStatusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return StatusRunningStyle
	case "failed", "conflict", "needs_rebase":
		return StatusBlockedStyle
	case "merging":
		return StatusMergingStyle
	case "completed", "merged", "stopped", "canceled":
		return StatusDoneStyle
	default:
		return StatusQueuedStyle
	}
}
