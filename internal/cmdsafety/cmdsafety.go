// Package cmdsafety validates user-supplied post-create hook commands
// before they are ever handed to exec.Command. There is no teacher
// analogue for this — internal/rig.RunSetupHooks trusts hooks it wrote
// itself and only warns on non-executable files — so this is new logic
// for commands that arrive from a job spec rather than a rig's own
// .runtime directory. ValidateCommand is a pure function: it never runs
// anything, it only reports what it would be unsafe to run.
package cmdsafety

import (
	"regexp"
	"strings"
)

// Result is the outcome of validating a single command.
type Result struct {
	Safe     bool
	Warnings []string
}

// CommandResult pairs a command with its validation Result, as returned
// by ValidateCommands.
type CommandResult struct {
	Command string
	Result  Result
}

// knownSafePrefixes are package-manager and build-tool invocations that
// are safe with ordinary arguments.
var knownSafePrefixes = []string{
	"npm", "npx", "bun", "yarn", "pnpm",
	"pip", "cargo", "make", "go", "dotnet",
	"composer", "bundle", "gem", "mix", "poetry", "cmake",
}

type dangerPattern struct {
	label string
	match func(cmd string) bool
}

var execWordRe = regexp.MustCompile(`(^|[\s;&|])exec([\s;&|]|$)`)
var evalWordRe = regexp.MustCompile(`(^|[\s;&|])eval([\s;&|]|$)`)
var pipeToShellRe = regexp.MustCompile(`\|\s*(sh|bash|zsh)\b`)
var remoteScriptPipeRe = regexp.MustCompile(`\b(curl|wget)\b[^|]*\|`)
var rmRootExactRe = regexp.MustCompile(`(^|[\s;&|])rm -rf /(\s|[;&|]|$)`)
var rmRootAbsoluteRe = regexp.MustCompile(`\brm\b[^;&|]*\s(/|/[a-zA-Z0-9_./-]*)\s*$`)
var redirectEtcRe = regexp.MustCompile(`>>?\s*/etc/`)

var dangerPatterns = []dangerPattern{
	{
		label: "backtick command substitution",
		match: func(cmd string) bool { return strings.Contains(cmd, "`") },
	},
	{
		label: "dollar-paren command substitution",
		match: func(cmd string) bool { return strings.Contains(cmd, "$(") },
	},
	{
		label: "eval execution",
		match: func(cmd string) bool { return evalWordRe.MatchString(cmd) },
	},
	{
		label: "exec execution",
		match: func(cmd string) bool { return execWordRe.MatchString(cmd) },
	},
	{
		label: "pipe to shell interpreter",
		match: func(cmd string) bool { return pipeToShellRe.MatchString(cmd) },
	},
	{
		label: "remote script piped to another command",
		match: func(cmd string) bool { return remoteScriptPipeRe.MatchString(cmd) },
	},
	{
		label: "rm -rf /",
		match: func(cmd string) bool { return rmRootExactRe.MatchString(cmd) },
	},
	{
		label: "delete from root",
		match: isRmRootDelete,
	},
	{
		label: "redirect to /etc/",
		match: func(cmd string) bool { return redirectEtcRe.MatchString(cmd) },
	},
	{
		label: "semicolon-chained commands",
		match: func(cmd string) bool { return strings.Contains(cmd, ";") },
	},
	{
		label: "chained commands (&&)",
		match: func(cmd string) bool { return strings.Contains(cmd, "&&") },
	},
	{
		label: "pipe operator",
		match: func(cmd string) bool {
			return strings.Contains(cmd, "|") &&
				!pipeToShellRe.MatchString(cmd) &&
				!remoteScriptPipeRe.MatchString(cmd)
		},
	},
}

// isRmRootDelete reports whether cmd invokes rm with both -r and -f
// (in any flag grouping) targeting "/" or an absolute path, distinct
// from the exact "rm -rf /" case already covered above.
func isRmRootDelete(cmd string) bool {
	if !strings.Contains(cmd, "rm ") && !strings.HasPrefix(cmd, "rm ") {
		return false
	}
	hasR := strings.Contains(cmd, "-r") || strings.Contains(cmd, "-R") || strings.Contains(cmd, "-rf") || strings.Contains(cmd, "-fr")
	hasF := strings.Contains(cmd, "-f") || strings.Contains(cmd, "-rf") || strings.Contains(cmd, "-fr")
	if !hasR || !hasF {
		return false
	}
	return rmRootAbsoluteRe.MatchString(cmd)
}

// ValidateCommand reports whether cmd is safe to execute and any
// warnings explaining why it isn't.
func ValidateCommand(cmd string) Result {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return Result{Safe: false, Warnings: []string{"empty command"}}
	}

	var warnings []string
	for _, p := range dangerPatterns {
		if p.match(trimmed) {
			warnings = append(warnings, p.label)
		}
	}
	if len(warnings) > 0 {
		return Result{Safe: false, Warnings: warnings}
	}

	if isKnownSafePrefix(trimmed) {
		return Result{Safe: true}
	}

	// Any other command that matched no danger pattern above is treated
	// as safe as well.
	return Result{Safe: true}
}

func isKnownSafePrefix(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	first := fields[0]
	for _, prefix := range knownSafePrefixes {
		if first == prefix {
			return true
		}
	}
	return false
}

// ValidateCommands validates each command in list, preserving order.
func ValidateCommands(list []string) []CommandResult {
	out := make([]CommandResult, len(list))
	for i, cmd := range list {
		out[i] = CommandResult{Command: cmd, Result: ValidateCommand(cmd)}
	}
	return out
}
