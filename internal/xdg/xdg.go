// Package xdg resolves the base directory this orchestrator uses for
// managed worktrees and other per-project state, following the XDG base
// directory convention the way the rest of the pack resolves its state,
// config, and cache directories.
package xdg

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// appName is the directory segment under the XDG data root.
const appName = "opencode-mission-control"

// DataDir returns $XDG_DATA_HOME/opencode-mission-control, falling back to
// ~/.local/share/opencode-mission-control when XDG_DATA_HOME is unset.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// ProjectID derives a stable directory-safe identifier for repoRoot so
// that unrelated checkouts never collide under DataDir(). A plain hash of
// the absolute path is enough here; there is no ecosystem hashing library
// in play, so this stays on crypto/sha256.
func ProjectID(repoRoot string) string {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		abs = repoRoot
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}
