package worktree

import (
	"reflect"
	"testing"
)

func TestResolvePostCreateHook_DedupesAndOrdersCommands(t *testing.T) {
	defaults := PostCreateHook{
		CopyFiles:   []string{"a.env", "a.env"},
		SymlinkDirs: []string{"config/"},
		Commands:    []string{"npm install"},
	}
	overrides := PostCreateHook{
		CopyFiles:   []string{"b.env"},
		SymlinkDirs: []string{"config"},
		Commands:    []string{"npm run build"},
	}

	got := ResolvePostCreateHook(defaults, overrides)

	if !reflect.DeepEqual(got.CopyFiles, []string{"a.env", "b.env"}) {
		t.Errorf("CopyFiles = %v", got.CopyFiles)
	}
	if !reflect.DeepEqual(got.Commands, []string{"npm install", "npm run build"}) {
		t.Errorf("Commands = %v", got.Commands)
	}
	if !reflect.DeepEqual(got.SymlinkDirs, []string{"config", alwaysSymlinked}) {
		t.Errorf("SymlinkDirs = %v, want deduped config + %s", got.SymlinkDirs, alwaysSymlinked)
	}
}

func TestResolvePostCreateHook_AlwaysAppendsOpencode(t *testing.T) {
	got := ResolvePostCreateHook(PostCreateHook{}, PostCreateHook{})
	if !reflect.DeepEqual(got.SymlinkDirs, []string{alwaysSymlinked}) {
		t.Errorf("SymlinkDirs = %v, want [%s]", got.SymlinkDirs, alwaysSymlinked)
	}
}

func TestResolvePostCreateHook_UnsafeCopyFileDiscardsWholeList(t *testing.T) {
	got := ResolvePostCreateHook(PostCreateHook{
		CopyFiles: []string{"a.env", "../escape.env"},
	}, PostCreateHook{})

	if got.CopyFiles != nil {
		t.Errorf("CopyFiles = %v, want nil (whole list discarded)", got.CopyFiles)
	}
}

func TestResolvePostCreateHook_UnsafeSymlinkDropsOnlyOffender(t *testing.T) {
	got := ResolvePostCreateHook(PostCreateHook{
		SymlinkDirs: []string{"config", "/etc/passwd", "../../escape"},
	}, PostCreateHook{})

	if !reflect.DeepEqual(got.SymlinkDirs, []string{"config", alwaysSymlinked}) {
		t.Errorf("SymlinkDirs = %v, want [config %s]", got.SymlinkDirs, alwaysSymlinked)
	}
}

func TestResolvePostCreateHook_AbsoluteCopyFileDiscardsList(t *testing.T) {
	got := ResolvePostCreateHook(PostCreateHook{}, PostCreateHook{
		CopyFiles: []string{"/etc/passwd"},
	})
	if got.CopyFiles != nil {
		t.Errorf("CopyFiles = %v, want nil", got.CopyFiles)
	}
}

func TestIsUnsafePath(t *testing.T) {
	cases := map[string]bool{
		"config":        false,
		"a/b/c":         false,
		"/abs":          true,
		"..":            true,
		"a/../b":        true,
		"a/b/..":        true,
		"":               false,
	}
	for p, want := range cases {
		if got := isUnsafePath(p); got != want {
			t.Errorf("isUnsafePath(%q) = %v, want %v", p, got, want)
		}
	}
}
