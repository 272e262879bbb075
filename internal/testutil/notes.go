package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
)

// WriteNote writes content to root/rel, creating parent directories.
func WriteNote(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("failed to create note directory: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write note: %v", err)
	}
	return p
}

// SetupNotesVault creates a temporary notes directory that is also a git
// working copy, as many note vaults are. The .git directory must be ignored
// by anything that mirrors the vault.
func SetupNotesVault(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}
	return dir
}
