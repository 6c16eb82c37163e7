package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rkeller/repofleet/internal/registry"
)

// mkRepo creates root/owner/name with a .git metadata directory.
func mkRepo(t *testing.T, root, owner, name string) string {
	t.Helper()
	path := filepath.Join(root, owner, name)
	if err := os.MkdirAll(filepath.Join(path, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func skipReasons(result *Result) map[string]string {
	reasons := make(map[string]string)
	for _, s := range result.Skipped {
		reasons[s.Path] = s.Reason
	}
	return reasons
}

func TestScanDiscoversRepos(t *testing.T) {
	root := t.TempDir()
	mkRepo(t, root, "acme", "widgets")
	mkRepo(t, root, "acme", "gadgets")
	mkRepo(t, root, "initech", "tps")

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Discovered) != 3 {
		t.Fatalf("expected 3 discoveries, got %d: %+v", len(result.Discovered), result.Discovered)
	}

	found := make(map[string]DiscoveredRepo)
	for _, d := range result.Discovered {
		found[d.Owner+"/"+d.Name] = d
	}
	want := filepath.Join(root, "acme", "widgets")
	if d, ok := found["acme/widgets"]; !ok || d.LocalPath != want {
		t.Errorf("acme/widgets = %+v, want LocalPath %s", d, want)
	}
}

func TestScanIgnoresDotfilesAndRegistry(t *testing.T) {
	root := t.TempDir()
	mkRepo(t, root, "acme", "widgets")
	mkRepo(t, root, ".hidden", "repo")
	mkRepo(t, root, "acme", ".config")
	if err := os.WriteFile(filepath.Join(root, registry.Filename), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Discovered) != 1 {
		t.Errorf("expected 1 discovery, got %+v", result.Discovered)
	}
	// Dotfiles are ignored silently, not reported as skips.
	if len(result.Skipped) != 0 {
		t.Errorf("expected no skips, got %+v", result.Skipped)
	}
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	real := mkRepo(t, root, "acme", "widgets")

	linkOwner := filepath.Join(root, "linked-owner")
	if err := os.Symlink(filepath.Dir(real), linkOwner); err != nil {
		t.Fatal(err)
	}
	linkRepo := filepath.Join(root, "acme", "linked-repo")
	if err := os.Symlink(real, linkRepo); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	reasons := skipReasons(result)
	if reasons[linkOwner] != "symlink" {
		t.Errorf("owner symlink not skipped: %v", reasons)
	}
	if reasons[linkRepo] != "symlink" {
		t.Errorf("repo symlink not skipped: %v", reasons)
	}
	if len(result.Discovered) != 1 {
		t.Errorf("expected only the real repo, got %+v", result.Discovered)
	}
}

func TestScanSkipsDirsWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	mkRepo(t, root, "acme", "widgets")
	bare := filepath.Join(root, "acme", "notes")
	if err := os.MkdirAll(bare, 0755); err != nil {
		t.Fatal(err)
	}

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if reasons := skipReasons(result); reasons[bare] != "no metadata" {
		t.Errorf("expected %s skipped with no metadata, got %v", bare, reasons)
	}
}

func TestScanSkipsUnreadableDirs(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	mkRepo(t, root, "acme", "widgets")
	locked := filepath.Join(root, "acme", "locked")
	if err := os.MkdirAll(locked, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	result, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	reasons := skipReasons(result)
	if _, ok := reasons[locked]; !ok {
		t.Errorf("unreadable dir not reported: %v", reasons)
	}
}

func TestIsNestedRepoPointerFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "acme", "widgets")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
	// Submodules and worktrees store a pointer file instead of a directory.
	if err := os.WriteFile(filepath.Join(path, ".git"), []byte("gitdir: ../.git/modules/widgets\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if !IsNestedRepo(path, root) {
		t.Error("pointer-file repo not classified as nested")
	}
}

func TestIsNestedRepoAncestorMetadata(t *testing.T) {
	root := t.TempDir()
	parent := mkRepo(t, root, "acme", "monorepo")
	child := filepath.Join(parent, "vendor", "widgets")
	if err := os.MkdirAll(filepath.Join(child, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	if !IsNestedRepo(child, root) {
		t.Error("repo under a parent checkout not classified as nested")
	}
}

func TestIsNestedRepoTopLevel(t *testing.T) {
	root := t.TempDir()
	path := mkRepo(t, root, "acme", "widgets")

	if IsNestedRepo(path, root) {
		t.Error("ordinary top-level repo misclassified as nested")
	}
}
