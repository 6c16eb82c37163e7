// Package scan discovers trackable repository checkouts under the content
// root.
//
// The content root is laid out two levels deep, root/owner/name, with one
// checkout per leaf directory. The scanner classifies every candidate it
// sees; anything it cannot or should not track is reported as skipped with
// a reason rather than silently lost.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rkeller/repofleet/internal/registry"
)

// DiscoveredRepo is a filesystem finding prior to identity resolution.
type DiscoveredRepo struct {
	Owner     string
	Name      string
	LocalPath string
}

// SkippedDir records a directory the scanner saw but did not discover.
type SkippedDir struct {
	Path   string
	Reason string
}

// Result holds everything a scan found.
type Result struct {
	Discovered []DiscoveredRepo
	Skipped    []SkippedDir
}

// Scan enumerates owner directories and their repository directories under
// root. A candidate is discovered only if it contains a .git entry; whether
// that entry is a real metadata directory or a submodule pointer file is
// decided later by IsNestedRepo.
//
// Classification, first match wins:
//   - names starting with "." and the registry filename: ignored silently
//   - symlinks: skipped, never traversed
//   - unreadable directories: skipped with the underlying error
//   - directories without VCS metadata: skipped ("no metadata")
func Scan(root string) (*Result, error) {
	result := &Result{}

	owners, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read content root %s: %w", root, err)
	}

	for _, owner := range owners {
		name := owner.Name()
		if ignored(name) {
			continue
		}

		ownerPath := filepath.Join(root, name)
		if owner.Type()&os.ModeSymlink != 0 {
			result.Skipped = append(result.Skipped, SkippedDir{Path: ownerPath, Reason: "symlink"})
			continue
		}
		if !owner.IsDir() {
			continue
		}

		repos, err := os.ReadDir(ownerPath)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedDir{
				Path:   ownerPath,
				Reason: fmt.Sprintf("unreadable: %v", err),
			})
			continue
		}

		for _, repo := range repos {
			repoName := repo.Name()
			if ignored(repoName) {
				continue
			}

			repoPath := filepath.Join(ownerPath, repoName)
			if repo.Type()&os.ModeSymlink != 0 {
				result.Skipped = append(result.Skipped, SkippedDir{Path: repoPath, Reason: "symlink"})
				continue
			}
			if !repo.IsDir() {
				continue
			}

			if _, err := os.ReadDir(repoPath); err != nil {
				result.Skipped = append(result.Skipped, SkippedDir{
					Path:   repoPath,
					Reason: fmt.Sprintf("unreadable: %v", err),
				})
				continue
			}

			if !hasVCSMetadata(repoPath) {
				result.Skipped = append(result.Skipped, SkippedDir{Path: repoPath, Reason: "no metadata"})
				continue
			}

			result.Discovered = append(result.Discovered, DiscoveredRepo{
				Owner:     name,
				Name:      repoName,
				LocalPath: repoPath,
			})
		}
	}

	return result, nil
}

// IsNestedRepo reports whether the repository at path is owned by a parent
// checkout and must not be adopted as an independent entry.
//
// Two signals: a .git *file* (a submodule or worktree pointer rather than a
// real metadata directory), or VCS metadata in any ancestor directory
// strictly between path and root.
func IsNestedRepo(path, root string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err == nil && !info.IsDir() {
		return true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	current, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	for {
		current = filepath.Dir(current)
		if current == absRoot || len(current) <= len(absRoot) {
			return false
		}
		if hasVCSMetadata(current) {
			return true
		}
	}
}

// hasVCSMetadata reports whether dir contains a .git entry of any kind.
func hasVCSMetadata(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

// ignored reports names the scanner never considers: dotfiles and the
// reserved registry document.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || name == registry.Filename
}
