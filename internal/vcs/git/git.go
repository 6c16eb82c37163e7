// Package git implements the vcs.Adapter contract over the git binary.
//
// Every operation shells out with exec.CommandContext so callers can bound
// the time a stuck network operation may take. Output parsing sticks to
// porcelain and plumbing commands with stable formats.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rkeller/repofleet/internal/vcs"
)

// Git is the git-backed vcs.Adapter.
type Git struct{}

// New returns a git adapter. Returns vcs.ErrToolNotAvailable when the git
// binary cannot be found on PATH.
func New() (*Git, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("%w: %v", vcs.ErrToolNotAvailable, err)
	}
	return &Git{}, nil
}

// Version returns the git binary version string.
func (g *Git) Version(ctx context.Context) (string, error) {
	output, err := g.run(ctx, "", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}
	return strings.TrimPrefix(output, "git version "), nil
}

// Status inspects path and folds every failure mode into the RepoStatus
// shape. It never returns an error: a missing path, a non-repo directory,
// and a corrupted repository are all expected states the orchestrator
// classifies, not exceptional conditions.
func (g *Git) Status(ctx context.Context, path string) vcs.RepoStatus {
	status := vcs.RepoStatus{}

	if _, err := os.Stat(path); err != nil {
		return status
	}
	status.Exists = true

	// Inside-work-tree doubles as the corruption check: a broken repo
	// answers the same as a plain directory.
	inside, err := g.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	if err != nil || inside != "true" {
		return status
	}
	status.IsVCSRepo = true

	branch, err := g.run(ctx, path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil || branch == "" {
		status.IsDetached = true
	} else {
		status.CurrentBranch = branch
	}

	if !status.IsDetached {
		if tracking, err := g.run(ctx, path, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{upstream}"); err == nil {
			status.Tracking = tracking
		}
	}

	if status.Tracking != "" {
		if counts, err := g.run(ctx, path, "rev-list", "--left-right", "--count", "HEAD...@{upstream}"); err == nil {
			status.AheadCount, status.BehindCount = parseAheadBehind(counts)
		}
	}

	if porcelain, err := g.run(ctx, path, "status", "--porcelain"); err == nil {
		status.IsDirty = porcelain != ""
	}

	return status
}

// GetRemoteAddress returns the fetch URL of remoteName, or "" when the
// remote is not configured.
func (g *Git) GetRemoteAddress(ctx context.Context, path, remoteName string) string {
	address, err := g.run(ctx, path, "remote", "get-url", remoteName)
	if err != nil {
		return ""
	}
	return address
}

// Clone clones address into destination under the given remote name.
func (g *Git) Clone(ctx context.Context, address, destination, remoteName string) error {
	if remoteName == "" {
		remoteName = "origin"
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--origin", remoteName, address, destination)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone failed: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// FetchPruned fetches remoteName with pruning of deleted remote refs.
func (g *Git) FetchPruned(ctx context.Context, path, remoteName string) error {
	if remoteName == "" {
		remoteName = "origin"
	}
	if _, err := g.runCombined(ctx, path, "fetch", "--prune", remoteName); err != nil {
		return err
	}
	return nil
}

// ResetToUpstream hard-resets the working copy to its upstream tracking
// ref. Returns the number of commits the reset moved over, or
// vcs.CountUnknown when history was rewritten and the count is undefined.
func (g *Git) ResetToUpstream(ctx context.Context, path string) (int, error) {
	before, beforeErr := g.run(ctx, path, "rev-parse", "HEAD")

	if _, err := g.runCombined(ctx, path, "reset", "--hard", "@{upstream}"); err != nil {
		return 0, err
	}

	if beforeErr != nil {
		return vcs.CountUnknown, nil
	}
	return g.countCommits(ctx, path, before), nil
}

// FastForwardPull advances the working copy by fast-forward only.
// Returns the number of commits applied, or vcs.CountUnknown.
func (g *Git) FastForwardPull(ctx context.Context, path string) (int, error) {
	before, beforeErr := g.run(ctx, path, "rev-parse", "HEAD")

	if _, err := g.runCombined(ctx, path, "merge", "--ff-only", "@{upstream}"); err != nil {
		return 0, err
	}

	if beforeErr != nil {
		return vcs.CountUnknown, nil
	}
	return g.countCommits(ctx, path, before), nil
}

// UpdateSubmodulesRecursive initializes and updates all submodules.
func (g *Git) UpdateSubmodulesRecursive(ctx context.Context, path string) error {
	_, err := g.runCombined(ctx, path, "submodule", "update", "--init", "--recursive")
	return err
}

// UsesLFS reports whether any LFS-tracked files exist in the checkout.
func (g *Git) UsesLFS(ctx context.Context, path string) bool {
	output, err := g.run(ctx, path, "lfs", "ls-files", "--name-only")
	return err == nil && output != ""
}

// PullLFS downloads LFS content from remoteName.
func (g *Git) PullLFS(ctx context.Context, path, remoteName string) error {
	if remoteName == "" {
		remoteName = "origin"
	}
	_, err := g.runCombined(ctx, path, "lfs", "pull", remoteName)
	return err
}

// countCommits counts commits between the old HEAD and the new one.
// Returns vcs.CountUnknown when the old commit is no longer reachable
// (history rewritten under us).
func (g *Git) countCommits(ctx context.Context, path, before string) int {
	output, err := g.run(ctx, path, "rev-list", "--count", before+"..HEAD")
	if err != nil {
		return vcs.CountUnknown
	}
	count, err := strconv.Atoi(output)
	if err != nil {
		return vcs.CountUnknown
	}
	return count
}

// run executes git with stdout capture, trimming trailing whitespace.
// An empty dir runs in the current directory.
func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return strings.TrimSpace(string(output)), nil
}

// runCombined executes git and folds stderr into the returned error, for
// mutating commands whose diagnostics matter to the user.
func (g *Git) runCombined(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w\n%s", args[0], err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// parseAheadBehind parses "N\tM" from rev-list --left-right --count.
func parseAheadBehind(output string) (ahead, behind int) {
	fields := strings.Fields(output)
	if len(fields) != 2 {
		return 0, 0
	}
	ahead, _ = strconv.Atoi(fields[0])
	behind, _ = strconv.Atoi(fields[1])
	return ahead, behind
}
