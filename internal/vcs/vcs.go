// Package vcs defines the narrow contract the sync orchestrator needs from
// an external version-control tool.
//
// The orchestrator never shells out itself; everything it wants from git
// goes through the Adapter interface. This keeps the reconciliation logic
// testable with a fake and keeps version-control internals out of scope:
// the adapter implementation (internal/vcs/git) is a thin wrapper over the
// external binary.
package vcs

import (
	"context"
	"errors"
)

// CountUnknown is returned as a commit count when the number of commits
// applied cannot be determined (e.g. upstream history was rewritten).
// Callers must treat it as "success, count unknown", not as failure.
const CountUnknown = -1

// ErrToolNotAvailable is returned when the external version-control binary
// is not installed or not on PATH.
var ErrToolNotAvailable = errors.New("version-control tool not available")

// RepoStatus is the transient per-run view of one checkout. It is computed
// fresh each run and never persisted.
type RepoStatus struct {
	// Exists is true when the path exists on disk at all.
	Exists bool

	// IsVCSRepo is true when the path is a working version-control checkout.
	IsVCSRepo bool

	// CurrentBranch is the checked-out branch, empty when detached.
	CurrentBranch string

	// IsDetached is true when HEAD points at a commit rather than a branch.
	IsDetached bool

	// Tracking is the upstream ref the current branch tracks, empty if none.
	Tracking string

	// AheadCount and BehindCount are relative to Tracking; zero when
	// Tracking is empty.
	AheadCount  int
	BehindCount int

	// IsDirty is true when the working tree has uncommitted changes.
	IsDirty bool
}

// Adapter is the complete set of operations the orchestrator performs
// against the external version-control tool.
//
// Status and GetRemoteAddress are diagnostic and never return an error for
// the "not a repo" family of conditions; they fold those into their return
// values so the orchestrator's classification logic stays linear.
type Adapter interface {
	// Status inspects path and returns its transient status. A missing
	// path yields Exists:false; a present but non-repo path yields
	// Exists:true, IsVCSRepo:false. Internal tool failures on a corrupted
	// repo are folded into the same shape rather than raised.
	Status(ctx context.Context, path string) RepoStatus

	// GetRemoteAddress returns the fetch address of the named remote,
	// or "" when the remote is not configured.
	GetRemoteAddress(ctx context.Context, path, remoteName string) string

	// Clone clones address into destination with the given remote name.
	Clone(ctx context.Context, address, destination, remoteName string) error

	// FetchPruned fetches the named remote with pruning.
	FetchPruned(ctx context.Context, path, remoteName string) error

	// ResetToUpstream hard-resets the working copy to its upstream
	// tracking ref and returns the number of commits applied, or
	// CountUnknown.
	ResetToUpstream(ctx context.Context, path string) (int, error)

	// FastForwardPull advances the working copy by fast-forward only and
	// returns the number of commits applied, or CountUnknown.
	FastForwardPull(ctx context.Context, path string) (int, error)

	// UpdateSubmodulesRecursive initializes and updates submodules.
	UpdateSubmodulesRecursive(ctx context.Context, path string) error

	// UsesLFS reports whether the checkout tracks any LFS content.
	UsesLFS(ctx context.Context, path string) bool

	// PullLFS downloads LFS content from the named remote.
	PullLFS(ctx context.Context, path, remoteName string) error
}
