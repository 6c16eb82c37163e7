package orchestrator

import (
	"fmt"
	"sort"
)

// Outcome classifies what a sync run did with one entry. Every entry
// touched by a run ends in exactly one outcome.
type Outcome string

const (
	OutcomeAdopted Outcome = "adopted"
	OutcomeCloned  Outcome = "cloned"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Skip reasons, in classification priority order. The exact strings are
// stable: scripts and tests match on them.
const (
	SkipDirectoryMissing = "directory missing"
	SkipNotARepository   = "not a repository"
	SkipDetached         = "detached"
	SkipNoUpstream       = "no upstream"
	SkipDirty            = "dirty working tree"
)

// Result is the tagged per-entry outcome of a sync run.
//
// Per-entry failures are values, not raised errors: only store-level
// corruption aborts a run.
type Result struct {
	// ID is the registry entry id, host:owner/name.
	ID string

	Outcome Outcome

	// Reason is set for OutcomeSkipped.
	Reason string

	// Err is the underlying message for OutcomeError.
	Err string

	// Commits is the number of commits applied for OutcomeUpdated;
	// vcs.CountUnknown when indeterminate.
	Commits int
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeSkipped:
		return fmt.Sprintf("%s: skipped (%s)", r.ID, r.Reason)
	case OutcomeError:
		return fmt.Sprintf("%s: error: %s", r.ID, r.Err)
	case OutcomeUpdated:
		if r.Commits > 0 {
			return fmt.Sprintf("%s: updated (%d commits)", r.ID, r.Commits)
		}
		return fmt.Sprintf("%s: updated", r.ID)
	default:
		return fmt.Sprintf("%s: %s", r.ID, r.Outcome)
	}
}

// Summary aggregates one run. A run always completes with a summary, even
// when individual entries failed.
type Summary struct {
	DryRun bool

	Results []Result

	Adopted int
	Cloned  int
	Updated int
	Skipped int
	Errors  int

	// Issues are non-fatal document normalization findings from the
	// registry and local state reads, plus scanner skips.
	Issues []string
}

// add records a result and updates the aggregate counts.
func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeAdopted:
		s.Adopted++
	case OutcomeCloned:
		s.Cloned++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeError:
		s.Errors++
	}
}

// sortResults orders results by id for deterministic reporting after
// concurrent phases complete.
func (s *Summary) sortResults() {
	sort.Slice(s.Results, func(i, j int) bool {
		return s.Results[i].ID < s.Results[j].ID
	})
}

// Failed reports whether any entry ended in error; drives the exit status.
func (s *Summary) Failed() bool {
	return s.Errors > 0
}
