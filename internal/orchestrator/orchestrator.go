// Package orchestrator reconciles the registry, the local filesystem, and
// the remote origins into a consistent set of checkouts.
//
// A run is a three-phase state machine:
//
//	Phase 1 (adopt):  untracked repos found on disk are added to the registry
//	Phase 2 (clone):  registry entries missing from disk are cloned
//	Phase 3 (update): present, tracked entries are brought up to date
//
// Failure is isolated per entry: one repository's broken remote never
// affects another's outcome, and the run always completes with a summary.
// Both stores are written exactly once, after all phases join, so a crash
// mid-run leaves the previous consistent snapshot intact.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rkeller/repofleet/internal/hostapi"
	"github.com/rkeller/repofleet/internal/localstate"
	"github.com/rkeller/repofleet/internal/registry"
	"github.com/rkeller/repofleet/internal/vcs"
)

// DefaultWorkers bounds per-phase fan-out when Options.Workers is unset.
const DefaultWorkers = 4

// Options are the per-run modes.
type Options struct {
	// DryRun computes everything but issues no mutating adapter calls
	// and writes neither store.
	DryRun bool

	// Force permits updating a dirty working copy.
	Force bool

	// Pattern restricts phase 3 to entries whose owner/name matches the
	// glob (or contains it as a substring when it has no glob metacharacters).
	Pattern string

	// Workers bounds concurrent entries within phases 2 and 3.
	Workers int
}

// Config wires an orchestrator together.
type Config struct {
	// Root is the content root directory, laid out root/owner/name.
	Root string

	Registry   *registry.Store
	LocalState *localstate.Store
	Adapter    vcs.Adapter

	// Enricher is optional; nil disables metadata enrichment.
	Enricher hostapi.Enricher

	// Logger is optional; nil logs to stderr.
	Logger *log.Logger
}

// Orchestrator runs sync reconciliation. It is the sole writer of both
// stores during a run; callers must not run two syncs concurrently against
// the same stores.
type Orchestrator struct {
	root     string
	registry *registry.Store
	state    *localstate.Store
	adapter  vcs.Adapter
	enricher hostapi.Enricher
	logger   *log.Logger

	// now is swappable for tests
	now func() time.Time

	// hostname tags adopted entries with provenance
	hostname string
}

// New validates the config and returns an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry store cannot be nil")
	}
	if cfg.LocalState == nil {
		return nil, fmt.Errorf("local state store cannot be nil")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter cannot be nil")
	}

	enricher := cfg.Enricher
	if enricher == nil {
		enricher = hostapi.NopEnricher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	hostname, _ := os.Hostname()

	return &Orchestrator{
		root:     cfg.Root,
		registry: cfg.Registry,
		state:    cfg.LocalState,
		adapter:  cfg.Adapter,
		enricher: enricher,
		logger:   logger,
		now:      time.Now,
		hostname: hostname,
	}, nil
}

// Run executes one full reconciliation.
//
// Fatal errors (corrupt store documents, unreadable content root) abort
// before any mutation. Per-entry failures are folded into the summary.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	reg, regIssues, err := o.registry.Read()
	if err != nil {
		return nil, err
	}
	state, stateIssues, err := o.state.Read()
	if err != nil {
		return nil, err
	}

	summary := &Summary{DryRun: opts.DryRun}
	for _, issue := range regIssues {
		summary.Issues = append(summary.Issues, "registry: "+issue.String())
	}
	for _, issue := range stateIssues {
		summary.Issues = append(summary.Issues, "local state: "+issue.String())
	}

	// Each entry gets exactly one outcome per run. Entries adopted or
	// cloned (or failed) in an earlier phase are not revisited by a
	// later one.
	touched := make(map[string]bool)

	if err := o.adoptPhase(ctx, reg, summary, touched); err != nil {
		return nil, fmt.Errorf("adopt phase: %w", err)
	}
	o.clonePhase(ctx, reg, summary, touched, opts)
	o.updatePhase(ctx, reg, state, summary, touched, opts)

	summary.sortResults()

	if !opts.DryRun {
		// Local state records for ids no longer in the registry are
		// stale; drop them before persisting.
		for id := range state.Repos {
			if reg.FindByID(id) == nil {
				o.state.RemoveRepoState(state, id)
			}
		}
		o.state.UpdateLastSyncRun(state)

		if err := o.registry.Write(reg); err != nil {
			return summary, fmt.Errorf("failed to persist registry: %w", err)
		}
		if err := o.state.Write(state); err != nil {
			return summary, fmt.Errorf("failed to persist local state: %w", err)
		}
	}

	o.logger.Printf("sync complete: %d adopted, %d cloned, %d updated, %d skipped, %d errors",
		summary.Adopted, summary.Cloned, summary.Updated, summary.Skipped, summary.Errors)

	return summary, nil
}
