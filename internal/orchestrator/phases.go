package orchestrator

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rkeller/repofleet/internal/identity"
	"github.com/rkeller/repofleet/internal/localstate"
	"github.com/rkeller/repofleet/internal/registry"
	"github.com/rkeller/repofleet/internal/scan"
)

// adoptPhase brings untracked on-disk repositories into the registry.
//
// Repositories with no configured remote, an unresolvable remote address,
// an id that already exists, or a tombstoned id are skipped silently (the
// skip is logged, not summarized). Nested repositories never reach this
// point twice: the scanner discovers them, but the nested check rejects
// them here.
func (o *Orchestrator) adoptPhase(ctx context.Context, reg *registry.Registry, summary *Summary, touched map[string]bool) error {
	scanResult, err := scan.Scan(o.root)
	if errors.Is(err, fs.ErrNotExist) {
		// Fresh machine: nothing on disk yet, phase 2 will populate it.
		return nil
	}
	if err != nil {
		return err
	}

	for _, skipped := range scanResult.Skipped {
		summary.Issues = append(summary.Issues, "scan: "+skipped.Path+": "+skipped.Reason)
	}

	for _, d := range scanResult.Discovered {
		if ctx.Err() != nil {
			return nil
		}
		if reg.FindByOwnerName(d.Owner, d.Name) != nil {
			continue
		}
		if scan.IsNestedRepo(d.LocalPath, o.root) {
			o.logger.Printf("adopt: %s/%s: nested repository, not adopting", d.Owner, d.Name)
			continue
		}

		address := o.adapter.GetRemoteAddress(ctx, d.LocalPath, "origin")
		if address == "" {
			o.logger.Printf("adopt: %s/%s: no remote configured", d.Owner, d.Name)
			continue
		}

		ident, err := identity.Resolve(address)
		if err != nil {
			o.logger.Printf("adopt: %s/%s: %v", d.Owner, d.Name, err)
			continue
		}

		id := ident.ID()
		if reg.FindByID(id) != nil {
			o.logger.Printf("adopt: %s/%s: identity %s already registered", d.Owner, d.Name, id)
			continue
		}
		if reg.HasTombstone(id) {
			o.logger.Printf("adopt: %s/%s: identity %s was deliberately removed, not re-adopting", d.Owner, d.Name, id)
			continue
		}

		entry := registry.Entry{
			ID:           id,
			Host:         ident.Host,
			Owner:        d.Owner,
			Name:         d.Name,
			CloneAddress: ident.CloneAddress,
			AddedAt:      o.now(),
			AddedBy:      "adopt@" + o.hostname,
			Managed:      true,
		}
		registry.DefaultEntryConfig(&entry)

		if meta, ok := o.enricher.Lookup(ctx, ident.Host, ident.Owner, ident.Name); ok {
			entry.Description = meta.Description
			entry.Tags = meta.Tags
		}

		// The in-memory registry is updated in dry-run too, so later
		// phases and the summary see the same shape as a real run;
		// persistence is what dry-run withholds.
		if err := o.registry.AddEntry(reg, entry); err != nil {
			o.logger.Printf("adopt: %s: %v", id, err)
			continue
		}

		touched[id] = true
		summary.add(Result{ID: id, Outcome: OutcomeAdopted})
	}

	return nil
}

// clonePhase materializes managed registry entries that are absent from
// disk. A failed clone is rolled back so it never leaves a partial,
// ownership-ambiguous directory tree, and never aborts the other entries.
func (o *Orchestrator) clonePhase(ctx context.Context, reg *registry.Registry, summary *Summary, touched map[string]bool, opts Options) {
	// Owner directories that exist before the phase begins are never
	// rolled back, whatever happens inside them.
	ownerExisted := make(map[string]bool)
	for i := range reg.Entries {
		owner := reg.Entries[i].Owner
		if _, err := os.Stat(filepath.Join(o.root, owner)); err == nil {
			ownerExisted[owner] = true
		}
	}

	// Candidates are snapshotted before any worker starts: the workers
	// write touched under mu, so the scheduling loop must not read it
	// concurrently.
	var candidates []registry.Entry
	for i := range reg.Entries {
		if reg.Entries[i].Managed && !touched[reg.Entries[i].ID] {
			candidates = append(candidates, reg.Entries[i])
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.Workers)

	for _, entry := range candidates {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(entry registry.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			dest := entry.LocalPath(o.root)
			status := o.adapter.Status(ctx, dest)
			if status.Exists && status.IsVCSRepo {
				return
			}

			if opts.DryRun {
				mu.Lock()
				touched[entry.ID] = true
				summary.add(Result{ID: entry.ID, Outcome: OutcomeCloned})
				mu.Unlock()
				return
			}

			err := o.adapter.Clone(ctx, entry.CloneAddress, dest, entry.DefaultRemote)

			mu.Lock()
			defer mu.Unlock()
			touched[entry.ID] = true

			if err != nil {
				o.rollbackClone(entry, status.Exists, ownerExisted[entry.Owner])
				summary.add(Result{ID: entry.ID, Outcome: OutcomeError, Err: err.Error()})
				o.logger.Printf("clone: %s: %v", entry.ID, err)
				return
			}

			summary.add(Result{ID: entry.ID, Outcome: OutcomeCloned})
		}(entry)
	}

	wg.Wait()
}

// rollbackClone cleans up after a failed clone. The destination is removed
// only when the clone itself created it, and the owner directory only when
// it did not exist before the phase and holds nothing else (a sibling
// entry's concurrent clone must survive).
func (o *Orchestrator) rollbackClone(entry registry.Entry, destExisted, ownerExisted bool) {
	dest := entry.LocalPath(o.root)
	if !destExisted {
		os.RemoveAll(dest)
	}

	if ownerExisted {
		return
	}
	ownerDir := filepath.Join(o.root, entry.Owner)
	if remaining, err := os.ReadDir(ownerDir); err == nil && len(remaining) == 0 {
		os.Remove(ownerDir)
	}
}

// updatePhase brings present, tracked entries up to date with their
// upstream. Classification is strictly ordered; the first matching skip
// condition wins and its reason string is stable.
func (o *Orchestrator) updatePhase(ctx context.Context, reg *registry.Registry, state *localstate.LocalState, summary *Summary, touched map[string]bool, opts Options) {
	// Same snapshot discipline as clonePhase, for symmetry; here the
	// workers never write touched, only the local state under stateMu.
	var candidates []registry.Entry
	for i := range reg.Entries {
		entry := reg.Entries[i]
		if !entry.Managed || touched[entry.ID] {
			continue
		}
		if !matchesPattern(opts.Pattern, entry.Owner+"/"+entry.Name) {
			continue
		}
		candidates = append(candidates, entry)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, opts.Workers)

	for _, entry := range candidates {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(entry registry.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			result := o.updateEntry(ctx, entry, state, &mu, opts)

			mu.Lock()
			summary.add(result)
			mu.Unlock()
		}(entry)
	}

	wg.Wait()
}

// updateEntry performs the phase-3 work for one entry and returns its
// tagged outcome. stateMu guards writes into the shared local state.
func (o *Orchestrator) updateEntry(ctx context.Context, entry registry.Entry, state *localstate.LocalState, stateMu *sync.Mutex, opts Options) Result {
	dest := entry.LocalPath(o.root)
	status := o.adapter.Status(ctx, dest)

	// Skip classification: first match wins, order is load-bearing.
	switch {
	case !status.Exists:
		return Result{ID: entry.ID, Outcome: OutcomeSkipped, Reason: SkipDirectoryMissing}
	case !status.IsVCSRepo:
		return Result{ID: entry.ID, Outcome: OutcomeSkipped, Reason: SkipNotARepository}
	case status.IsDetached:
		return Result{ID: entry.ID, Outcome: OutcomeSkipped, Reason: SkipDetached}
	case status.Tracking == "":
		return Result{ID: entry.ID, Outcome: OutcomeSkipped, Reason: SkipNoUpstream}
	case status.IsDirty && !opts.Force:
		return Result{ID: entry.ID, Outcome: OutcomeSkipped, Reason: SkipDirty}
	}

	if opts.DryRun {
		return Result{ID: entry.ID, Outcome: OutcomeUpdated}
	}

	if err := o.adapter.FetchPruned(ctx, dest, entry.DefaultRemote); err != nil {
		return Result{ID: entry.ID, Outcome: OutcomeError, Err: err.Error()}
	}

	var commits int
	var err error
	switch entry.UpdateStrategy {
	case registry.UpdateFFOnly:
		commits, err = o.adapter.FastForwardPull(ctx, dest)
	default:
		commits, err = o.adapter.ResetToUpstream(ctx, dest)
	}
	if err != nil {
		return Result{ID: entry.ID, Outcome: OutcomeError, Err: err.Error()}
	}

	// Best-effort follow-ups: failures are logged and swallowed, never
	// escalated to entry-level errors.
	if entry.SubmodulePolicy == registry.SubmodulesRecursive {
		if err := o.adapter.UpdateSubmodulesRecursive(ctx, dest); err != nil {
			o.logger.Printf("update: %s: submodules: %v", entry.ID, err)
		}
	}
	if entry.LFSPolicy == registry.LFSAlways ||
		(entry.LFSPolicy == registry.LFSAuto && o.adapter.UsesLFS(ctx, dest)) {
		if err := o.adapter.PullLFS(ctx, dest, entry.DefaultRemote); err != nil {
			o.logger.Printf("update: %s: lfs: %v", entry.ID, err)
		}
	}

	now := o.now()
	stateMu.Lock()
	o.state.UpdateRepoState(state, entry.ID, localstate.RepoState{LastSyncedAt: &now})
	stateMu.Unlock()

	return Result{ID: entry.ID, Outcome: OutcomeUpdated, Commits: commits}
}

// matchesPattern matches owner/name against a glob, falling back to a
// substring match when the pattern has no glob metacharacters.
func matchesPattern(pattern, ownerName string) bool {
	if pattern == "" {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		if ok, err := path.Match(pattern, ownerName); err == nil && ok {
			return true
		}
		// A bare glob like "wid*" should also match the name half.
		if _, name, found := strings.Cut(ownerName, "/"); found {
			if ok, err := path.Match(pattern, name); err == nil && ok {
				return true
			}
		}
		return false
	}
	return strings.Contains(ownerName, pattern)
}
