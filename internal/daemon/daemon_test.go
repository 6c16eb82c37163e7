package daemon

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rkeller/repofleet/internal/localstate"
	"github.com/rkeller/repofleet/internal/orchestrator"
	"github.com/rkeller/repofleet/internal/registry"
	"github.com/rkeller/repofleet/internal/vcs"
)

// nopAdapter satisfies vcs.Adapter with inert operations; daemon tests
// only exercise scheduling, not reconciliation.
type nopAdapter struct{}

func (nopAdapter) Status(ctx context.Context, path string) vcs.RepoStatus {
	if _, err := os.Stat(path); err != nil {
		return vcs.RepoStatus{}
	}
	return vcs.RepoStatus{Exists: true}
}
func (nopAdapter) GetRemoteAddress(context.Context, string, string) string    { return "" }
func (nopAdapter) Clone(context.Context, string, string, string) error        { return nil }
func (nopAdapter) FetchPruned(context.Context, string, string) error          { return nil }
func (nopAdapter) ResetToUpstream(context.Context, string) (int, error)       { return 0, nil }
func (nopAdapter) FastForwardPull(context.Context, string) (int, error)       { return 0, nil }
func (nopAdapter) UpdateSubmodulesRecursive(context.Context, string) error    { return nil }
func (nopAdapter) UsesLFS(context.Context, string) bool                       { return false }
func (nopAdapter) PullLFS(context.Context, string, string) error              { return nil }

func newTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()

	root := t.TempDir()
	regPath := filepath.Join(root, registry.Filename)

	orch, err := orchestrator.New(orchestrator.Config{
		Root:       root,
		Registry:   registry.NewStore(regPath),
		LocalState: localstate.NewStore(filepath.Join(t.TempDir(), "state.json")),
		Adapter:    nopAdapter{},
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	cfg.Debounce = 10 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)

	d, err := New(orch, orchestrator.Options{}, regPath, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d, regPath
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, orchestrator.Options{}, "x", nil); err == nil {
		t.Error("New accepted a nil orchestrator")
	}

	d, _ := newTestDaemon(t)
	if _, err := New(d.orch, orchestrator.Options{}, "", nil); err == nil {
		t.Error("New accepted an empty registry path")
	}
}

func TestRunFailsWhenRegistryDirMissing(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.registryPath = filepath.Join(t.TempDir(), "gone", "registry.json")

	if err := d.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with a missing registry directory")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d, _ := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Give the initial sync a moment, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestRegistryChangedTracksOwnWrites(t *testing.T) {
	d, regPath := newTestDaemon(t)

	// Before any sync, an existing document counts as changed.
	if err := os.WriteFile(regPath, []byte(`{"version":1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if !d.registryChanged() {
		t.Error("fresh document not detected as changed")
	}

	// A sync run records the document it leaves behind.
	d.runSync(context.Background())
	if d.registryChanged() {
		t.Error("own write detected as a foreign change")
	}

	// A foreign rewrite is detected again.
	if err := os.WriteFile(regPath, []byte(`{"version":1,"tombstones":["github.com:acme/old"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if !d.registryChanged() {
		t.Error("foreign write not detected")
	}
}
