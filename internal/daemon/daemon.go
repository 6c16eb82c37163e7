// Package daemon runs sync continuously: on an interval, and whenever the
// registry document changes on disk.
//
// The registry is the document other machines write (through a dotfiles
// repo, a file syncer, or similar), so a change landing on disk usually
// means another machine added or removed repositories. Watching it keeps
// this machine converged without waiting for the next interval tick.
package daemon

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rkeller/repofleet/internal/orchestrator"
)

// Config holds daemon configuration.
type Config struct {
	// Interval is how often a sync runs regardless of registry changes.
	Interval time.Duration

	// Debounce is how long to wait after a registry change before
	// syncing, batching rapid rewrites together.
	Debounce time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: time.Hour,
		Debounce: 2 * time.Second,
		Logger:   log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates registry watching and periodic sync runs.
type Daemon struct {
	orch         *orchestrator.Orchestrator
	opts         orchestrator.Options
	registryPath string
	config       *Config

	watcher *fsnotify.Watcher

	// trigger coalesces change notifications into pending syncs
	trigger chan struct{}

	// lastHash is the registry content after our own most recent sync,
	// used to ignore the watch events our own writes produce
	lastHash [sha256.Size]byte

	wg sync.WaitGroup
}

// New creates a daemon around an orchestrator. registryPath is the
// document whose changes trigger immediate syncs.
func New(orch *orchestrator.Orchestrator, opts orchestrator.Options, registryPath string, config *Config) (*Daemon, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if registryPath == "" {
		return nil, fmt.Errorf("registryPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		orch:         orch,
		opts:         opts,
		registryPath: registryPath,
		config:       config,
		watcher:      watcher,
		trigger:      make(chan struct{}, 1),
	}, nil
}

// Run performs an initial sync, then loops until ctx is cancelled.
// In-flight sync runs complete before Run returns.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.watcher.Close()

	// Watch the directory, not the file: atomic rename writes replace
	// the inode, and directory watches survive that.
	if err := d.watcher.Add(filepath.Dir(d.registryPath)); err != nil {
		return fmt.Errorf("failed to watch registry directory: %w", err)
	}

	d.config.Logger.Printf("watching %s, interval %s", d.registryPath, d.config.Interval)

	d.wg.Add(1)
	go d.watchRegistry(ctx)

	d.runSync(ctx)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.config.Logger.Println("shutting down")
			d.wg.Wait()
			return nil
		case <-ticker.C:
			d.runSync(ctx)
		case <-d.trigger:
			// Debounce: let a burst of registry rewrites settle.
			timer := time.NewTimer(d.config.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				d.wg.Wait()
				return nil
			case <-timer.C:
			}
			d.drainTrigger()
			if !d.registryChanged() {
				continue
			}
			d.config.Logger.Println("registry changed, syncing")
			d.runSync(ctx)
		}
	}
}

// watchRegistry forwards registry document events into the trigger channel.
func (d *Daemon) watchRegistry(ctx context.Context) {
	defer d.wg.Done()

	base := filepath.Base(d.registryPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case d.trigger <- struct{}{}:
				default:
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("watch error: %v", err)
		}
	}
}

// drainTrigger clears any notification that arrived during the debounce
// window; the upcoming sync covers it.
func (d *Daemon) drainTrigger() {
	select {
	case <-d.trigger:
	default:
	}
}

// registryChanged reports whether the registry content differs from what
// the last sync run left behind.
func (d *Daemon) registryChanged() bool {
	data, err := os.ReadFile(d.registryPath)
	if err != nil {
		return true
	}
	return sha256.Sum256(data) != d.lastHash
}

// runSync executes one sync run and logs the outcome.
func (d *Daemon) runSync(ctx context.Context) {
	summary, err := d.orch.Run(ctx, d.opts)
	if err != nil {
		d.config.Logger.Printf("sync failed: %v", err)
		return
	}
	if summary.Failed() {
		d.config.Logger.Printf("sync finished with %d errors", summary.Errors)
	}

	if data, err := os.ReadFile(d.registryPath); err == nil {
		d.lastHash = sha256.Sum256(data)
	}
}
