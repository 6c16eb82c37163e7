// Package localstate provides the machine-local sync state document.
//
// Local state is deliberately separate from the registry: the registry is
// shared between machines, while local state records when *this* machine
// last synced each entry. Keeping them apart means a registry merge from
// another machine can never clobber this machine's sync history. The
// document is only ever read and written wholesale, never merged.
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Version is the current local state document schema version.
const Version = 1

// ErrCorrupt is returned when the local state document cannot be parsed
// as JSON at all.
var ErrCorrupt = errors.New("corrupt local state document")

// RepoState is the per-entry sync record, keyed by registry entry id.
type RepoState struct {
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// LocalState is the whole machine-local document.
type LocalState struct {
	Version     int                  `json:"version"`
	LastSyncRun *time.Time           `json:"last_sync_run,omitempty"`
	Repos       map[string]RepoState `json:"repos,omitempty"`
}

// New returns an empty local state at the current schema version.
func New() *LocalState {
	return &LocalState{Version: Version, Repos: make(map[string]RepoState)}
}

// Issue describes one non-fatal problem found while reading the document.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Store reads and writes the local state document at a fixed path, with
// the same atomic temp-file-then-rename discipline as the registry store.
type Store struct {
	path string

	// now is swappable for tests
	now func() time.Time
}

// NewStore returns a store bound to the given document path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Read loads and normalizes the local state document. A missing document
// yields an empty state. Unknown fields and malformed per-entry records
// are dropped and reported as issues; only unparseable JSON is fatal.
func (s *Store) Read() (*LocalState, []Issue, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read local state: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var issues []Issue
	state := New()

	for key := range raw {
		switch key {
		case "version", "last_sync_run", "repos":
		default:
			issues = append(issues, Issue{Path: key, Message: "unknown field dropped"})
		}
	}

	if v, ok := raw["version"].(float64); ok {
		state.Version = int(v)
	}

	if rawRun, ok := raw["last_sync_run"].(string); ok {
		if at, err := time.Parse(time.RFC3339, rawRun); err == nil {
			state.LastSyncRun = &at
		} else {
			issues = append(issues, Issue{Path: "last_sync_run", Message: "invalid timestamp dropped"})
		}
	}

	rawRepos, ok := raw["repos"].(map[string]any)
	if !ok && raw["repos"] != nil {
		issues = append(issues, Issue{Path: "repos", Message: "not an object, dropped"})
	}
	for id, rawRepo := range rawRepos {
		repoMap, ok := rawRepo.(map[string]any)
		if !ok {
			issues = append(issues, Issue{
				Path:    "repos." + id,
				Message: "malformed record dropped",
			})
			continue
		}

		var rs RepoState
		for key := range repoMap {
			if key != "last_synced_at" {
				issues = append(issues, Issue{Path: "repos." + id + "." + key, Message: "unknown field dropped"})
			}
		}
		if rawAt, ok := repoMap["last_synced_at"].(string); ok {
			if at, err := time.Parse(time.RFC3339, rawAt); err == nil {
				rs.LastSyncedAt = &at
			} else {
				issues = append(issues, Issue{
					Path:    "repos." + id + ".last_synced_at",
					Message: "invalid timestamp dropped",
				})
			}
		}
		state.Repos[id] = rs
	}

	return state, issues, nil
}

// Write persists the local state atomically.
func (s *Store) Write(state *LocalState) error {
	state.Version = Version

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize local state: %w", err)
	}
	data = append(data, '\n')

	return writeFileAtomic(s.path, data)
}

// UpdateRepoState merges updates into the per-entry record for id,
// creating the record if absent.
func (s *Store) UpdateRepoState(state *LocalState, id string, updates RepoState) {
	if state.Repos == nil {
		state.Repos = make(map[string]RepoState)
	}

	current := state.Repos[id]
	if updates.LastSyncedAt != nil {
		current.LastSyncedAt = updates.LastSyncedAt
	}
	state.Repos[id] = current
}

// RemoveRepoState deletes the per-entry record for id if present.
func (s *Store) RemoveRepoState(state *LocalState, id string) {
	delete(state.Repos, id)
}

// UpdateLastSyncRun stamps the current time as the last full run.
func (s *Store) UpdateLastSyncRun(state *LocalState) {
	now := s.now()
	state.LastSyncRun = &now
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
