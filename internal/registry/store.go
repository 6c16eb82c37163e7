package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Filename is the registry document's name inside the content root.
// The scanner treats it as reserved.
const Filename = "repofleet-registry.json"

// Store reads and writes the registry document at a fixed path.
//
// Writes are atomic: the document is serialized to a temporary file in the
// same directory and renamed over the target, so a concurrent reader never
// observes a half-written document.
type Store struct {
	path string
}

// NewStore returns a store bound to the given document path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path this store is bound to.
func (s *Store) Path() string {
	return s.path
}

// Read loads and normalizes the registry document.
//
// A missing document yields an empty registry; this is how the store is
// bootstrapped on first use. Issues found during normalization are
// returned alongside the registry, never as errors. Only an unparseable
// document or missing identity fields produce ErrCorrupt.
func (s *Store) Read() (*Registry, []Issue, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read registry: %w", err)
	}

	return Decode(data)
}

// Write re-normalizes and persists the registry atomically.
func (s *Store) Write(r *Registry) error {
	Normalize(r)
	r.Version = Version

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize registry: %w", err)
	}
	data = append(data, '\n')

	return writeFileAtomic(s.path, data)
}

// AddEntry appends a new entry after normalizing its behavior config.
// Returns ErrDuplicateID if the id is already registered.
func (s *Store) AddEntry(r *Registry, entry Entry) error {
	if r.FindByID(entry.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, entry.ID)
	}

	DefaultEntryConfig(&entry)
	r.Entries = append(r.Entries, entry)
	Normalize(r)
	return nil
}

// UpdateEntry replaces the entry with the same id.
// Returns ErrNotFound if the id is not registered.
func (s *Store) UpdateEntry(r *Registry, entry Entry) error {
	for i := range r.Entries {
		if r.Entries[i].ID == entry.ID {
			r.Entries[i] = entry
			Normalize(r)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, entry.ID)
}

// RemoveEntry deletes the entry with the given id.
// Returns ErrNotFound if the id is not registered.
func (s *Store) RemoveEntry(r *Registry, id string) error {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			r.Entries = append(r.Entries[:i], r.Entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// AddTombstone records that id was deliberately removed. No-op when the
// tombstone already exists.
func (s *Store) AddTombstone(r *Registry, id string) {
	if r.HasTombstone(id) {
		return
	}
	r.Tombstones = append(r.Tombstones, id)
	Normalize(r)
}

// RemoveTombstone forgets a tombstone, allowing the id to be re-added.
// No-op when no such tombstone exists.
func (s *Store) RemoveTombstone(r *Registry, id string) {
	for i, t := range r.Tombstones {
		if t == id {
			r.Tombstones = append(r.Tombstones[:i], r.Tombstones[i+1:]...)
			return
		}
	}
}

// writeFileAtomic writes data to path via a temporary file in the same
// directory followed by a rename.
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
