// Package registry provides the shared desired-state document for repofleet.
//
// The registry is a single JSON document listing every repository the user
// wants checked out, plus tombstones for repositories that were deliberately
// removed. It is designed to be synchronized between machines (via a dotfiles
// repo, a file syncer, or similar), so reads normalize forgivingly and
// tombstones prevent a stale copy from resurrecting removed entries.
package registry

import (
	"errors"
	"path/filepath"
	"time"
)

// Version is the current registry document schema version.
const Version = 1

// Common errors returned by registry operations.
var (
	// ErrCorrupt is returned when the registry document cannot be parsed
	// at all, or an entry is missing required identity fields. A corrupt
	// registry is never silently repaired; the sync run must stop.
	ErrCorrupt = errors.New("corrupt registry document")

	// ErrDuplicateID is returned when adding an entry whose id already exists.
	ErrDuplicateID = errors.New("entry id already exists")

	// ErrNotFound is returned when updating or removing an entry that
	// does not exist.
	ErrNotFound = errors.New("entry not found")
)

// UpdateStrategy controls how phase 3 moves a checkout to its upstream.
type UpdateStrategy string

const (
	// UpdateHardReset discards local history divergence and resets the
	// working copy to the upstream tracking ref.
	UpdateHardReset UpdateStrategy = "hard-reset"

	// UpdateFFOnly only advances the checkout when a fast-forward is possible.
	UpdateFFOnly UpdateStrategy = "fast-forward-only"
)

// SubmodulePolicy controls submodule handling after an update.
type SubmodulePolicy string

const (
	SubmodulesNone      SubmodulePolicy = "none"
	SubmodulesRecursive SubmodulePolicy = "recursive"
)

// LFSPolicy controls when LFS content is pulled after an update.
type LFSPolicy string

const (
	// LFSAuto pulls LFS content only for repositories that use LFS.
	LFSAuto LFSPolicy = "auto"

	// LFSAlways pulls LFS content unconditionally.
	LFSAlways LFSPolicy = "always"

	// LFSNever skips LFS content entirely.
	LFSNever LFSPolicy = "never"
)

// Entry describes one desired repository checkout.
type Entry struct {
	// ===== Identity (required, immutable after creation) =====

	// ID is the stable identity key: host:owner/name. It is derived from
	// the identity fields and never reassigned.
	ID string `json:"id"`

	Host         string `json:"host"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	CloneAddress string `json:"clone_address"`

	// ===== Optional metadata =====

	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// ===== Behavior config =====

	DefaultRemote   string          `json:"default_remote"`
	UpdateStrategy  UpdateStrategy  `json:"update_strategy"`
	SubmodulePolicy SubmodulePolicy `json:"submodule_policy"`
	LFSPolicy       LFSPolicy       `json:"lfs_policy"`

	// ===== Lifecycle =====

	AddedAt time.Time `json:"added_at"`
	AddedBy string    `json:"added_by,omitempty"`

	// Managed is true once a real local checkout is expected for this entry.
	Managed bool `json:"managed"`
}

// LocalPath returns the checkout path for this entry under root.
func (e *Entry) LocalPath(root string) string {
	return filepath.Join(root, e.Owner, e.Name)
}

// Registry is the whole desired-state document.
type Registry struct {
	Version    int      `json:"version"`
	Entries    []Entry  `json:"entries"`
	Tombstones []string `json:"tombstones,omitempty"`
}

// New returns an empty registry at the current schema version.
func New() *Registry {
	return &Registry{Version: Version}
}

// FindByID returns the entry with the given id, or nil.
func (r *Registry) FindByID(id string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].ID == id {
			return &r.Entries[i]
		}
	}
	return nil
}

// FindByOwnerName returns the entry with the given owner and name, or nil.
func (r *Registry) FindByOwnerName(owner, name string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Owner == owner && r.Entries[i].Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// HasTombstone reports whether id has been deliberately removed.
func (r *Registry) HasTombstone(id string) bool {
	for _, t := range r.Tombstones {
		if t == id {
			return true
		}
	}
	return false
}

// DefaultEntryConfig fills zero-valued behavior config fields with their
// documented defaults. Identity and metadata fields are left untouched.
func DefaultEntryConfig(e *Entry) {
	if e.DefaultRemote == "" {
		e.DefaultRemote = "origin"
	}
	if e.UpdateStrategy == "" {
		e.UpdateStrategy = UpdateHardReset
	}
	if e.SubmodulePolicy == "" {
		e.SubmodulePolicy = SubmodulesNone
	}
	if e.LFSPolicy == "" {
		e.LFSPolicy = LFSAuto
	}
}
