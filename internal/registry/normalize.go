package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Issue describes one non-fatal problem found while normalizing a document.
// Issues are reported to the caller but never abort a read.
type Issue struct {
	// Path locates the problem, e.g. "entries[2].update_strategy"
	Path string

	// Message explains what was dropped or repaired
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Field sets for the explicit schema pass. Anything not listed here is an
// unknown field: dropped and reported, never fatal. This is the
// forward-compatibility contract that lets older builds read documents
// written by newer ones.
var (
	knownTopLevelFields = map[string]bool{
		"version":    true,
		"entries":    true,
		"tombstones": true,
	}

	knownEntryFields = map[string]bool{
		"id":               true,
		"host":             true,
		"owner":            true,
		"name":             true,
		"clone_address":    true,
		"description":      true,
		"tags":             true,
		"default_remote":   true,
		"update_strategy":  true,
		"submodule_policy": true,
		"lfs_policy":       true,
		"added_at":         true,
		"added_by":         true,
		"managed":          true,
	}

	requiredEntryFields = []string{"id", "host", "owner", "name", "clone_address"}
)

// Decode parses a registry document from raw JSON, applying the full
// normalization pass.
//
// Returns ErrCorrupt only when the document is not parseable as JSON at
// all, or an entry is missing one of the required identity fields. Every
// other shape problem is repaired and reported as an Issue.
func Decode(data []byte) (*Registry, []Issue, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var issues []Issue
	reg := New()

	for key := range raw {
		if !knownTopLevelFields[key] {
			issues = append(issues, Issue{Path: key, Message: "unknown field dropped"})
		}
	}

	if v, ok := raw["version"]; ok {
		if f, ok := v.(float64); ok {
			reg.Version = int(f)
		} else {
			issues = append(issues, Issue{Path: "version", Message: "not a number, using current version"})
		}
	}

	if rawEntries, ok := raw["entries"].([]any); ok {
		for i, rawEntry := range rawEntries {
			entryMap, ok := rawEntry.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("%w: entries[%d] is not an object", ErrCorrupt, i)
			}

			entry, entryIssues, err := decodeEntry(entryMap, i)
			if err != nil {
				return nil, nil, err
			}
			issues = append(issues, entryIssues...)
			reg.Entries = append(reg.Entries, entry)
		}
	} else if _, present := raw["entries"]; present {
		return nil, nil, fmt.Errorf("%w: entries is not a list", ErrCorrupt)
	}

	if rawTombstones, ok := raw["tombstones"].([]any); ok {
		for i, rawID := range rawTombstones {
			id, ok := rawID.(string)
			if !ok {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("tombstones[%d]", i),
					Message: "not a string, dropped",
				})
				continue
			}
			reg.Tombstones = append(reg.Tombstones, id)
		}
	}

	issues = append(issues, Normalize(reg)...)
	return reg, issues, nil
}

// decodeEntry validates and extracts a single entry object.
func decodeEntry(m map[string]any, index int) (Entry, []Issue, error) {
	path := func(field string) string { return fmt.Sprintf("entries[%d].%s", index, field) }

	for _, field := range requiredEntryFields {
		s, ok := m[field].(string)
		if !ok || s == "" {
			return Entry{}, nil, fmt.Errorf("%w: entries[%d] missing required field %q", ErrCorrupt, index, field)
		}
	}

	var issues []Issue
	for key := range m {
		if !knownEntryFields[key] {
			issues = append(issues, Issue{Path: path(key), Message: "unknown field dropped"})
		}
	}

	str := func(field string) string {
		s, _ := m[field].(string)
		return s
	}

	entry := Entry{
		ID:              str("id"),
		Host:            str("host"),
		Owner:           str("owner"),
		Name:            str("name"),
		CloneAddress:    str("clone_address"),
		Description:     str("description"),
		DefaultRemote:   str("default_remote"),
		UpdateStrategy:  UpdateStrategy(str("update_strategy")),
		SubmodulePolicy: SubmodulePolicy(str("submodule_policy")),
		LFSPolicy:       LFSPolicy(str("lfs_policy")),
		AddedBy:         str("added_by"),
	}

	if managed, ok := m["managed"].(bool); ok {
		entry.Managed = managed
	}

	if rawTags, ok := m["tags"].([]any); ok {
		for i, rawTag := range rawTags {
			tag, ok := rawTag.(string)
			if !ok {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("entries[%d].tags[%d]", index, i),
					Message: "not a string, dropped",
				})
				continue
			}
			entry.Tags = append(entry.Tags, tag)
		}
	}

	if rawAt, ok := m["added_at"].(string); ok {
		at, err := time.Parse(time.RFC3339, rawAt)
		if err != nil {
			issues = append(issues, Issue{Path: path("added_at"), Message: "invalid timestamp dropped"})
		} else {
			entry.AddedAt = at
		}
	}

	return entry, issues, nil
}

// Normalize repairs an in-memory registry value in place and reports what
// it changed. It is idempotent: normalizing an already-normal registry
// produces no issues and no changes.
//
// Repairs applied:
//   - invalid enum values fall back to their documented defaults
//   - empty default_remote falls back to "origin"
//   - tombstones referencing a still-active id are discarded
//   - tombstones are deduplicated and sorted
func Normalize(r *Registry) []Issue {
	var issues []Issue

	for i := range r.Entries {
		e := &r.Entries[i]
		path := func(field string) string { return fmt.Sprintf("entries[%d].%s", i, field) }

		if e.DefaultRemote == "" {
			e.DefaultRemote = "origin"
		}

		switch e.UpdateStrategy {
		case UpdateHardReset, UpdateFFOnly:
		default:
			if e.UpdateStrategy != "" {
				issues = append(issues, Issue{
					Path:    path("update_strategy"),
					Message: fmt.Sprintf("invalid value %q, using %q", e.UpdateStrategy, UpdateHardReset),
				})
			}
			e.UpdateStrategy = UpdateHardReset
		}

		switch e.SubmodulePolicy {
		case SubmodulesNone, SubmodulesRecursive:
		default:
			if e.SubmodulePolicy != "" {
				issues = append(issues, Issue{
					Path:    path("submodule_policy"),
					Message: fmt.Sprintf("invalid value %q, using %q", e.SubmodulePolicy, SubmodulesNone),
				})
			}
			e.SubmodulePolicy = SubmodulesNone
		}

		switch e.LFSPolicy {
		case LFSAuto, LFSAlways, LFSNever:
		default:
			if e.LFSPolicy != "" {
				issues = append(issues, Issue{
					Path:    path("lfs_policy"),
					Message: fmt.Sprintf("invalid value %q, using %q", e.LFSPolicy, LFSAuto),
				})
			}
			e.LFSPolicy = LFSAuto
		}
	}

	active := make(map[string]bool, len(r.Entries))
	for i := range r.Entries {
		active[r.Entries[i].ID] = true
	}

	seen := make(map[string]bool, len(r.Tombstones))
	kept := r.Tombstones[:0]
	for _, id := range r.Tombstones {
		if active[id] {
			issues = append(issues, Issue{
				Path:    "tombstones",
				Message: fmt.Sprintf("tombstone %q references an active entry, discarded", id),
			})
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		kept = append(kept, id)
	}
	sort.Strings(kept)
	if len(kept) == 0 {
		kept = nil
	}
	r.Tombstones = kept

	return issues
}
