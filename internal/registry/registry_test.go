package registry

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func testEntry(id string) Entry {
	owner, name := "acme", id
	return Entry{
		ID:              "github.com:" + owner + "/" + name,
		Host:            "github.com",
		Owner:           owner,
		Name:            name,
		CloneAddress:    "git@github.com:" + owner + "/" + name + ".git",
		DefaultRemote:   "origin",
		UpdateStrategy:  UpdateHardReset,
		SubmodulePolicy: SubmodulesNone,
		LFSPolicy:       LFSAuto,
		AddedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Managed:         true,
	}
}

func TestReadMissingDocument(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))

	reg, issues, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
	if len(reg.Entries) != 0 || len(reg.Tombstones) != 0 {
		t.Errorf("expected empty registry, got %+v", reg)
	}
	if reg.Version != Version {
		t.Errorf("Version = %d, want %d", reg.Version, Version)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))

	reg := New()
	if err := store.AddEntry(reg, testEntry("widgets")); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := store.AddEntry(reg, testEntry("gadgets")); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	store.AddTombstone(reg, "github.com:acme/retired")

	if err := store.Write(reg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, issues, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("round trip produced issues: %v", issues)
	}
	if !reflect.DeepEqual(got, reg) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, reg)
	}
}

func TestReadNormalizesUnknownAndInvalidFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)

	doc := `{
		"version": 1,
		"future_field": true,
		"entries": [{
			"id": "github.com:acme/widgets",
			"host": "github.com",
			"owner": "acme",
			"name": "widgets",
			"clone_address": "git@github.com:acme/widgets.git",
			"update_strategy": "rebase-cascade",
			"lfs_policy": "sometimes",
			"shiny_new_flag": 7,
			"managed": true
		}],
		"tombstones": ["github.com:acme/old", "github.com:acme/old"]
	}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	reg, issues, err := NewStore(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if len(issues) == 0 {
		t.Fatal("expected issues for unknown and invalid fields")
	}
	entry := reg.FindByID("github.com:acme/widgets")
	if entry == nil {
		t.Fatal("entry missing after normalization")
	}
	if entry.UpdateStrategy != UpdateHardReset {
		t.Errorf("UpdateStrategy = %q, want fallback %q", entry.UpdateStrategy, UpdateHardReset)
	}
	if entry.LFSPolicy != LFSAuto {
		t.Errorf("LFSPolicy = %q, want fallback %q", entry.LFSPolicy, LFSAuto)
	}
	if len(reg.Tombstones) != 1 {
		t.Errorf("tombstones not deduplicated: %v", reg.Tombstones)
	}
}

func TestReadCorruptDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{{{{"},
		{name: "entry missing clone address", doc: `{"version":1,"entries":[{"id":"a","host":"h","owner":"o","name":"n"}]}`},
		{name: "entry not an object", doc: `{"version":1,"entries":[42]}`},
		{name: "entries not a list", doc: `{"version":1,"entries":{"a":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), Filename)
			if err := os.WriteFile(path, []byte(tt.doc), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := NewStore(path).Read(); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Read = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	reg := New()
	reg.Entries = append(reg.Entries, Entry{
		ID: "github.com:acme/widgets", Host: "github.com", Owner: "acme",
		Name: "widgets", CloneAddress: "git@github.com:acme/widgets.git",
		UpdateStrategy: "bogus",
	})
	reg.Tombstones = []string{"github.com:acme/widgets", "z", "a", "a"}

	first := Normalize(reg)
	if len(first) == 0 {
		t.Fatal("expected issues on first normalization")
	}

	snapshot := *reg
	snapshotEntries := append([]Entry(nil), reg.Entries...)
	snapshotTombs := append([]string(nil), reg.Tombstones...)

	second := Normalize(reg)
	if len(second) != 0 {
		t.Errorf("second normalization produced issues: %v", second)
	}
	if !reflect.DeepEqual(reg.Entries, snapshotEntries) || !reflect.DeepEqual(reg.Tombstones, snapshotTombs) {
		t.Errorf("second normalization changed the registry: %+v vs %+v", reg, snapshot)
	}
}

func TestEntryLocalPath(t *testing.T) {
	e := testEntry("widgets")
	want := filepath.Join("/srv", "src", "acme", "widgets")
	if got := e.LocalPath(filepath.Join("/srv", "src")); got != want {
		t.Errorf("LocalPath = %q, want %q", got, want)
	}
}

func TestTombstoneNeverShadowsActiveEntry(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))
	reg := New()

	entry := testEntry("widgets")
	if err := store.AddEntry(reg, entry); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	store.AddTombstone(reg, entry.ID)

	if reg.HasTombstone(entry.ID) {
		t.Error("tombstone for an active entry survived normalization")
	}

	// Removing the entry and then tombstoning must work.
	if err := store.RemoveEntry(reg, entry.ID); err != nil {
		t.Fatalf("RemoveEntry failed: %v", err)
	}
	store.AddTombstone(reg, entry.ID)
	if !reg.HasTombstone(entry.ID) {
		t.Error("tombstone for a removed entry not recorded")
	}
}

func TestAddEntryDuplicate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))
	reg := New()

	if err := store.AddEntry(reg, testEntry("widgets")); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := store.AddEntry(reg, testEntry("widgets")); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("AddEntry = %v, want ErrDuplicateID", err)
	}
}

func TestUpdateAndRemoveNotFound(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))
	reg := New()

	if err := store.UpdateEntry(reg, testEntry("ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateEntry = %v, want ErrNotFound", err)
	}
	if err := store.RemoveEntry(reg, "github.com:acme/ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveEntry = %v, want ErrNotFound", err)
	}
}

func TestTombstoneOperationsIdempotent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), Filename))
	reg := New()

	store.AddTombstone(reg, "github.com:acme/old")
	store.AddTombstone(reg, "github.com:acme/old")
	if len(reg.Tombstones) != 1 {
		t.Errorf("AddTombstone not idempotent: %v", reg.Tombstones)
	}

	store.RemoveTombstone(reg, "github.com:acme/old")
	store.RemoveTombstone(reg, "github.com:acme/old")
	if len(reg.Tombstones) != 0 {
		t.Errorf("RemoveTombstone not idempotent: %v", reg.Tombstones)
	}
}

// A reader that races a write must see either the old or the new document,
// never a truncated one. The atomic rename guarantees the file is always
// complete; this test just confirms the final state parses.
func TestWriteReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename)
	store := NewStore(path)

	reg := New()
	if err := store.AddEntry(reg, testEntry("widgets")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(reg); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	if err := store.AddEntry(reg, testEntry("gadgets")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write(reg); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	// No temp files may be left behind.
	matches, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}

	got, _, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got.Entries))
	}
}
