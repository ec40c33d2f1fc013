package crawler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSnapshotIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() returned an error: %v", err)
	}

	snap := &Snapshot{
		FetchedAt: 1767225600,
		PlaceID:   42,
		Servers: []Record{
			{ID: "a", Playing: 1, MaxPlayers: 10},
		},
	}

	written, err := w.WriteSnapshot(snap)
	if err != nil {
		t.Fatalf("first WriteSnapshot() returned an error: %v", err)
	}
	if !written {
		t.Fatal("first WriteSnapshot() reported no-op, want a write")
	}

	written, err = w.WriteSnapshot(snap)
	if err != nil {
		t.Fatalf("second WriteSnapshot() returned an error: %v", err)
	}
	if written {
		t.Error("second WriteSnapshot() wrote again, want a no-op")
	}

	// Changed content writes again.
	snap.Servers[0].Playing = 2
	written, err = w.WriteSnapshot(snap)
	if err != nil {
		t.Fatalf("third WriteSnapshot() returned an error: %v", err)
	}
	if !written {
		t.Error("changed snapshot reported no-op, want a write")
	}
}

func TestArchivePageNamesByNumber(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() returned an error: %v", err)
	}

	body := []byte(`{"data":[],"nextPageCursor":null}`)
	if err := w.ArchivePage(3, body); err != nil {
		t.Fatalf("ArchivePage() returned an error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "pages", "page_3.json"))
	if err != nil {
		t.Fatalf("reading archived page: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("archived page = %q, want %q", got, body)
	}
}

func TestNewSnapshotNeverNilServers(t *testing.T) {
	snap := NewSnapshot(42, nil)
	if snap.Servers == nil {
		t.Error("NewSnapshot(nil) left Servers nil; it must serialize as an empty array")
	}
	if snap.FetchedAt == 0 {
		t.Error("NewSnapshot did not stamp FetchedAt")
	}
}
