package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"relaycrawl/internal/shared/logger"
)

const (
	snapshotFile = "snapshot.json"
	pagesDir     = "pages"
)

// Snapshot is the final payload of one run. It is built once, after the
// crawl, and never mutated.
type Snapshot struct {
	FetchedAt int64    `json:"fetched_at"`
	PlaceID   int64    `json:"place_id"`
	Servers   []Record `json:"servers"`
}

// NewSnapshot stamps the accumulated records with the current time.
func NewSnapshot(placeID int64, servers []Record) *Snapshot {
	if servers == nil {
		servers = []Record{}
	}
	return &Snapshot{
		FetchedAt: time.Now().Unix(),
		PlaceID:   placeID,
		Servers:   servers,
	}
}

// Writer persists the final snapshot and the raw page artifacts under one
// data directory. It implements Archive.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir, creating the page archive
// directory as needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, pagesDir), 0755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

// ArchivePage stores one raw page payload, named by page number.
func (w *Writer) ArchivePage(page int, body []byte) error {
	path := filepath.Join(w.dir, pagesDir, fmt.Sprintf("page_%d.json", page))
	return os.WriteFile(path, body, 0644)
}

// WriteSnapshot serializes the snapshot canonically and writes it only if
// the bytes differ from what is already on disk. It reports whether a write
// happened; an unchanged snapshot is not an error.
func (w *Writer) WriteSnapshot(s *Snapshot) (bool, error) {
	l := logger.WithComponent("SnapshotWriter")

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(w.dir, snapshotFile)
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		l.Info().Str("path", path).Msg("Snapshot unchanged, skipping write.")
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, err
	}
	l.Info().Str("path", path).Int("servers", len(s.Servers)).Msg("Snapshot written.")
	return true, nil
}
