package storage

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"relaycrawl/internal/shared/logger"
	"relaycrawl/relaypool/model"
)

const (
	candidatesFile = "candidates.txt"
	relaysFile     = "relays.txt"
)

// FileStorage persists the discovered candidate list and the confirmed
// relay list as plain text, one endpoint per line.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

// NewFileStorage creates a FileStorage rooted at dir. The directory is
// created if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

// SaveCandidates writes the full candidate list, one per line.
func (fs *FileStorage) SaveCandidates(candidates []string) error {
	return fs.saveLines(candidatesFile, candidates)
}

// SaveRelays writes the confirmed relay endpoints, one per line.
func (fs *FileStorage) SaveRelays(relays []model.Relay) error {
	lines := make([]string, 0, len(relays))
	for _, r := range relays {
		lines = append(lines, r.URL)
	}
	return fs.saveLines(relaysFile, lines)
}

// LoadRelays reads previously confirmed relay endpoints. A missing file
// yields an empty list, so a crawl-only run degrades to zero relays.
func (fs *FileStorage) LoadRelays() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l := logger.WithComponent("RelayPool/Storage")

	file, err := os.Open(filepath.Join(fs.dir, relaysFile))
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("dir", fs.dir).Msg("Relay list not found, starting with an empty set.")
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var relays []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		relays = append(relays, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(relays)).Msg("Loaded relay list from file.")
	return relays, nil
}

func (fs *FileStorage) saveLines(name string, lines []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l := logger.WithComponent("RelayPool/Storage")

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	path := filepath.Join(fs.dir, name)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return err
	}

	l.Info().Int("count", len(lines)).Str("path", path).Msg("List saved.")
	return nil
}
