package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"relaycrawl/relaypool/model"
)

func TestSaveCandidatesWritesOnePerLine(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage() returned an error: %v", err)
	}

	candidates := []string{"http://1.1.1.1:80", "socks5://2.2.2.2:1080"}
	if err := fs.SaveCandidates(candidates); err != nil {
		t.Fatalf("SaveCandidates() returned an error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "candidates.txt"))
	if err != nil {
		t.Fatalf("reading candidates file: %v", err)
	}
	want := "http://1.1.1.1:80\nsocks5://2.2.2.2:1080\n"
	if string(got) != want {
		t.Errorf("candidates file = %q, want %q", got, want)
	}
}

func TestSaveAndLoadRelays(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage() returned an error: %v", err)
	}

	relays := []model.Relay{
		{URL: "http://1.1.1.1:80", Latency: 120 * time.Millisecond, CheckedAt: time.Now()},
		{URL: "socks5://2.2.2.2:1080", Latency: 300 * time.Millisecond, CheckedAt: time.Now()},
	}
	if err := fs.SaveRelays(relays); err != nil {
		t.Fatalf("SaveRelays() returned an error: %v", err)
	}

	got, err := fs.LoadRelays()
	if err != nil {
		t.Fatalf("LoadRelays() returned an error: %v", err)
	}
	want := []string{"http://1.1.1.1:80", "socks5://2.2.2.2:1080"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadRelays() = %v, want %v", got, want)
	}
}

func TestLoadRelaysMissingFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() returned an error: %v", err)
	}

	got, err := fs.LoadRelays()
	if err != nil {
		t.Fatalf("LoadRelays() returned an error: %v", err)
	}
	if got != nil {
		t.Errorf("LoadRelays() = %v, want nil for a missing file", got)
	}
}
