package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIniMissingFileKeepsDefaults(t *testing.T) {
	cfg := Defaults()
	if err := LoadIni(cfg, filepath.Join(t.TempDir(), "nope.ini")); err != nil {
		t.Fatalf("LoadIni() returned an error for a missing file: %v", err)
	}

	if cfg.PoolConf.MaxCandidates != 750 {
		t.Errorf("MaxCandidates = %d, want default 750", cfg.PoolConf.MaxCandidates)
	}
	if cfg.PoolConf.Concurrency != 12 {
		t.Errorf("Concurrency = %d, want default 12", cfg.PoolConf.Concurrency)
	}
	if cfg.CrawlConf.RetryBudget != 6 {
		t.Errorf("RetryBudget = %d, want default 6", cfg.CrawlConf.RetryBudget)
	}
	if cfg.CrawlConf.PolitenessMillis != 500 {
		t.Errorf("PolitenessMillis = %d, want default 500", cfg.CrawlConf.PolitenessMillis)
	}
}

func TestLoadIniOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relaycrawl.ini")
	ini := "[crawl]\nplace_id = 123\nmax_pages = 7\n\n[pool]\nconcurrency = 3\n"
	if err := os.WriteFile(path, []byte(ini), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := LoadIni(cfg, path); err != nil {
		t.Fatalf("LoadIni() returned an error: %v", err)
	}

	if cfg.CrawlConf.PlaceID != 123 {
		t.Errorf("PlaceID = %d, want 123", cfg.CrawlConf.PlaceID)
	}
	if cfg.CrawlConf.MaxPages != 7 {
		t.Errorf("MaxPages = %d, want 7", cfg.CrawlConf.MaxPages)
	}
	if cfg.PoolConf.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", cfg.PoolConf.Concurrency)
	}
	// Untouched sections keep their defaults.
	if cfg.PoolConf.MaxCandidates != 750 {
		t.Errorf("MaxCandidates = %d, want default 750", cfg.PoolConf.MaxCandidates)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CRAWL_PLACE_ID", "987")
	t.Setenv("CRAWL_MAX_PAGES", "4")
	t.Setenv("CRAWL_PAGE_LIMIT", "25")

	cfg := Defaults()
	if err := LoadIni(cfg, filepath.Join(t.TempDir(), "nope.ini")); err != nil {
		t.Fatalf("LoadIni() returned an error: %v", err)
	}

	if cfg.CrawlConf.PlaceID != 987 {
		t.Errorf("PlaceID = %d, want env override 987", cfg.CrawlConf.PlaceID)
	}
	if cfg.CrawlConf.MaxPages != 4 {
		t.Errorf("MaxPages = %d, want env override 4", cfg.CrawlConf.MaxPages)
	}
	if cfg.CrawlConf.PageLimit != 25 {
		t.Errorf("PageLimit = %d, want env override 25", cfg.CrawlConf.PageLimit)
	}
}
