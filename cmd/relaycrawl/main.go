package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"relaycrawl/crawler"
	"relaycrawl/internal/shared/config"
	"relaycrawl/internal/shared/logger"
	"relaycrawl/internal/shared/types"
	"relaycrawl/relaypool/aggregator"
	"relaycrawl/relaypool/storage"
	"relaycrawl/relaypool/validator"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	discoverOnly := flag.Bool("discover-only", false, "Harvest and validate relays, skip the crawl")
	crawlOnly := flag.Bool("crawl-only", false, "Skip discovery, crawl with previously confirmed relays")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "relaycrawl.ini")

	cfg := config.Defaults()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to prepare data directory.")
	}

	var relays []string
	if *crawlOnly {
		relays, err = store.LoadRelays()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load confirmed relays.")
		}
	} else {
		relays = discover(ctx, cfg, store)
	}

	if *discoverOnly {
		logger.Info().Int("relays", len(relays)).Msg("Discovery finished.")
		return
	}

	writer, err := crawler.NewWriter(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to prepare snapshot directory.")
	}

	c := crawler.New(cfg.APIBaseURL, cfg.PlaceID, relays, writer)
	c.PageLimit = cfg.PageLimit
	c.MaxPages = cfg.MaxPages
	c.RetryBudget = cfg.RetryBudget
	c.Politeness = time.Duration(cfg.PolitenessMillis) * time.Millisecond

	records, err := c.Run(ctx)
	if err != nil {
		// The crawl is the only phase allowed to fail the whole run: an
		// incomplete crawl means semantically incomplete output.
		logger.Fatal().Err(err).Msg("Crawl failed.")
	}

	snapshot := crawler.NewSnapshot(cfg.PlaceID, records)
	written, err := writer.WriteSnapshot(snapshot)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to persist snapshot.")
	}
	logger.Info().Int("records", len(records)).Bool("written", written).Msg("Run finished.")
}

// discover runs the harvesting half: aggregate candidates, validate them,
// and persist both artifacts. Failures here degrade instead of aborting.
func discover(ctx context.Context, cfg *types.Config, store *storage.FileStorage) []string {
	agg := aggregator.New(aggregator.DefaultSources(), cfg.MaxCandidates)
	candidates := agg.Collect(ctx)
	if err := store.SaveCandidates(candidates); err != nil {
		logger.Error().Err(err).Msg("Failed to persist candidate list.")
	}

	v := validator.New(cfg.EchoURL, time.Duration(cfg.CheckTimeoutSeconds)*time.Second, cfg.Concurrency)
	confirmed := v.Validate(ctx, candidates)
	if err := store.SaveRelays(confirmed); err != nil {
		logger.Error().Err(err).Msg("Failed to persist relay list.")
	}

	relays := make([]string, 0, len(confirmed))
	for _, r := range confirmed {
		relays = append(relays, r.URL)
	}
	return relays
}
