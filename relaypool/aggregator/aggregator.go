package aggregator

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"relaycrawl/internal/shared/logger"
	"relaycrawl/relaypool/model"
)

// DefaultMaxCandidates bounds the number of candidates handed downstream so
// validation cost stays predictable.
const DefaultMaxCandidates = 750

// Aggregator fetches every configured source concurrently and merges the
// normalized results into one deduplicated candidate list.
type Aggregator struct {
	sources       []Source
	maxCandidates int
}

// New creates an Aggregator. maxCandidates <= 0 selects the default cap.
func New(sources []Source, maxCandidates int) *Aggregator {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Aggregator{
		sources:       sources,
		maxCandidates: maxCandidates,
	}
}

// Collect fetches all sources, normalizes and deduplicates their lines, and
// returns the candidates sorted lexicographically and truncated to the cap.
// Sorting before truncation keeps the output deterministic across runs. A
// failing source contributes nothing; it never fails the aggregation.
func (a *Aggregator) Collect(ctx context.Context) []string {
	l := logger.WithComponent("RelayPool/Aggregator")
	l.Info().Int("sources", len(a.sources)).Msg("Starting candidate aggregation...")

	seen := make(map[string]struct{})
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		src := src
		g.Go(func() error {
			lines, err := src.Fetch(ctx)
			if err != nil {
				l.Warn().Err(err).Str("source", src.Name()).Msg("Source fetch failed, contributing nothing.")
				return nil
			}

			added := 0
			mu.Lock()
			for _, line := range lines {
				candidate, ok := model.Normalize(line)
				if !ok {
					continue
				}
				if _, dup := seen[candidate]; dup {
					continue
				}
				seen[candidate] = struct{}{}
				added++
			}
			mu.Unlock()

			l.Info().Str("source", src.Name()).Int("lines", len(lines)).Int("new", added).Msg("Source fetched.")
			return nil
		})
	}
	// Source errors are swallowed above; the group only joins the fan-out.
	_ = g.Wait()

	candidates := make([]string, 0, len(seen))
	for c := range seen {
		candidates = append(candidates, c)
	}
	sort.Strings(candidates)

	if len(candidates) > a.maxCandidates {
		l.Info().Int("total", len(candidates)).Int("cap", a.maxCandidates).Msg("Truncating candidate list to cap.")
		candidates = candidates[:a.maxCandidates]
	}

	l.Info().Int("count", len(candidates)).Msg("Candidate aggregation finished.")
	return candidates
}
