package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"relaycrawl/internal/shared/logger"
	"relaycrawl/internal/tunnel"
)

// Crawl defaults. All of them can be overridden on the Crawler before Run.
const (
	DefaultPageLimit    = 100
	DefaultMaxPages     = 50
	DefaultRetryBudget  = 6
	DefaultPoliteness   = 500 * time.Millisecond
	DefaultFetchTimeout = 30 * time.Second

	// Backoff base delays per failure class, scaled by the consecutive
	// failure count.
	DefaultRateLimitDelay = 60 * time.Second
	DefaultGenericDelay   = 10 * time.Second

	maxPageBody = 4 * 1024 * 1024

	// Every third page is tunneled through a confirmed relay.
	tunnelCadence = 3
)

// State is the crawler's position in its page loop.
type State int

const (
	StateFetching State = iota
	StateRetrying
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Record is one joinable server taken from a page. Wire names follow the
// upstream API.
type Record struct {
	ID         string  `json:"id"`
	Playing    int     `json:"playing"`
	MaxPlayers int     `json:"maxPlayers"`
	Created    *string `json:"created"`
}

// serverPage is the upstream API's page shape. The cursor is opaque; only
// its presence matters.
type serverPage struct {
	Data           []Record `json:"data"`
	NextPageCursor *string  `json:"nextPageCursor"`
}

// Archive persists raw page payloads, keyed by 1-indexed page number.
type Archive interface {
	ArchivePage(page int, body []byte) error
}

// Crawler walks the public-server list of one place, page by page,
// tunneling every third page through a confirmed relay.
type Crawler struct {
	PageLimit      int
	MaxPages       int
	RetryBudget    int
	Politeness     time.Duration
	FetchTimeout   time.Duration
	RateLimitDelay time.Duration
	GenericDelay   time.Duration

	baseURL string
	placeID int64
	relays  []string
	archive Archive
	runID   string

	direct       *http.Client
	relayClients map[int]*http.Client
}

// New creates a Crawler with default tuning. The relay slice is read-only
// from the crawler's perspective; passing an empty slice degrades every
// page to a direct fetch.
func New(baseURL string, placeID int64, relays []string, archive Archive) *Crawler {
	return &Crawler{
		PageLimit:      DefaultPageLimit,
		MaxPages:       DefaultMaxPages,
		RetryBudget:    DefaultRetryBudget,
		Politeness:     DefaultPoliteness,
		FetchTimeout:   DefaultFetchTimeout,
		RateLimitDelay: DefaultRateLimitDelay,
		GenericDelay:   DefaultGenericDelay,

		baseURL:      strings.TrimRight(baseURL, "/"),
		placeID:      placeID,
		relays:       relays,
		archive:      archive,
		runID:        uuid.NewString(),
		direct:       tunnel.NewDirectClient(DefaultFetchTimeout),
		relayClients: make(map[int]*http.Client),
	}
}

// Run executes the page loop until completion, abort, or context
// cancellation. It returns the accumulated records; the error is nil only
// when the crawl completed.
func (c *Crawler) Run(ctx context.Context) ([]Record, error) {
	l := logger.WithComponent("Crawler").With().Str("run_id", c.runID).Int64("place_id", c.placeID).Logger()
	l.Info().Int("max_pages", c.MaxPages).Int("page_limit", c.PageLimit).Int("relays", len(c.relays)).Msg("Starting crawl...")

	state := StateFetching
	cursor := ""
	pageCount := 0
	tries := 0
	var records []Record
	var lastErr error

	for state == StateFetching {
		if err := ctx.Err(); err != nil {
			state = StateAborted
			lastErr = err
			break
		}

		page := pageCount + 1
		client, relayIdx := c.clientForPage(pageCount, &l)

		p, raw, err := c.fetchPage(ctx, client, cursor)
		if err != nil {
			var pe *PageError
			if !errors.As(err, &pe) {
				// Unparseable success body or broken request: fatal.
				state = StateAborted
				lastErr = &FatalCrawlError{Page: page, Tries: tries, Last: err}
				break
			}

			tries++
			if tries > c.RetryBudget {
				state = StateAborted
				lastErr = &FatalCrawlError{Page: page, Tries: tries, Last: pe}
				break
			}

			state = StateRetrying
			delay := c.backoffDelay(pe.Status, tries)
			l.Warn().Int("page", page).Int("tries", tries).Int("status", pe.Status).Dur("delay", delay).Err(pe).Msg("Page fetch failed, backing off.")
			if err := sleep(ctx, delay); err != nil {
				state = StateAborted
				lastErr = err
				break
			}
			// Same cursor, new attempt.
			state = StateFetching
			continue
		}

		tries = 0
		pageCount++

		if c.archive != nil {
			if err := c.archive.ArchivePage(pageCount, raw); err != nil {
				l.Warn().Err(err).Int("page", pageCount).Msg("Failed to archive raw page.")
			}
		}

		kept := 0
		for _, rec := range p.Data {
			if rec.Playing < rec.MaxPlayers {
				records = append(records, rec)
				kept++
			}
		}
		l.Info().Int("page", pageCount).Int("items", len(p.Data)).Int("kept", kept).Int("relay", relayIdx).Msg("Page fetched.")

		if pageCount >= c.MaxPages {
			l.Info().Int("pages", pageCount).Msg("Reached page limit.")
			state = StateCompleted
			break
		}
		if p.NextPageCursor == nil || *p.NextPageCursor == "" {
			l.Info().Int("pages", pageCount).Msg("No further cursor, pagination exhausted.")
			state = StateCompleted
			break
		}
		cursor = *p.NextPageCursor

		if err := sleep(ctx, c.Politeness); err != nil {
			state = StateAborted
			lastErr = err
			break
		}
	}

	if state == StateCompleted {
		l.Info().Int("records", len(records)).Msg("Crawl completed.")
		return records, nil
	}
	l.Error().Err(lastErr).Str("state", state.String()).Msg("Crawl did not complete.")
	return records, lastErr
}

// clientForPage decides whether the page about to be fetched is tunneled
// and returns the client to use. The relay index advances with completed
// page count, so a page that fails keeps the same relay for every retry.
// Returns -1 as the index for direct pages.
func (c *Crawler) clientForPage(pageCount int, l *zerolog.Logger) (*http.Client, int) {
	if len(c.relays) == 0 || (pageCount+1)%tunnelCadence != 0 {
		return c.direct, -1
	}

	idx := (pageCount / tunnelCadence) % len(c.relays)
	if client, ok := c.relayClients[idx]; ok {
		return client, idx
	}

	client, err := tunnel.NewHTTPClient(c.relays[idx], c.FetchTimeout)
	if err != nil {
		l.Warn().Err(err).Str("relay", c.relays[idx]).Msg("Unusable relay, fetching page directly.")
		return c.direct, -1
	}
	c.relayClients[idx] = client
	return client, idx
}

// fetchPage performs one page request. Transport errors and non-success
// statuses come back as *PageError; a success body that does not parse is
// returned as a plain (fatal) error.
func (c *Crawler) fetchPage(ctx context.Context, client *http.Client, cursor string) (*serverPage, []byte, error) {
	endpoint := fmt.Sprintf("%s/v1/games/%d/servers/Public?sortOrder=Asc&limit=%d", c.baseURL, c.placeID, c.PageLimit)
	if cursor != "" {
		endpoint += "&cursor=" + url.QueryEscape(cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build page request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, &PageError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return nil, nil, &PageError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &PageError{Status: resp.StatusCode, Body: previewBody(body)}
	}

	var page serverPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil, fmt.Errorf("unparseable page response: %w (body: %s)", err, previewBody(body))
	}
	return &page, body, nil
}

// backoffDelay scales the failure-class base delay by the consecutive
// failure count. Rate-limit responses back off much harder than everything
// else.
func (c *Crawler) backoffDelay(status, tries int) time.Duration {
	base := c.GenericDelay
	if status == http.StatusTooManyRequests {
		base = c.RateLimitDelay
	}
	return base * time.Duration(tries)
}

// sleep pauses without holding anything but a timer, and returns early if
// the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
