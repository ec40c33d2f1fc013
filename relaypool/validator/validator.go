package validator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"relaycrawl/internal/shared/logger"
	"relaycrawl/internal/tunnel"
	"relaycrawl/relaypool/model"
)

const (
	// DefaultTimeout is the wall-clock budget for one echo request.
	DefaultTimeout = 8 * time.Second
	// DefaultMargin pads the outer context deadline past the client
	// timeout so a hung transport cannot outlive its worker slot.
	DefaultMargin = 2 * time.Second
	// DefaultConcurrency is the worker count when none is configured.
	DefaultConcurrency = 12

	maxEchoBody = 4096
)

// echoResponse is the expected shape of the validation endpoint's reply.
type echoResponse struct {
	IP string `json:"ip"`
}

// Validator tests candidate relays by tunneling a single request through
// each of them to an IP-echo endpoint.
type Validator struct {
	echoURL     string
	timeout     time.Duration
	margin      time.Duration
	concurrency int
}

// New creates a Validator. Zero values select the defaults.
func New(echoURL string, timeout time.Duration, concurrency int) *Validator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Validator{
		echoURL:     echoURL,
		timeout:     timeout,
		margin:      DefaultMargin,
		concurrency: concurrency,
	}
}

// Validate tests every candidate exactly once with a bounded number of
// workers and returns the confirmed relays. Workers claim candidates from a
// shared atomic index, so no candidate is tested twice and none are
// skipped. Individual failures are swallowed; they only exclude the
// candidate.
func (v *Validator) Validate(ctx context.Context, candidates []string) []model.Relay {
	l := logger.WithComponent("RelayPool/Validator")
	if len(candidates) == 0 {
		return nil
	}

	workers := v.concurrency
	if workers > len(candidates) {
		workers = len(candidates)
	}
	l.Info().Int("count", len(candidates)).Int("workers", workers).Msg("Starting validation batch...")

	var next int64
	var mu sync.Mutex
	confirmed := make([]model.Relay, 0)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(atomic.AddInt64(&next, 1)) - 1
				if idx >= len(candidates) || ctx.Err() != nil {
					return
				}
				relay, ok := v.check(ctx, candidates[idx])
				if !ok {
					continue
				}
				mu.Lock()
				confirmed = append(confirmed, relay)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	l.Info().Int("tested", len(candidates)).Int("confirmed", len(confirmed)).Msg("Validation batch finished.")
	return confirmed
}

// check performs one tunneled echo request. Success requires a 2xx response
// whose body decodes to a non-empty ip field.
func (v *Validator) check(ctx context.Context, candidate string) (model.Relay, bool) {
	l := logger.WithComponent("RelayPool/Validator")

	client, err := tunnel.NewHTTPClient(candidate, v.timeout)
	if err != nil {
		l.Debug().Err(err).Str("candidate", candidate).Msg("Rejected: unusable relay URL.")
		return model.Relay{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout+v.margin)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.echoURL, nil)
	if err != nil {
		l.Debug().Err(err).Str("candidate", candidate).Msg("Rejected: request construction failed.")
		return model.Relay{}, false
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		l.Debug().Err(err).Str("candidate", candidate).Msg("Rejected: echo request failed.")
		return model.Relay{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.Debug().Int("status", resp.StatusCode).Str("candidate", candidate).Msg("Rejected: non-success echo status.")
		return model.Relay{}, false
	}

	var echo echoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEchoBody)).Decode(&echo); err != nil {
		l.Debug().Err(err).Str("candidate", candidate).Msg("Rejected: malformed echo response.")
		return model.Relay{}, false
	}
	if echo.IP == "" {
		l.Debug().Str("candidate", candidate).Msg("Rejected: empty ip field in echo response.")
		return model.Relay{}, false
	}

	return model.Relay{
		URL:       candidate,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}, true
}
