package crawler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// bodyPreviewLimit caps how much of an upstream response body is carried in
// error diagnostics.
const bodyPreviewLimit = 200

// PageError is a recoverable page-fetch failure: a transport error or a
// non-success status from the upstream API. It is retried with backoff.
type PageError struct {
	Status int
	Body   string
	Err    error
}

func (e *PageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("page fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("page fetch returned status %d: %s", e.Status, e.Body)
}

func (e *PageError) Unwrap() error { return e.Err }

// FatalCrawlError terminates the run: the retry budget for a single page
// was exhausted, or a success response could not be parsed.
type FatalCrawlError struct {
	Page  int
	Tries int
	Last  error
}

func (e *FatalCrawlError) Error() string {
	return fmt.Sprintf("crawl aborted on page %d after %d tries: %v", e.Page, e.Tries, e.Last)
}

func (e *FatalCrawlError) Unwrap() error { return e.Last }

// previewBody truncates a response body for diagnostics, keeping the cut on
// a rune boundary.
func previewBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= bodyPreviewLimit {
		return s
	}
	s = s[:bodyPreviewLimit]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
