package aggregator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"relaycrawl/internal/shared/logger"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Source produces raw candidate lines from one external list. Implementers
// only fetch and extract; normalization and dedup happen in the Aggregator.
type Source interface {
	// Fetch returns the raw lines found at the source. Transport errors and
	// non-2xx responses are returned as errors.
	Fetch(ctx context.Context) ([]string, error)

	// Name returns the source name, for logging.
	Name() string
}

// ListSource fetches a newline-delimited plain-text proxy list.
type ListSource struct {
	name   string
	url    string
	client *http.Client
}

// NewListSource creates a source for a plain-text list URL.
func NewListSource(name, url string) *ListSource {
	return &ListSource{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *ListSource) Name() string { return s.name }

func (s *ListSource) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.name, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain,*/*;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list for %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("received non-success status code (%d) from %s", resp.StatusCode, s.name)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list body for %s: %w", s.name, err)
	}
	return lines, nil
}

// TableSource fetches an HTML page and extracts host:port pairs from the
// first two cells of each row matched by the selector.
type TableSource struct {
	name     string
	url      string
	selector string
	client   *http.Client
}

// NewTableSource creates a source that scrapes an HTML proxy table.
func NewTableSource(name, url, selector string) *TableSource {
	return &TableSource{
		name:     name,
		url:      url,
		selector: selector,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *TableSource) Name() string { return s.name }

func (s *TableSource) Fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.name, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("received non-success status code (%d) from %s", resp.StatusCode, s.name)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.name, err)
	}

	var lines []string
	doc.Find(s.selector).Each(func(_ int, sel *goquery.Selection) {
		host := strings.TrimSpace(sel.Find("td").Eq(0).Text())
		port := strings.TrimSpace(sel.Find("td").Eq(1).Text())
		if host == "" || port == "" {
			return
		}
		lines = append(lines, host+":"+port)
	})
	return lines, nil
}

// scriptProxyEntry is the shape of one element of the JSON array embedded in
// the page script of ScriptSource sites.
type scriptProxyEntry struct {
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// ScriptSource scrapes sites that ship their proxy table as a JSON array
// assigned to a script variable.
type ScriptSource struct {
	name      string
	urls      []string
	varRe     *regexp.Regexp
	collector *colly.Collector
}

// NewScriptSource creates a source for pages embedding the list as
// `var <varName> = [...];`.
func NewScriptSource(name, varName string, urls ...string) *ScriptSource {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
	)
	c.SetRequestTimeout(20 * time.Second)

	return &ScriptSource{
		name:      name,
		urls:      urls,
		varRe:     regexp.MustCompile(`(var|let|const)\s+` + regexp.QuoteMeta(varName) + `\s*=\s*(\[.*?\]);`),
		collector: c,
	}
}

func (s *ScriptSource) Name() string { return s.name }

func (s *ScriptSource) Fetch(ctx context.Context) ([]string, error) {
	l := logger.WithComponent("RelayPool/Aggregator")

	var lines []string
	var fetchErr error
	var mu sync.Mutex

	s.collector.OnResponse(func(r *colly.Response) {
		matches := s.varRe.FindSubmatch(r.Body)
		if len(matches) < 3 {
			l.Warn().Str("url", r.Request.URL.String()).Str("source", s.name).Msg("Proxy list variable not found in response body.")
			return
		}

		var entries []*scriptProxyEntry
		if err := json.Unmarshal(matches[2], &entries); err != nil {
			mu.Lock()
			fetchErr = fmt.Errorf("failed to unmarshal proxy list for %s: %w", s.name, err)
			mu.Unlock()
			return
		}

		mu.Lock()
		defer mu.Unlock()
		for _, e := range entries {
			ip := strings.TrimSpace(e.IP)
			port := strings.TrimSpace(e.Port)
			if ip == "" || port == "" {
				continue
			}
			lines = append(lines, ip+":"+port)
		}
	})
	s.collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		fetchErr = fmt.Errorf("scrape request failed for %s (status %d): %w", s.name, r.StatusCode, err)
		mu.Unlock()
	})

	for _, url := range s.urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.collector.Visit(url)
	}
	s.collector.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	return lines, nil
}

// DefaultSources returns the built-in public list sources.
func DefaultSources() []Source {
	return []Source{
		NewListSource("thespeedx-http", "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt"),
		NewListSource("thespeedx-socks5", "https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt"),
		NewListSource("monosans-http", "https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/http.txt"),
		NewListSource("clarketm-raw", "https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt"),
		NewListSource("jetkai-http", "https://raw.githubusercontent.com/jetkai/proxy-list/main/online-proxies/txt/proxies-http.txt"),
		NewListSource("proxyscrape-http", "https://api.proxyscrape.com/v2/?request=getproxies&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all"),
		NewListSource("proxy-list-download-api", "https://www.proxy-list.download/api/v1/get?type=http"),
		NewTableSource("proxy-list-download", "https://www.proxy-list.download/HTTP", "table#example1 tbody#tabli tr"),
		NewScriptSource("kuaidaili", "fpsList", "https://www.kuaidaili.com/free/inha/1/", "https://www.kuaidaili.com/free/inha/2/"),
	}
}
