package types

// CommonConf contains settings shared by both halves of the pipeline.
type CommonConf struct {
	// DataDir is where candidate/relay lists, page archives and the final
	// snapshot are written.
	DataDir string `ini:"data_dir"`
}

// PoolConf configures relay discovery and validation.
type PoolConf struct {
	// MaxCandidates bounds how many normalized candidates are handed to the
	// validation pool.
	MaxCandidates int `ini:"max_candidates"`
	// Concurrency is the validation worker count. It is clamped to the
	// candidate count at run time.
	Concurrency int `ini:"concurrency"`
	// CheckTimeoutSeconds is the wall-clock budget for a single tunneled
	// echo request.
	CheckTimeoutSeconds int `ini:"check_timeout_seconds"`
	// EchoURL is the IP-echo endpoint used to confirm a candidate proxies
	// traffic. Expected response: {"ip": "<addr>"}.
	EchoURL string `ini:"echo_url"`
}

// CrawlConf configures the paginated server-list crawl.
type CrawlConf struct {
	APIBaseURL string `ini:"api_base_url"`
	// PlaceID identifies the game whose public servers are crawled.
	PlaceID   int64 `ini:"place_id"`
	PageLimit int   `ini:"page_limit"`
	MaxPages  int   `ini:"max_pages"`
	// RetryBudget is the number of consecutive failures tolerated for one
	// page before the run aborts.
	RetryBudget      int `ini:"retry_budget"`
	PolitenessMillis int `ini:"politeness_ms"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config is the unified configuration structure mapped from relaycrawl.ini.
type Config struct {
	CommonConf `ini:"common"`
	PoolConf   `ini:"pool"`
	CrawlConf  `ini:"crawl"`
	LogConf    `ini:"log"`
}
