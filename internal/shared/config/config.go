package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"relaycrawl/internal/shared/types"
)

// Defaults returns a Config populated with the built-in defaults. LoadIni
// starts from these so a missing or partial ini file is never fatal.
func Defaults() *types.Config {
	cfg := new(types.Config)
	cfg.CommonConf.DataDir = "data"

	cfg.PoolConf.MaxCandidates = 750
	cfg.PoolConf.Concurrency = 12
	cfg.PoolConf.CheckTimeoutSeconds = 8
	cfg.PoolConf.EchoURL = "https://api.ipify.org?format=json"

	cfg.CrawlConf.APIBaseURL = "https://games.roblox.com"
	cfg.CrawlConf.PlaceID = 606849621
	cfg.CrawlConf.PageLimit = 100
	cfg.CrawlConf.MaxPages = 50
	cfg.CrawlConf.RetryBudget = 6
	cfg.CrawlConf.PolitenessMillis = 500

	cfg.LogConf.Level = "info"
	return cfg
}

// LoadIni loads the behavior configuration file on top of the defaults and
// then applies environment overrides. A missing file leaves the defaults in
// place.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	} else if err := iniFile.MapTo(cfg); err != nil {
		return err
	}

	overrideFromEnvInt64(&cfg.CrawlConf.PlaceID, "CRAWL_PLACE_ID")
	overrideFromEnvInt(&cfg.CrawlConf.PageLimit, "CRAWL_PAGE_LIMIT")
	overrideFromEnvInt(&cfg.CrawlConf.MaxPages, "CRAWL_MAX_PAGES")
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvInt64(target *int64, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			*target = intValue
		}
	}
}
