package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"sjsage522/pricewatch/pkg/errors"
)

// Fetch modes
const (
	FetchModeChrome = "chrome"
	FetchModeHTTP   = "http"
)

// Config represents the application configuration
type Config struct {
	// Database configuration; empty DSN keeps snapshots in memory
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis configuration; empty address disables snapshot events
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration; empty address disables the rate-limit block
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Marketplace and fetching
	MarketplaceBaseURL string
	FetchMode          string
	ChromeBin          string
	NavigationTimeout  time.Duration
	OfferWaitTimeout   time.Duration

	// Sweep behaviour
	ScrapeDelay    time.Duration
	OfferScanLimit int
	OwnShopAliases []string
	SweepInterval  time.Duration

	// HTTP surface
	HTTPAddr        string
	TopNGrossProfit int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "snapshots"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       getEnvSeconds("RATE_LIMIT_BLOCK_SECONDS", 600),
		MarketplaceBaseURL:   getEnv("MARKETPLACE_BASE_URL", "https://www.idealo.de"),
		FetchMode:            strings.ToLower(getEnv("FETCH_MODE", FetchModeChrome)),
		ChromeBin:            getEnv("CHROME_BIN", ""),
		NavigationTimeout:    getEnvSeconds("NAVIGATION_TIMEOUT_SECONDS", 30),
		OfferWaitTimeout:     getEnvSeconds("OFFER_WAIT_TIMEOUT_SECONDS", 15),
		ScrapeDelay:          getEnvSeconds("SCRAPE_DELAY_SECONDS", 5),
		OfferScanLimit:       getEnvInt("OFFER_SCAN_LIMIT", 20),
		OwnShopAliases:       splitList(getEnv("OWN_SHOP_ALIASES", "health rise,health-rise")),
		SweepInterval:        time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 0)) * time.Minute,
		HTTPAddr:             getEnv("HTTP_ADDR", ":3000"),
		TopNGrossProfit:      getEnvInt("TOP_N_GROSS_PROFIT", 10),
		Environment:          getEnv("PRICEWATCH_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c Config) Validate() error {
	if c.FetchMode != FetchModeChrome && c.FetchMode != FetchModeHTTP {
		return errors.NewValidation("FETCH_MODE", "must be chrome or http, got "+c.FetchMode)
	}
	if u, err := url.Parse(c.MarketplaceBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidation("MARKETPLACE_BASE_URL", "must be an absolute URL")
	}
	if c.ScrapeDelay < 0 {
		return errors.NewValidation("SCRAPE_DELAY_SECONDS", "must not be negative")
	}
	if c.NavigationTimeout <= 0 || c.OfferWaitTimeout <= 0 {
		return errors.NewValidation("NAVIGATION_TIMEOUT_SECONDS", "timeouts must be positive")
	}
	if c.OfferScanLimit < 2 {
		return errors.NewValidation("OFFER_SCAN_LIMIT", "must cover at least the top two ranks")
	}
	if len(c.OwnShopAliases) == 0 {
		return errors.NewValidation("OWN_SHOP_ALIASES", "at least one alias is required")
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewValidation("REDIS_STREAM_COUNT", "must be at least 1")
	}
	if c.SweepInterval < 0 {
		return errors.NewValidation("SWEEP_INTERVAL_MINUTES", "must not be negative")
	}
	if c.TopNGrossProfit < 1 {
		return errors.NewValidation("TOP_N_GROSS_PROFIT", "must be at least 1")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * time.Second
}

func splitList(raw string) []string {
	parts := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	return lo.Uniq(lo.Compact(parts))
}
