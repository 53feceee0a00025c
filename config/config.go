// Package config holds runtime configuration for the scraper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher kinds selectable at runtime.
const (
	FetcherBrowser = "browser"
	FetcherStatic  = "static"
)

// Config holds scraper configuration.
type Config struct {
	DBPath  string
	BaseURL string // expected site; navigations landing elsewhere are failures
	Fetcher string // browser or static

	Workers       int
	Delay         time.Duration // pause between work items per worker
	NavTimeout    time.Duration // page navigation budget
	WaitTimeout   time.Duration // wait for the table selector to appear
	MaxRetries    int
	RetryDelay    time.Duration
	RetryDelayMax time.Duration

	ChunkSize int // records per upsert transaction
	MaxPages  int // pagination safety ceiling

	Headless  bool
	UserAgent string

	// Site-specific pagination contract. The next-page control has no stable
	// selector across site revisions, so all three knobs are configuration.
	NoDataSelector  string
	NextSelector    string
	DisabledMarkers []string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the stats site.
func DefaultConfig() *Config {
	return &Config{
		DBPath:          "statscrape.db",
		BaseURL:         "https://www.nba.com/stats/teams/",
		Fetcher:         FetcherBrowser,
		Workers:         2,
		Delay:           2 * time.Second,
		NavTimeout:      30 * time.Second,
		WaitTimeout:     15 * time.Second,
		MaxRetries:      3,
		RetryDelay:      2 * time.Second,
		RetryDelayMax:   16 * time.Second,
		ChunkSize:       100,
		MaxPages:        1000,
		Headless:        true,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		NoDataSelector:  ".NoDataMessage_base__xUA61",
		NextSelector:    "button[aria-label='Next Page']",
		DisabledMarkers: []string{"disabled", "inactive"},
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Load builds a Config from defaults, an optional config file, and
// STATSCRAPE_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()

	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("fetcher", cfg.Fetcher)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("delay", cfg.Delay)
	v.SetDefault("nav_timeout", cfg.NavTimeout)
	v.SetDefault("wait_timeout", cfg.WaitTimeout)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("retry_delay", cfg.RetryDelay)
	v.SetDefault("retry_delay_max", cfg.RetryDelayMax)
	v.SetDefault("chunk_size", cfg.ChunkSize)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("headless", cfg.Headless)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("no_data_selector", cfg.NoDataSelector)
	v.SetDefault("next_selector", cfg.NextSelector)
	v.SetDefault("disabled_markers", cfg.DisabledMarkers)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("verbose", cfg.Verbose)

	v.SetEnvPrefix("STATSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.DBPath = v.GetString("db_path")
	cfg.BaseURL = v.GetString("base_url")
	cfg.Fetcher = strings.ToLower(v.GetString("fetcher"))
	cfg.Workers = v.GetInt("workers")
	cfg.Delay = v.GetDuration("delay")
	cfg.NavTimeout = v.GetDuration("nav_timeout")
	cfg.WaitTimeout = v.GetDuration("wait_timeout")
	cfg.MaxRetries = v.GetInt("max_retries")
	cfg.RetryDelay = v.GetDuration("retry_delay")
	cfg.RetryDelayMax = v.GetDuration("retry_delay_max")
	cfg.ChunkSize = v.GetInt("chunk_size")
	cfg.MaxPages = v.GetInt("max_pages")
	cfg.Headless = v.GetBool("headless")
	cfg.UserAgent = v.GetString("user_agent")
	cfg.NoDataSelector = v.GetString("no_data_selector")
	cfg.NextSelector = v.GetString("next_selector")
	cfg.DisabledMarkers = v.GetStringSlice("disabled_markers")
	cfg.MetricsAddr = v.GetString("metrics_addr")
	cfg.Verbose = v.GetBool("verbose")

	return cfg, nil
}

// Host returns the host of the configured base URL.
func (c *Config) Host() string {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.Fetcher != FetcherBrowser && c.Fetcher != FetcherStatic {
		return fmt.Errorf("fetcher must be %s or %s", FetcherBrowser, FetcherStatic)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("nav timeout must be positive")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.RetryDelayMax < 0 {
		return fmt.Errorf("retry delay max cannot be negative")
	}
	if c.RetryDelayMax > 0 && c.RetryDelay > c.RetryDelayMax {
		return fmt.Errorf("retry delay (%s) cannot exceed retry delay max (%s)", c.RetryDelay, c.RetryDelayMax)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.NextSelector == "" {
		return fmt.Errorf("next-page selector cannot be empty")
	}
	return nil
}
