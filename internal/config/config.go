package config

import (
	"fmt"
	"time"
)

type Config struct {
	Directory     DirectoryConfig     `yaml:"directory"`
	Browser       BrowserConfig       `yaml:"browser"`
	Retry         RetryConfig         `yaml:"retry"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Scrape        ScrapeConfig        `yaml:"scrape"`
	Output        OutputConfig        `yaml:"output"`
	SelectorsFile string              `yaml:"selectors_file"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type DirectoryConfig struct {
	ListingURL string `yaml:"listing_url"`
	BaseURL    string `yaml:"base_url"`
}

type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	ChromePath     string `yaml:"chrome_path"`
	UserAgent      string `yaml:"user_agent"`
	PageTimeoutMS  int    `yaml:"page_timeout_ms"`
	StableWaitMS   int    `yaml:"stable_wait_ms"`
	LazyScrollMS   int    `yaml:"lazy_scroll_ms"`
	LoginTimeoutMS int    `yaml:"login_timeout_ms"`
}

type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffMS     int `yaml:"backoff_ms"`
	LoginAttempts int `yaml:"login_attempts"`
}

type CredentialsConfig struct {
	IdentityEnv string `yaml:"identity_env"`
	SecretEnv   string `yaml:"secret_env"`
	File        string `yaml:"file"`
}

type ScrapeConfig struct {
	MaxConcurrency  int    `yaml:"max_concurrency"`
	Staleness       string `yaml:"staleness"` // "always" or "missing"
	ForceFullRescan bool   `yaml:"force_full_rescan"`
	DownloadImages  bool   `yaml:"download_images"`
	RunTimeoutS     int    `yaml:"run_timeout_s"`
}

type OutputConfig struct {
	ArtifactsDir string `yaml:"artifacts_dir"`
	ImagesDir    string `yaml:"images_dir"`
	LedgerPath   string `yaml:"ledger_path"`
}

type ObservabilityConfig struct {
	LogPath    string `yaml:"log_path"`
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Validation
func (c *Config) Validate() error {
	if c.Directory.ListingURL == "" {
		return fmt.Errorf("directory.listing_url is required")
	}
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory.base_url is required")
	}
	if c.Browser.PageTimeoutMS <= 0 {
		return fmt.Errorf("browser.page_timeout_ms must be > 0")
	}
	if c.Browser.StableWaitMS <= 0 {
		return fmt.Errorf("browser.stable_wait_ms must be > 0")
	}
	if c.Browser.LoginTimeoutMS <= 0 {
		return fmt.Errorf("browser.login_timeout_ms must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BackoffMS <= 0 {
		return fmt.Errorf("retry.backoff_ms must be > 0")
	}
	if c.Retry.LoginAttempts <= 0 {
		return fmt.Errorf("retry.login_attempts must be > 0")
	}
	if c.Credentials.IdentityEnv == "" || c.Credentials.SecretEnv == "" {
		return fmt.Errorf("credentials.identity_env and credentials.secret_env are required")
	}
	if c.Credentials.File == "" {
		return fmt.Errorf("credentials.file is required")
	}
	if c.Scrape.MaxConcurrency <= 0 {
		return fmt.Errorf("scrape.max_concurrency must be > 0")
	}
	if c.Scrape.Staleness != "always" && c.Scrape.Staleness != "missing" {
		return fmt.Errorf("scrape.staleness must be 'always' or 'missing'")
	}
	if c.Scrape.RunTimeoutS < 0 {
		return fmt.Errorf("scrape.run_timeout_s must be >= 0")
	}
	if c.Output.ArtifactsDir == "" {
		return fmt.Errorf("output.artifacts_dir is required")
	}
	if c.Scrape.DownloadImages && c.Output.ImagesDir == "" {
		return fmt.Errorf("output.images_dir is required when scrape.download_images is true")
	}
	if c.Output.LedgerPath == "" {
		return fmt.Errorf("output.ledger_path is required")
	}
	if c.Observability.LogPath == "" {
		return fmt.Errorf("observability.log_path is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetPageTimeout() time.Duration {
	return time.Duration(c.Browser.PageTimeoutMS) * time.Millisecond
}

func (c *Config) GetStableWait() time.Duration {
	return time.Duration(c.Browser.StableWaitMS) * time.Millisecond
}

func (c *Config) GetLazyScrollDelay() time.Duration {
	return time.Duration(c.Browser.LazyScrollMS) * time.Millisecond
}

func (c *Config) GetLoginTimeout() time.Duration {
	return time.Duration(c.Browser.LoginTimeoutMS) * time.Millisecond
}

func (c *Config) GetRetryBackoff() time.Duration {
	return time.Duration(c.Retry.BackoffMS) * time.Millisecond
}

func (c *Config) GetRunTimeout() time.Duration {
	return time.Duration(c.Scrape.RunTimeoutS) * time.Second
}

// Default returns the baseline configuration; the yaml file and CLI flags
// layer on top of it.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       true,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			PageTimeoutMS:  15000,
			StableWaitMS:   1000,
			LazyScrollMS:   500,
			LoginTimeoutMS: 30000,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BackoffMS:     750,
			LoginAttempts: 2,
		},
		Credentials: CredentialsConfig{
			IdentityEnv: "SCRAPER_IDENTITY",
			SecretEnv:   "SCRAPER_SECRET",
			File:        "credentials.json",
		},
		Scrape: ScrapeConfig{
			MaxConcurrency: 4,
			Staleness:      "always",
			DownloadImages: true,
		},
		Output: OutputConfig{
			ArtifactsDir: "data/profiles",
			ImagesDir:    "data/images",
			LedgerPath:   "data/ledger.db",
		},
		Observability: ObservabilityConfig{
			LogPath:    "logs/staffdir.log",
			LogLevel:   "info",
			MaxSizeMB:  20,
			MaxBackups: 5,
		},
	}
}
