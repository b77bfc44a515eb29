package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
directory:
  listing_url: "https://intranet.example.com/employees/"
  base_url: "https://intranet.example.com"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://intranet.example.com/employees/", cfg.Directory.ListingURL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.GetPageTimeout())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 4, cfg.Scrape.MaxConcurrency)
	assert.Equal(t, "always", cfg.Scrape.Staleness)
	assert.Equal(t, "SCRAPER_IDENTITY", cfg.Credentials.IdentityEnv)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
scrape:
  max_concurrency: 8
  staleness: "missing"
browser:
  headless: false
  page_timeout_ms: 5000
`))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Scrape.MaxConcurrency)
	assert.Equal(t, "missing", cfg.Scrape.Staleness)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.GetPageTimeout())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing listing url", func(c *Config) { c.Directory.ListingURL = "" }},
		{"missing base url", func(c *Config) { c.Directory.BaseURL = "" }},
		{"zero page timeout", func(c *Config) { c.Browser.PageTimeoutMS = 0 }},
		{"zero max attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"zero concurrency", func(c *Config) { c.Scrape.MaxConcurrency = 0 }},
		{"bad staleness", func(c *Config) { c.Scrape.Staleness = "sometimes" }},
		{"missing artifacts dir", func(c *Config) { c.Output.ArtifactsDir = "" }},
		{"missing ledger path", func(c *Config) { c.Output.LedgerPath = "" }},
		{"images without dir", func(c *Config) {
			c.Scrape.DownloadImages = true
			c.Output.ImagesDir = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Directory.ListingURL = "https://intranet.example.com/employees/"
			cfg.Directory.BaseURL = "https://intranet.example.com"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
