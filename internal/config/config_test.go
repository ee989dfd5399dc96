package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://yields.llama.fi", cfg.Sources.DefiLlama.BaseURL)
	assert.Equal(t, "Kava", cfg.Sources.DefiLlama.Chain)
	assert.Equal(t, 0.1, cfg.Filters.MinAPY)
	assert.Equal(t, 10000.0, cfg.Filters.MaxAPY)
	assert.Equal(t, 10, cfg.Aggregate.TopN)
	assert.Equal(t, 7, cfg.History.WindowDays)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Len(t, cfg.Aggregate.OverlapRules, 2)
	assert.NotEmpty(t, cfg.Sources.Kinetix.Vaults)
	assert.Equal(t, 500*time.Millisecond, cfg.Sources.Kinetix.BatchDelay)
	assert.Equal(t, "https://kinetix.finance", cfg.Sources.Kinetix.SourceLink)
	assert.Equal(t, "https://app.beefy.com", cfg.Sources.Beefy.SourceLink)
	assert.Equal(t, "https://hover.market", cfg.Sources.Hover.SourceLink)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
sources:
  defillama:
    chain: Ethereum
filters:
  min_tvl: 50000
aggregate:
  top_n: 5
  overlap_rules:
    - protocol_pattern: yearn
      exclude_from: defillama
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Ethereum", cfg.Sources.DefiLlama.Chain)
	assert.Equal(t, 50000.0, cfg.Filters.MinTVL)
	assert.Equal(t, 5, cfg.Aggregate.TopN)
	require.Len(t, cfg.Aggregate.OverlapRules, 1)
	assert.Equal(t, "yearn", cfg.Aggregate.OverlapRules[0].ProtocolPattern)
	// untouched sections keep their defaults
	assert.Equal(t, "https://api.beefy.finance", cfg.Sources.Beefy.BaseURL)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "inverted apy band",
			mutate:  func(c *Config) { c.Filters.MaxAPY = 0.05 },
			wantErr: "max_apy",
		},
		{
			name:    "zero top n",
			mutate:  func(c *Config) { c.Aggregate.TopN = 0 },
			wantErr: "top_n",
		},
		{
			name:    "zero batch delay",
			mutate:  func(c *Config) { c.Sources.Kinetix.BatchDelay = 0 },
			wantErr: "batch_delay",
		},
		{
			name:    "window too wide",
			mutate:  func(c *Config) { c.History.WindowDays = 45 },
			wantErr: "window_days",
		},
		{
			name:    "telegram enabled without token",
			mutate:  func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "123" },
			wantErr: "bot_token",
		},
		{
			name:    "incomplete overlap rule",
			mutate:  func(c *Config) { c.Aggregate.OverlapRules = []OverlapRuleConfig{{ProtocolPattern: "x"}} },
			wantErr: "overlap_rules",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
