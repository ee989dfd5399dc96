// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Sources   SourcesConfig   `mapstructure:"sources"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	History   HistoryConfig   `mapstructure:"history"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SourcesConfig holds per-provider endpoint configuration
type SourcesConfig struct {
	DefiLlama DefiLlamaConfig `mapstructure:"defillama"`
	Rise      EndpointConfig  `mapstructure:"rise"`
	Hover     EndpointConfig  `mapstructure:"hover"`
	Kinetix   KinetixConfig   `mapstructure:"kinetix"`
	Beefy     EndpointConfig  `mapstructure:"beefy"`
	Timeout   time.Duration   `mapstructure:"timeout"`
}

// EndpointConfig is a plain HTTP source endpoint
type EndpointConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SourceLink string `mapstructure:"source_link"`
	Enabled    bool   `mapstructure:"enabled"`
}

// DefiLlamaConfig holds the yields index source configuration. The index
// builds per-pool links itself, so there is no source_link here.
type DefiLlamaConfig struct {
	BaseURL  string   `mapstructure:"base_url"`
	Chain    string   `mapstructure:"chain"`
	Excluded []string `mapstructure:"excluded_protocols"`
	Enabled  bool     `mapstructure:"enabled"`
}

// KinetixConfig holds the on-chain vault source configuration
type KinetixConfig struct {
	RPCEndpoint string        `mapstructure:"rpc_endpoint"`
	Vaults      []VaultConfig `mapstructure:"vaults"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
	SourceLink  string        `mapstructure:"source_link"`
	Enabled     bool          `mapstructure:"enabled"`
}

// VaultConfig describes one ERC-4626 style vault to read
type VaultConfig struct {
	Address       string `mapstructure:"address"`
	Symbol        string `mapstructure:"symbol"`
	Label         string `mapstructure:"label"`
	RateDecimals  int32  `mapstructure:"rate_decimals"`
	AssetDecimals int32  `mapstructure:"asset_decimals"`
}

// FiltersConfig holds record-level acceptance thresholds
type FiltersConfig struct {
	MinAPY float64 `mapstructure:"min_apy"`
	MinTVL float64 `mapstructure:"min_tvl"`
	MaxAPY float64 `mapstructure:"max_apy"`
}

// OverlapRuleConfig excludes an indexed protocol from a broad source
type OverlapRuleConfig struct {
	ProtocolPattern string `mapstructure:"protocol_pattern"`
	ExcludeFrom     string `mapstructure:"exclude_from"`
}

// AggregateConfig holds merge behavior configuration
type AggregateConfig struct {
	TopN           int                 `mapstructure:"top_n"`
	AdapterTimeout time.Duration       `mapstructure:"adapter_timeout"`
	OverlapRules   []OverlapRuleConfig `mapstructure:"overlap_rules"`
}

// HistoryConfig holds snapshot persistence configuration
type HistoryConfig struct {
	FilePath   string `mapstructure:"file_path"`
	WindowDays int    `mapstructure:"window_days"`
}

// BreakerConfig holds publish guard configuration
type BreakerConfig struct {
	MinProviders int           `mapstructure:"min_providers"`
	MaxTVLChange float64       `mapstructure:"max_tvl_change"`
	ResetDelay   time.Duration `mapstructure:"reset_delay"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ScheduleConfig holds run cadence configuration
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig holds the health and metrics listener configuration
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TracingConfig holds the OTLP exporter configuration
type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path skips the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("YIELD_RADAR")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Aggregate.OverlapRules) == 0 {
		cfg.Aggregate.OverlapRules = defaultOverlapRules()
	}
	if len(cfg.Sources.Kinetix.Vaults) == 0 {
		cfg.Sources.Kinetix.Vaults = defaultVaults()
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("sources.defillama.base_url", "https://yields.llama.fi")
	v.SetDefault("sources.defillama.chain", "Kava")
	v.SetDefault("sources.defillama.enabled", true)
	v.SetDefault("sources.rise.base_url", "https://api.rise.finance")
	v.SetDefault("sources.rise.enabled", true)
	v.SetDefault("sources.hover.base_url", "https://api.thegraph.com/subgraphs/name/hover-labs/hover-kava")
	v.SetDefault("sources.hover.source_link", "https://hover.market")
	v.SetDefault("sources.hover.enabled", true)
	v.SetDefault("sources.kinetix.rpc_endpoint", "https://evm.kava.io")
	v.SetDefault("sources.kinetix.batch_delay", "500ms")
	v.SetDefault("sources.kinetix.source_link", "https://kinetix.finance")
	v.SetDefault("sources.kinetix.enabled", true)
	v.SetDefault("sources.beefy.base_url", "https://api.beefy.finance")
	v.SetDefault("sources.beefy.source_link", "https://app.beefy.com")
	v.SetDefault("sources.beefy.enabled", true)
	v.SetDefault("sources.timeout", "15s")

	v.SetDefault("filters.min_apy", 0.1)
	v.SetDefault("filters.min_tvl", 10000.0)
	v.SetDefault("filters.max_apy", 10000.0)

	v.SetDefault("aggregate.top_n", 10)
	v.SetDefault("aggregate.adapter_timeout", "15s")

	v.SetDefault("history.file_path", "./data/yield-history.json")
	v.SetDefault("history.window_days", 7)

	v.SetDefault("breaker.min_providers", 2)
	v.SetDefault("breaker.max_tvl_change", 0.5)
	v.SetDefault("breaker.reset_delay", "30m")

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("schedule.interval", "1h")

	v.SetDefault("server.listen_addr", ":9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// defaultOverlapRules excludes protocols covered by dedicated adapters from
// the broad index. Kinetix is not excluded: the on-chain adapter only reads
// the flagship vaults, so the index still contributes its remaining pools.
func defaultOverlapRules() []OverlapRuleConfig {
	return []OverlapRuleConfig{
		{ProtocolPattern: "beefy", ExcludeFrom: "defillama"},
		{ProtocolPattern: "hover", ExcludeFrom: "defillama"},
	}
}

// defaultVaults lists the flagship Kinetix vaults read on-chain.
func defaultVaults() []VaultConfig {
	return []VaultConfig{
		{
			Address:       "0x9d174650f45b3C64C19B13Cc6bDaCE22cA917af6",
			Symbol:        "stKAVA",
			Label:         "Liquid Staking",
			RateDecimals:  24,
			AssetDecimals: 18,
		},
		{
			Address:       "0x919C1c267BC06a7039e03fcc2eF738525769109c",
			Symbol:        "USDT",
			Label:         "Stable Vault",
			RateDecimals:  24,
			AssetDecimals: 6,
		},
	}
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Sources.DefiLlama.Enabled && c.Sources.DefiLlama.BaseURL == "" {
		return fmt.Errorf("sources.defillama.base_url is required")
	}
	if c.Sources.DefiLlama.Enabled && c.Sources.DefiLlama.Chain == "" {
		return fmt.Errorf("sources.defillama.chain is required")
	}
	if c.Sources.Kinetix.Enabled && c.Sources.Kinetix.RPCEndpoint == "" {
		return fmt.Errorf("sources.kinetix.rpc_endpoint is required")
	}
	if c.Sources.Kinetix.Enabled && c.Sources.Kinetix.BatchDelay <= 0 {
		return fmt.Errorf("sources.kinetix.batch_delay must be positive")
	}
	if c.Sources.Timeout < time.Second {
		return fmt.Errorf("sources.timeout must be at least 1 second")
	}

	if c.Filters.MinTVL < 0 {
		return fmt.Errorf("filters.min_tvl must not be negative")
	}
	if c.Filters.MaxAPY <= c.Filters.MinAPY {
		return fmt.Errorf("filters.max_apy must be greater than filters.min_apy")
	}

	if c.Aggregate.TopN < 1 {
		return fmt.Errorf("aggregate.top_n must be at least 1")
	}
	if c.Aggregate.AdapterTimeout < time.Second {
		return fmt.Errorf("aggregate.adapter_timeout must be at least 1 second")
	}
	for _, rule := range c.Aggregate.OverlapRules {
		if rule.ProtocolPattern == "" || rule.ExcludeFrom == "" {
			return fmt.Errorf("aggregate.overlap_rules entries need protocol_pattern and exclude_from")
		}
	}

	if c.History.FilePath == "" {
		return fmt.Errorf("history.file_path is required")
	}
	if c.History.WindowDays < 1 || c.History.WindowDays > 30 {
		return fmt.Errorf("history.window_days must be between 1 and 30")
	}

	if c.Breaker.MinProviders < 1 {
		return fmt.Errorf("breaker.min_providers must be at least 1")
	}
	if c.Breaker.MaxTVLChange < 0 {
		return fmt.Errorf("breaker.max_tvl_change must not be negative")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Schedule.Interval < time.Minute {
		return fmt.Errorf("schedule.interval must be at least 1 minute")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
