package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the coinboard service.
type Config struct {
	Server  Server  `yaml:"server"`
	Sources Sources `yaml:"sources"`
	Pinned  Pinned  `yaml:"pinned"`
	Board   Board   `yaml:"board"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Sources holds the upstream market-data endpoints.
type Sources struct {
	BinanceBaseURL   string `yaml:"binance_base_url"`
	CoinGeckoBaseURL string `yaml:"coingecko_base_url"`
	// CoinGeckoRatePerMin throttles aggregator calls (public API limit).
	CoinGeckoRatePerMin int `yaml:"coingecko_rate_per_min"`
	// TimeoutSeconds bounds each upstream HTTP call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Pinned identifies the always-first asset and its trading pair.
type Pinned struct {
	// AssetID is the aggregator identifier, e.g. "vanar-chain".
	AssetID string `yaml:"asset_id"`
	// TickerSymbol is the primary venue pair symbol, e.g. "VANRYUSDT".
	TickerSymbol string `yaml:"ticker_symbol"`
	// PairLabel is the display pair, e.g. "VANRY/USDT".
	PairLabel string `yaml:"pair_label"`
	// DisplayName is used when the listing lookup misses.
	DisplayName string `yaml:"display_name"`
}

// Board controls listing size and refresh behaviour.
type Board struct {
	ListingPage     int `yaml:"listing_page"`
	ListingPageSize int `yaml:"listing_page_size"`
	// RefreshIntervalSec enables periodic auto-refresh; 0 means manual only.
	RefreshIntervalSec int `yaml:"refresh_interval_sec"`
	// SearchDebounceMS is the search quiescence delay. Must stay responsive:
	// values outside (0, 1000) are clamped back to the default 400ms.
	SearchDebounceMS int `yaml:"search_debounce_ms"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration: VANRY pinned, public Binance
// and CoinGecko endpoints, 100-row listing.
func Default() *Config {
	return &Config{
		Server: Server{Host: "127.0.0.1", Port: 8480},
		Sources: Sources{
			BinanceBaseURL:      "https://api.binance.com",
			CoinGeckoBaseURL:    "https://api.coingecko.com/api/v3",
			CoinGeckoRatePerMin: 30,
			TimeoutSeconds:      10,
		},
		Pinned: Pinned{
			AssetID:      "vanar-chain",
			TickerSymbol: "VANRYUSDT",
			PairLabel:    "VANRY/USDT",
			DisplayName:  "Vanar Chain",
		},
		Board: Board{
			ListingPage:      1,
			ListingPageSize:  100,
			SearchDebounceMS: 400,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path over the built-in
// defaults, then applies environment variable overrides. A missing file is
// not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	return cfg, nil
}

// SearchDebounce returns the debounce delay as a duration.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.Board.SearchDebounceMS) * time.Millisecond
}

// SourceTimeout returns the per-call upstream timeout.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}

// normalize clamps values that would make the dashboard unusable.
func (c *Config) normalize() {
	if c.Board.SearchDebounceMS <= 0 || c.Board.SearchDebounceMS >= 1000 {
		c.Board.SearchDebounceMS = 400
	}
	if c.Board.ListingPage < 1 {
		c.Board.ListingPage = 1
	}
	if c.Board.ListingPageSize < 1 || c.Board.ListingPageSize > 250 {
		c.Board.ListingPageSize = 100
	}
	if c.Sources.TimeoutSeconds <= 0 {
		c.Sources.TimeoutSeconds = 10
	}
	if c.Sources.CoinGeckoRatePerMin <= 0 {
		c.Sources.CoinGeckoRatePerMin = 30
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COINBOARD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.Sources.BinanceBaseURL = v
	}
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.Sources.CoinGeckoBaseURL = v
	}
	if v := os.Getenv("PINNED_ASSET_ID"); v != "" {
		cfg.Pinned.AssetID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
