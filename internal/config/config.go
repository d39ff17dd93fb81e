package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	RPC    RPCConfig    `yaml:"rpc"`
	Ledger LedgerConfig `yaml:"ledger"`
	Anchor AnchorConfig `yaml:"anchor"`
	Limits LimitsConfig `yaml:"limits"`

	// Secrets come from the environment only, never from the file.
	AnchorKeypair string `yaml:"-"`
	CronSecret    string `yaml:"-"`
	ProTierToken  string `yaml:"-"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// RPCConfig represents the ledger RPC endpoint configuration
type RPCConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LedgerConfig selects the ledger backend
type LedgerConfig struct {
	Mode      string `yaml:"mode"`       // "solana" or "local"
	LocalPath string `yaml:"local_path"` // pebble path for local mode
}

// AnchorConfig represents anchor advancement configuration
type AnchorConfig struct {
	IntervalMs        int64  `yaml:"interval_ms"`
	DefaultDifficulty uint32 `yaml:"default_difficulty"`
	SelfSchedule      bool   `yaml:"self_schedule"`
}

// LimitsConfig represents rate limiting configuration
type LimitsConfig struct {
	VerifyPerMin    int    `yaml:"verify_per_min"`
	TimestampPerMin int    `yaml:"timestamp_per_min"`
	TimestampPerDay int    `yaml:"timestamp_per_day"`
	ProPerMin       int    `yaml:"pro_per_min"`
	ProPerDay       int    `yaml:"pro_per_day"`
	MaxKeys         int    `yaml:"max_keys"`
	TierHeader      string `yaml:"tier_header"`
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		RPC: RPCConfig{
			URL:            "https://api.devnet.solana.com",
			TimeoutSeconds: 15,
		},
		Ledger: LedgerConfig{
			Mode:      "solana",
			LocalPath: "./data/ledger",
		},
		Anchor: AnchorConfig{
			IntervalMs:        60_000,
			DefaultDifficulty: 1000,
		},
		Limits: LimitsConfig{
			VerifyPerMin:    60,
			TimestampPerMin: 5,
			TimestampPerDay: 10,
			ProPerMin:       30,
			ProPerDay:       500,
			MaxKeys:         20_000,
			TierHeader:      "X-Beats-Tier-Token",
		},
	}

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadEnv()

	return cfg, nil
}

func (c *Config) loadEnv() {
	// Server config
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}

	// Ledger RPC endpoint; the substring of the URL selects the
	// explorer cluster.
	if url := os.Getenv("BEATS_RPC_URL"); url != "" {
		c.RPC.URL = url
	}
	if mode := os.Getenv("BEATS_LEDGER_MODE"); mode != "" {
		c.Ledger.Mode = mode
	}

	// Secrets
	c.AnchorKeypair = os.Getenv("BEATS_ANCHOR_KEYPAIR")
	c.CronSecret = os.Getenv("CRON_SECRET")
	c.ProTierToken = os.Getenv("BEATS_PRO_TIER_TOKEN")
}

// Validate checks settings that would otherwise fail deep inside the
// service.
func (c *Config) Validate() error {
	if c.Ledger.Mode != "solana" && c.Ledger.Mode != "local" {
		return fmt.Errorf("ledger mode must be \"solana\" or \"local\", got %q", c.Ledger.Mode)
	}
	if c.Ledger.Mode == "solana" && c.AnchorKeypair == "" {
		return fmt.Errorf("BEATS_ANCHOR_KEYPAIR is required in solana mode")
	}
	if c.Anchor.IntervalMs <= 0 {
		return fmt.Errorf("anchor interval must be positive")
	}
	return nil
}
