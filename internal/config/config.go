// Package config builds the daemon configuration once at startup. Components
// receive the resulting struct explicitly; nothing reads the environment or
// the config file after Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr       = "127.0.0.1:42069"
	DefaultWatchdogInterval = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultConfirmTimeout   = 8 * time.Second
	DefaultRiskTTL          = time.Hour
	DefaultPriceTTL         = 5 * time.Minute
	DefaultRiskThreshold    = 80
)

type Config struct {
	ListenAddr string     `yaml:"listenAddr" env:"PRISM_LISTEN_ADDR"`
	AuthToken  string     `yaml:"authToken" env:"PRISM_AUTH_TOKEN"`
	DataDir    string     `yaml:"dataDir" env:"PRISM_DATA_DIR"`
	Keystore   Keystore   `yaml:"keystore"`
	Network    Network    `yaml:"network"`
	Watchdog   Watchdog   `yaml:"watchdog"`
	Compliance Compliance `yaml:"compliance"`
	Market     Market     `yaml:"market"`
	RateLimit  RateLimit  `yaml:"rateLimit"`
}

type Keystore struct {
	Path       string `yaml:"path" env:"PRISM_KEYSTORE_PATH"`
	Passphrase string `yaml:"passphrase" env:"PRISM_KEYSTORE_PASSPHRASE"`
}

type Network struct {
	PrimaryURL     string        `yaml:"primaryUrl" env:"PRISM_RPC_PRIMARY_URL"`
	SecondaryURL   string        `yaml:"secondaryUrl" env:"PRISM_RPC_SECONDARY_URL"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"PRISM_RPC_REQUEST_TIMEOUT"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout" env:"PRISM_RPC_CONFIRM_TIMEOUT"`
}

type Watchdog struct {
	Interval time.Duration `yaml:"interval" env:"PRISM_WATCHDOG_INTERVAL"`
}

type Compliance struct {
	BaseURL   string        `yaml:"baseUrl" env:"PRISM_RANGE_URL"`
	CacheTTL  time.Duration `yaml:"cacheTtl" env:"PRISM_RISK_CACHE_TTL"`
	Threshold int           `yaml:"threshold" env:"PRISM_RISK_THRESHOLD"`
}

type Market struct {
	BaseURL  string        `yaml:"baseUrl" env:"PRISM_MARKET_URL"`
	CacheTTL time.Duration `yaml:"cacheTtl" env:"PRISM_PRICE_CACHE_TTL"`
}

type RateLimit struct {
	Enabled bool    `yaml:"enabled" env:"PRISM_RATE_LIMIT_ENABLED"`
	RPS     float64 `yaml:"rps" env:"PRISM_RATE_LIMIT_RPS"`
	Burst   int     `yaml:"burst" env:"PRISM_RATE_LIMIT_BURST"`
}

func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		ListenAddr: DefaultListenAddr,
		DataDir:    filepath.Join(home, ".shadowprism"),
		Network: Network{
			PrimaryURL:     "https://api.devnet.solana.com",
			RequestTimeout: DefaultRequestTimeout,
			ConfirmTimeout: DefaultConfirmTimeout,
		},
		Watchdog: Watchdog{Interval: DefaultWatchdogInterval},
		Compliance: Compliance{
			CacheTTL:  DefaultRiskTTL,
			Threshold: DefaultRiskThreshold,
		},
		Market: Market{CacheTTL: DefaultPriceTTL},
		RateLimit: RateLimit{
			Enabled: true,
			RPS:     30,
			Burst:   60,
		},
	}
}

// Load merges defaults, an optional yaml file and env overrides, in that
// order. A missing file at an explicitly provided path is an error; an empty
// path just skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	// The keystore path follows the data dir unless set explicitly.
	if cfg.Keystore.Path == "" {
		cfg.Keystore.Path = filepath.Join(cfg.DataDir, "signer.key")
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Network.PrimaryURL == "" {
		return fmt.Errorf("network.primaryUrl is required")
	}
	if c.Watchdog.Interval <= 0 {
		return fmt.Errorf("watchdog.interval must be positive")
	}
	if c.Compliance.Threshold <= 0 || c.Compliance.Threshold > 100 {
		return fmt.Errorf("compliance.threshold must be in (0,100]")
	}
	return nil
}
