package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LaunchConfig models the launch parameters file (launch.json).
type LaunchConfig struct {
	Token struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	} `json:"token"`
	Pricing struct {
		PricePerToken float64 `json:"pricePerToken"`
	} `json:"pricing"`
	Limits struct {
		MinPurchase float64 `json:"minPurchase"`
		MaxPurchase float64 `json:"maxPurchase"`
	} `json:"limits"`
	Retry struct {
		MaxAttempts       int `json:"maxAttempts"`
		InitialBackoffMs  int `json:"initialBackoffMs"`
		MaxBackoffMs      int `json:"maxBackoffMs"`
		BackoffMultiplier int `json:"backoffMultiplier"`
	} `json:"retry"`
	Timeouts struct {
		RPCTimeoutMs          int `json:"rpcTimeoutMs"`
		ConfirmTimeoutMs      int `json:"confirmTimeoutMs"`
		ConfirmPollIntervalMs int `json:"confirmPollIntervalMs"`
		MintResubmitAttempts  int `json:"mintResubmitAttempts"`
	} `json:"timeouts"`
}

// ChainConfig holds everything needed to reach the ledger and sign mints.
type ChainConfig struct {
	RPCURL string
	// MintAuthorityKey is the raw keypair material (JSON byte array or
	// base64). Decoded and validated once at startup; never logged.
	MintAuthorityKey string
	TokenMint        string
	PaymentAccount   string
}

type ServiceConfig struct {
	HTTPPort        int
	HMACSecret      string
	HMACClockSkew   time.Duration
	PostgresDSN     string
	ReplayStorePath string
}

// RetryConfig consolidates the retry/backoff knobs injected into both the
// verification and submission paths.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier int
}

type TimeoutConfig struct {
	RPCTimeout           time.Duration
	ConfirmTimeout       time.Duration
	ConfirmPollInterval  time.Duration
	MintResubmitAttempts int
}

// AppConfig ties together launch parameters, chain access and service knobs.
type AppConfig struct {
	Launch   LaunchConfig
	Chain    ChainConfig
	Service  ServiceConfig
	Retry    RetryConfig
	Timeouts TimeoutConfig
}

const defaultLaunchPath = "launch.json"

// Load aggregates configuration from .env, the environment and the launch
// file, then validates it. Any missing or malformed required value is a
// startup failure: the service refuses to serve without a usable setup.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	launch, err := loadLaunch(envOr("LAUNCH_CONFIG_PATH", defaultLaunchPath))
	if err != nil {
		return nil, fmt.Errorf("load launch config: %w", err)
	}

	cfg := &AppConfig{
		Launch: *launch,
		Chain: ChainConfig{
			RPCURL:           envOr("SOLANA_RPC_URL", ""),
			MintAuthorityKey: envOr("MINT_AUTHORITY_PRIVATE_KEY", ""),
			TokenMint:        envOr("TOKEN_MINT", ""),
			PaymentAccount:   envOr("PAYMENT_ACCOUNT", ""),
		},
		Service: ServiceConfig{
			HTTPPort:        envOrInt("API_HTTP_PORT", 3000),
			HMACSecret:      envOr("API_HMAC_SECRET", ""),
			HMACClockSkew:   time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
			PostgresDSN:     envOr("POSTGRES_DSN", ""),
			ReplayStorePath: envOr("REPLAY_STORE_PATH", filepath.Join(os.TempDir(), "lunchpad-replay.json")),
		},
		Retry: RetryConfig{
			MaxAttempts:       launch.Retry.MaxAttempts,
			InitialBackoff:    time.Duration(launch.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:        time.Duration(launch.Retry.MaxBackoffMs) * time.Millisecond,
			BackoffMultiplier: launch.Retry.BackoffMultiplier,
		},
		Timeouts: TimeoutConfig{
			RPCTimeout:           time.Duration(launch.Timeouts.RPCTimeoutMs) * time.Millisecond,
			ConfirmTimeout:       time.Duration(launch.Timeouts.ConfirmTimeoutMs) * time.Millisecond,
			ConfirmPollInterval:  time.Duration(launch.Timeouts.ConfirmPollIntervalMs) * time.Millisecond,
			MintResubmitAttempts: launch.Timeouts.MintResubmitAttempts,
		},
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.Retry.MaxBackoff <= 0 {
		cfg.Retry.MaxBackoff = 5 * time.Second
	}
	if cfg.Retry.BackoffMultiplier <= 1 {
		cfg.Retry.BackoffMultiplier = 2
	}
	if cfg.Timeouts.RPCTimeout <= 0 {
		cfg.Timeouts.RPCTimeout = 12 * time.Second
	}
	if cfg.Timeouts.ConfirmTimeout <= 0 {
		cfg.Timeouts.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Timeouts.ConfirmPollInterval <= 0 {
		cfg.Timeouts.ConfirmPollInterval = 2 * time.Second
	}
	if cfg.Timeouts.MintResubmitAttempts <= 0 {
		cfg.Timeouts.MintResubmitAttempts = 2
	}
	if cfg.Launch.Token.Decimals == 0 {
		cfg.Launch.Token.Decimals = 9
	}
}

// Validate enforces the startup contract: the endpoint must be a real
// network URL, key material and accounts must be present, bounds sane.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.Chain.RPCURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid rpc url %q: must be an http(s) URL", c.Chain.RPCURL)
	}
	if c.Chain.MintAuthorityKey == "" {
		return fmt.Errorf("MINT_AUTHORITY_PRIVATE_KEY is not set")
	}
	if c.Chain.TokenMint == "" {
		return fmt.Errorf("TOKEN_MINT is not set")
	}
	if c.Chain.PaymentAccount == "" {
		return fmt.Errorf("PAYMENT_ACCOUNT is not set")
	}
	if c.Launch.Pricing.PricePerToken <= 0 {
		return fmt.Errorf("pricePerToken must be positive, got %v", c.Launch.Pricing.PricePerToken)
	}
	if c.Launch.Limits.MinPurchase <= 0 || c.Launch.Limits.MaxPurchase <= c.Launch.Limits.MinPurchase {
		return fmt.Errorf("purchase limits must satisfy 0 < min < max, got [%v, %v]",
			c.Launch.Limits.MinPurchase, c.Launch.Limits.MaxPurchase)
	}
	return nil
}

func loadLaunch(path string) (*LaunchConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg LaunchConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
