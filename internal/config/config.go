// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"solido-stake/internal/solido"
)

// Config holds all configuration loaded from environment variables.
type Config struct {
	RPCEndpoint string `env:"SOLANA_RPC_ENDPOINT" envDefault:"https://api.mainnet-beta.solana.com"`
	WSEndpoint  string `env:"SOLANA_WS_ENDPOINT"`
	Commitment  string `env:"SOLANA_COMMITMENT" envDefault:"confirmed"`

	ProgramID  string `env:"SOLIDO_PROGRAM_ID" envDefault:"CrX7kMhLC3cSsXJdT7JDgqrRVWGnUpX3gfEfxxU2NVLi"`
	InstanceID string `env:"SOLIDO_INSTANCE_ID" envDefault:"49Yi1TKkNyYjPAFdR9LBvoHcUjuPX4Df5T5yv39w2XTn"`
	StSolMint  string `env:"STSOL_MINT" envDefault:"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj"`

	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`
	UseMemory     bool   `env:"USE_MEMORY" envDefault:"false"`

	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":8080"`
	HTTPRateLimit  float64       `env:"HTTP_RATE_LIMIT" envDefault:"20"`
	HTTPRateBurst  int           `env:"HTTP_RATE_BURST" envDefault:"40"`
	RecordInterval time.Duration `env:"RECORD_INTERVAL" envDefault:"5m"`

	RPCRateLimit  float64       `env:"RPC_RATE_LIMIT" envDefault:"0"`
	RPCRateBurst  int           `env:"RPC_RATE_BURST" envDefault:"10"`
	RPCMaxRetries int           `env:"RPC_MAX_RETRIES" envDefault:"3"`
	RPCTimeout    time.Duration `env:"RPC_TIMEOUT" envDefault:"30s"`

	ConfirmTimeout    time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"60s"`
	EnrichConcurrency int           `env:"ENRICH_CONCURRENCY" envDefault:"0"`

	StatsURL string `env:"LIDO_STATS_URL" envDefault:"https://solana.lido.fi/api/stats"`
}

// Load reads .env files (if present) and then the process environment.
// Variables already set in the environment take precedence over .env.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return errors.New("SOLANA_RPC_ENDPOINT is required")
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return errors.New("POSTGRES_DSN and CLICKHOUSE_DSN are required (set USE_MEMORY=true for in-memory storage)")
	}
	if _, err := c.Addresses(); err != nil {
		return err
	}
	return nil
}

// Addresses parses the configured protocol deployment.
func (c Config) Addresses() (solido.ProgramAddresses, error) {
	addrs, err := solido.ParseProgramAddresses(c.ProgramID, c.InstanceID, c.StSolMint)
	if err != nil {
		return solido.ProgramAddresses{}, fmt.Errorf("solido addresses: %w", err)
	}
	return addrs, nil
}
