// Package config loads server settings from the environment.
//
// A .env file in the working directory is read first (if present); real
// environment variables win over it.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server.
type Config struct {
	Port           string        `env:"PORT" envDefault:"5000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool          `env:"LOG_PRETTY" envDefault:"false"`
	ClientOrigin   string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	DBPath         string        `env:"DB_PATH" envDefault:"./data/cantstop.db"`
	SessionCookie  string        `env:"SESSION_COOKIE" envDefault:"cantstop_session"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	// DiceSalt makes each session's dice reproducible when set.
	DiceSalt string `env:"DICE_SALT"`

	Agent AgentConfig `envPrefix:"AGENT_"`

	// CheckpointInterval of 0 disables periodic Q-table saves.
	CheckpointInterval time.Duration `env:"CHECKPOINT_INTERVAL" envDefault:"1m"`
}

// AgentConfig holds the learning hyper-parameters.
type AgentConfig struct {
	Alpha   float64 `env:"ALPHA" envDefault:"0.1"`
	Gamma   float64 `env:"GAMMA" envDefault:"0.9"`
	Epsilon float64 `env:"EPSILON" envDefault:"0.1"`
	Seed    uint64  `env:"SEED" envDefault:"0"` // 0 = random
}

// Load reads .env (best effort) and parses the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Agent.Epsilon < 0 || c.Agent.Epsilon > 1 {
		return fmt.Errorf("AGENT_EPSILON must be in [0,1], got %v", c.Agent.Epsilon)
	}
	if c.Agent.Alpha <= 0 || c.Agent.Alpha > 1 {
		return fmt.Errorf("AGENT_ALPHA must be in (0,1], got %v", c.Agent.Alpha)
	}
	if c.Agent.Gamma < 0 || c.Agent.Gamma > 1 {
		return fmt.Errorf("AGENT_GAMMA must be in [0,1], got %v", c.Agent.Gamma)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("CHECKPOINT_INTERVAL must not be negative")
	}
	return nil
}
