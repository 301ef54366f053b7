// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the bot needs to start.
type Config struct {
	// Token is the Discord bot token.
	Token string `env:"TOKEN,required"`

	// DBPath is where the sqlite database lives.
	DBPath string `env:"DB_PATH" envDefault:"./data/database.sqlite"`

	// Port is the keep-alive HTTP listener port. Hosting platforms that
	// idle inactive services ping this.
	Port int `env:"PORT" envDefault:"3000"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
