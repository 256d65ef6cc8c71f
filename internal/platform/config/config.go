// Copyright (c) 2026 Datamira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, indexes, models) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Datamira API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Control-plane database (PostgreSQL): users, sessions, saved connections
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis): session cache and the Redis vector store
	RedisURL string `env:"REDIS_URL,required"`

	// Cryptographic keys for refresh-token signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Session policy
	SessionTTLHours int `env:"SESSION_TTL_HOURS" envDefault:"24"`

	// Admin bootstrap credentials (operator must rotate after first start)
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL"    envDefault:"admin@datamira.app"`
	AdminPassword string `env:"ADMIN_PASSWORD,required"`

	// Language model provider
	OpenAIAPIKey   string `env:"OPENAI_API_KEY,required"`
	ChatModel      string `env:"CHAT_MODEL"      envDefault:"gpt-4o-mini"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// EmbeddingDimension is D: fixed per deployment, every vector point must match.
	EmbeddingDimension int `env:"EMBEDDING_DIMENSION" envDefault:"1536"`

	// Graph store (Neo4j). When unset, the in-memory graph store is used.
	Neo4jURI      string `env:"NEO4J_URI"`
	Neo4jUsername string `env:"NEO4J_USERNAME"`
	Neo4jPassword string `env:"NEO4J_PASSWORD"`

	// Query executor safety policy
	QueryDenylist    []string `env:"QUERY_DENYLIST" envSeparator:"," envDefault:"drop,delete,truncate,alter,create,insert,update"`
	DenylistWarnOnly bool     `env:"QUERY_DENYLIST_WARN_ONLY" envDefault:"false"`

	// Result bounding
	MaxRows int `env:"MAX_ROWS" envDefault:"1000"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
