// Package config loads server settings from FLEETREPLAY_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "FLEETREPLAY_"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreS3       = "s3"
)

type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"` // FLEETREPLAY_HTTP_ADDR
	GRPCAddr  string `env:"GRPC_ADDR" envDefault:":9090"` // FLEETREPLAY_GRPC_ADDR
	AuthToken string `env:"AUTH_TOKEN"`                   // FLEETREPLAY_AUTH_TOKEN (optional, empty = auth disabled)

	// Initial dataset; the URL wins when both are set.
	DataURL  string `env:"DATA_URL"`  // FLEETREPLAY_DATA_URL
	DataFile string `env:"DATA_FILE"` // FLEETREPLAY_DATA_FILE

	// Checkpoint store
	Store         string `env:"STORE" envDefault:"memory"`                      // FLEETREPLAY_STORE (memory|postgres|sqlite|s3)
	DatabaseURL   string `env:"DATABASE_URL"`                                   // FLEETREPLAY_DATABASE_URL (postgres)
	SQLitePath    string `env:"SQLITE_PATH"`                                    // FLEETREPLAY_SQLITE_PATH (sqlite)
	S3Bucket      string `env:"S3_BUCKET"`                                      // FLEETREPLAY_S3_BUCKET (s3)
	S3Region      string `env:"S3_REGION" envDefault:"us-east-1"`               // FLEETREPLAY_S3_REGION
	S3Endpoint    string `env:"S3_ENDPOINT"`                                    // FLEETREPLAY_S3_ENDPOINT (custom endpoint for MinIO)
	S3Prefix      string `env:"S3_PREFIX"`                                      // FLEETREPLAY_S3_PREFIX
	CheckpointKey string `env:"CHECKPOINT_KEY" envDefault:"fleetTrackingState"` // FLEETREPLAY_CHECKPOINT_KEY

	// Playback cadence
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"` // FLEETREPLAY_TICK_INTERVAL (wall clock)
	TickStep     time.Duration `env:"TICK_STEP" envDefault:"1m"`     // FLEETREPLAY_TICK_STEP (virtual time per tick at 1x)

	NATSURL      string `env:"NATS_URL"`      // FLEETREPLAY_NATS_URL (optional, empty = no events)
	OTelEndpoint string `env:"OTEL_ENDPOINT"` // FLEETREPLAY_OTEL_ENDPOINT (optional, empty = tracing off)

	// Sync settings
	SyncInterval  time.Duration `env:"SYNC_INTERVAL"`                                      // FLEETREPLAY_SYNC_INTERVAL (0 = disabled)
	SyncS3Bucket  string        `env:"SYNC_S3_BUCKET"`                                     // FLEETREPLAY_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Key     string        `env:"SYNC_S3_KEY" envDefault:"fleetreplay/session.jsonl"` // FLEETREPLAY_SYNC_S3_KEY
	SyncGitRepo   string        `env:"SYNC_GIT_REPO"`                                      // FLEETREPLAY_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile   string        `env:"SYNC_GIT_FILE" envDefault:"session.jsonl"`           // FLEETREPLAY_SYNC_GIT_FILE
	SyncGitBranch string        `env:"SYNC_GIT_BRANCH" envDefault:"main"`                  // FLEETREPLAY_SYNC_GIT_BRANCH
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the settings required by the selected backends are present.
func (c *Config) Validate() error {
	if c.DataURL == "" && c.DataFile == "" {
		return fmt.Errorf("%sDATA_URL or %sDATA_FILE is required", EnvPrefix, EnvPrefix)
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%sDATABASE_URL is required for the postgres store", EnvPrefix)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%sSQLITE_PATH is required for the sqlite store", EnvPrefix)
		}
	case StoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%sS3_BUCKET is required for the s3 store", EnvPrefix)
		}
	default:
		return fmt.Errorf("%sSTORE: unknown store %q", EnvPrefix, c.Store)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("%sTICK_INTERVAL must be positive", EnvPrefix)
	}
	if c.TickStep <= 0 {
		return fmt.Errorf("%sTICK_STEP must be positive", EnvPrefix)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("%sSYNC_INTERVAL must not be negative", EnvPrefix)
	}
	return nil
}

// SyncEnabled reports whether periodic archive sync has an interval and at
// least one destination.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncGitRepo != "")
}
