package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// allEnvVars lists every variable that must be cleared between tests.
var allEnvVars = []string{
	"HTTP_ADDR", "GRPC_ADDR", "AUTH_TOKEN", "DATA_URL", "DATA_FILE",
	"STORE", "DATABASE_URL", "SQLITE_PATH", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_PREFIX",
	"CHECKPOINT_KEY", "TICK_INTERVAL", "TICK_STEP", "NATS_URL", "OTEL_ENDPOINT",
	"SYNC_INTERVAL", "SYNC_S3_BUCKET", "SYNC_S3_KEY", "SYNC_GIT_REPO", "SYNC_GIT_FILE", "SYNC_GIT_BRANCH",
}

func clearAllEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		// Setenv registers the restore; the variable itself is then removed.
		t.Setenv(EnvPrefix+key, "")
		os.Unsetenv(EnvPrefix + key)
	}
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(EnvPrefix+k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnv(t)
	setEnv(t, map[string]string{"DATA_FILE": "fleet.json"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.GRPCAddr != ":9090" {
		t.Errorf("addresses = %q, %q", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.Store != StoreMemory || cfg.CheckpointKey != "fleetTrackingState" {
		t.Errorf("store = %q key = %q", cfg.Store, cfg.CheckpointKey)
	}
	if cfg.TickInterval != time.Second || cfg.TickStep != time.Minute {
		t.Errorf("tick = %v / %v", cfg.TickInterval, cfg.TickStep)
	}
	if cfg.S3Region != "us-east-1" || cfg.SyncGitBranch != "main" {
		t.Errorf("region = %q branch = %q", cfg.S3Region, cfg.SyncGitBranch)
	}
	if cfg.SyncEnabled() {
		t.Error("sync should be disabled by default")
	}
}

func TestLoad_Custom(t *testing.T) {
	clearAllEnv(t)
	setEnv(t, map[string]string{
		"DATA_URL":       "https://example.com/fleet.json",
		"HTTP_ADDR":      ":3000",
		"GRPC_ADDR":      ":5050",
		"NATS_URL":       "nats://localhost:4222",
		"STORE":          "postgres",
		"DATABASE_URL":   "postgres://db:5432/fleet",
		"TICK_INTERVAL":  "250ms",
		"TICK_STEP":      "30s",
		"SYNC_INTERVAL":  "5m",
		"SYNC_GIT_REPO":  "/srv/archive",
		"CHECKPOINT_KEY": "demo",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":3000" || cfg.GRPCAddr != ":5050" || cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.TickInterval != 250*time.Millisecond || cfg.TickStep != 30*time.Second {
		t.Errorf("tick = %v / %v", cfg.TickInterval, cfg.TickStep)
	}
	if !cfg.SyncEnabled() || cfg.SyncInterval != 5*time.Minute {
		t.Errorf("sync enabled = %v interval = %v", cfg.SyncEnabled(), cfg.SyncInterval)
	}
	if cfg.CheckpointKey != "demo" {
		t.Errorf("checkpoint key = %q", cfg.CheckpointKey)
	}
}

func TestLoad_Errors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"MissingDataSource", map[string]string{}, "DATA_URL or"},
		{"PostgresWithoutURL", map[string]string{"DATA_FILE": "f", "STORE": "postgres"}, "DATABASE_URL"},
		{"SQLiteWithoutPath", map[string]string{"DATA_FILE": "f", "STORE": "sqlite"}, "SQLITE_PATH"},
		{"S3WithoutBucket", map[string]string{"DATA_FILE": "f", "STORE": "s3"}, "S3_BUCKET"},
		{"UnknownStore", map[string]string{"DATA_FILE": "f", "STORE": "redis"}, "unknown store"},
		{"BadDuration", map[string]string{"DATA_FILE": "f", "TICK_INTERVAL": "soon"}, "parse env"},
		{"ZeroStep", map[string]string{"DATA_FILE": "f", "TICK_STEP": "0s"}, "TICK_STEP"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clearAllEnv(t)
			setEnv(t, tc.env)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
