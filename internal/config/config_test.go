package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/craftbay/auction-service/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
database:
  host: "db.example.com"
  port: 5433
  user: "auctiond"
  password: "secret"
  dbname: "auctions"
  sslmode: "require"
  driver: "postgres"
server:
  port: 9090
redis:
  enabled: true
  addr: "cache.example.com:6379"
auction:
  max_bid_retries: 5
  sweep_interval: 10s
telemetry:
  service_name: "my-auctiond"
  otlp_endpoint: "localhost:4318"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if !cfg.Redis.Enabled {
					t.Error("expected redis to be enabled")
				}
				if cfg.Auction.MaxBidRetries != 5 {
					t.Errorf("got max_bid_retries %d, want %d", cfg.Auction.MaxBidRetries, 5)
				}
				if cfg.Auction.SweepInterval != 10*time.Second {
					t.Errorf("got sweep_interval %s, want %s", cfg.Auction.SweepInterval, 10*time.Second)
				}
				if cfg.Telemetry.ServiceName != "my-auctiond" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "my-auctiond")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
server:
  port: 8081
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Host != "localhost" {
					t.Errorf("got db host %q, want %q", cfg.Database.Host, "localhost")
				}
				if cfg.Database.Port != 5432 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5432)
				}
				if cfg.Auction.MaxBidRetries != 3 {
					t.Errorf("got max_bid_retries %d, want %d", cfg.Auction.MaxBidRetries, 3)
				}
				if cfg.Redis.Enabled {
					t.Error("expected redis to default to disabled")
				}
				if cfg.Telemetry.ServiceName != "auctiond" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "auctiond")
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    `{{{invalid`,
			wantErr: true,
		},
		{
			name: "memory driver accepted",
			yaml: `
database:
  driver: "memory"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "memory" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "memory")
				}
			},
		},
		{
			name: "invalid driver rejected",
			yaml: `
database:
  driver: "mongodb"
`,
			wantErr: true,
		},
		{
			name: "zero bid retries rejected",
			yaml: `
auction:
  max_bid_retries: 0
`,
			wantErr: true,
		},
		{
			name: "negative sweep interval rejected",
			yaml: `
auction:
  sweep_interval: -5s
`,
			wantErr: true,
		},
		{
			name:    "default driver is postgres",
			yaml:    `{}`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Database.Driver != "postgres" {
					t.Errorf("got driver %q, want %q", cfg.Database.Driver, "postgres")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		DBName:   "testdb",
		SSLMode:  "disable",
	}
	want := "host=localhost port=5432 user=user password=pass dbname=testdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
