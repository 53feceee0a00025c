package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty db path",
			mutate: func(cfg *Config) {
				cfg.DBPath = ""
			},
			wantErr: "db path",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "base url without host",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "unknown fetcher",
			mutate: func(cfg *Config) {
				cfg.Fetcher = "carrier-pigeon"
			},
			wantErr: "fetcher",
		},
		{
			name: "zero workers",
			mutate: func(cfg *Config) {
				cfg.Workers = 0
			},
			wantErr: "workers",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.Delay = -1 * time.Second
			},
			wantErr: "delay",
		},
		{
			name: "zero nav timeout",
			mutate: func(cfg *Config) {
				cfg.NavTimeout = 0
			},
			wantErr: "nav timeout",
		},
		{
			name: "zero wait timeout",
			mutate: func(cfg *Config) {
				cfg.WaitTimeout = 0
			},
			wantErr: "wait timeout",
		},
		{
			name: "negative retries",
			mutate: func(cfg *Config) {
				cfg.MaxRetries = -1
			},
			wantErr: "max retries",
		},
		{
			name: "retry delay above max",
			mutate: func(cfg *Config) {
				cfg.RetryDelay = 30 * time.Second
				cfg.RetryDelayMax = 10 * time.Second
			},
			wantErr: "retry delay",
		},
		{
			name: "zero chunk size",
			mutate: func(cfg *Config) {
				cfg.ChunkSize = 0
			},
			wantErr: "chunk size",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty user agent",
			mutate: func(cfg *Config) {
				cfg.UserAgent = ""
			},
			wantErr: "user agent",
		},
		{
			name: "empty next selector",
			mutate: func(cfg *Config) {
				cfg.NextSelector = ""
			},
			wantErr: "next-page selector",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultConfig()
	if cfg.BaseURL != want.BaseURL {
		t.Fatalf("base url = %q, want %q", cfg.BaseURL, want.BaseURL)
	}
	if cfg.Workers != want.Workers {
		t.Fatalf("workers = %d, want %d", cfg.Workers, want.Workers)
	}
	if cfg.MaxPages != want.MaxPages {
		t.Fatalf("max pages = %d, want %d", cfg.MaxPages, want.MaxPages)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STATSCRAPE_WORKERS", "7")
	t.Setenv("STATSCRAPE_FETCHER", "STATIC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 7 {
		t.Fatalf("workers = %d, want 7", cfg.Workers)
	}
	if cfg.Fetcher != FetcherStatic {
		t.Fatalf("fetcher = %q, want %q", cfg.Fetcher, FetcherStatic)
	}
}

func TestHost(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Host(); got != "www.nba.com" {
		t.Fatalf("host = %q, want www.nba.com", got)
	}
}
