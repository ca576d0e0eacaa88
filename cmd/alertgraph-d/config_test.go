package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cwd, _ := os.Getwd()
	if cfg.StoreKind != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.StoreKind)
	}
	if cfg.DBPath != filepath.Join(cwd, "alertgraph.db") {
		t.Errorf("unexpected db path %s", cfg.DBPath)
	}
	if cfg.Addr != defaultAddr {
		t.Errorf("expected %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.RedisAddr != "" || cfg.CatalogPath != "" {
		t.Errorf("expected redis and catalog disabled, got %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.LogLevel)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name: "json store from flag",
			args: []string{"-store", "json", "-data", "alerts.json"},
		},
		{
			name:    "json store from env",
			envVars: map[string]string{"ALERTGRAPH_STORE": "file"},
		},
		{
			name:        "unknown store",
			args:        []string{"-store", "postgres"},
			expectError: true,
			errorSubstr: "unsupported store",
		},
		{
			name:        "empty addr",
			args:        []string{"-addr", " "},
			expectError: true,
			errorSubstr: "addr cannot be empty",
		},
		{
			name:        "invalid log level",
			args:        []string{"-log-level", "loud"},
			expectError: true,
			errorSubstr: "invalid log level",
		},
		{
			name:        "invalid log level from env",
			envVars:     map[string]string{"ALERTGRAPH_LOG_LEVEL": "loud"},
			expectError: true,
			errorSubstr: "invalid log level",
		},
		{
			name:        "tls cert without key",
			args:        []string{"-tls-cert", "cert.pem"},
			expectError: true,
			errorSubstr: "must be set together",
		},
		{
			name:        "unknown flag",
			args:        []string{"-policy", "x"},
			expectError: true,
			errorSubstr: "flag provided but not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(tt.args)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_EnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("ALERTGRAPH_PORT", "9999")
	t.Setenv("ALERTGRAPH_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig([]string{"-redis", "redis:6380", "-catalog", "/etc/alertgraph/catalog.json", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("expected port from env, got %s", cfg.Addr)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Errorf("expected flag to override env, got %s", cfg.RedisAddr)
	}
	if cfg.CatalogPath != "/etc/alertgraph/catalog.json" {
		t.Errorf("absolute paths must be kept, got %s", cfg.CatalogPath)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath(" data.json ", "/srv"); got != "/srv/data.json" {
		t.Errorf("unexpected resolved path %q", got)
	}
	if got := resolvePath("", "/srv"); got != "" {
		t.Errorf("expected empty path to stay empty, got %q", got)
	}
}
