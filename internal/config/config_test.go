package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "launcher.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.URL != "http://localhost:8000" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if !cfg.Launcher.AutoUpdate || cfg.Launcher.RememberMe || cfg.Launcher.Language != "en" {
		t.Errorf("unexpected launcher defaults: %+v", cfg.Launcher)
	}
	if cfg.Download.GetChunkSize() != 32*1024 || cfg.Download.GetRateLimit() != 0 {
		t.Errorf("unexpected download defaults: %+v", cfg.Download)
	}
	if cfg.Download.GetClaimTimeout() != 2*time.Minute {
		t.Errorf("ClaimTimeout = %v", cfg.Download.GetClaimTimeout())
	}
	if cfg.Maintenance.GetFailedJobMaxAge() != 7*24*time.Hour {
		t.Errorf("FailedJobMaxAge = %v", cfg.Maintenance.GetFailedJobMaxAge())
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoad_File(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
server:
  url: https://sof.example.com
  timeout: 10s
launcher:
  data_dir: `+dataDir+`
  remember_me: true
  language: de
download:
  rate_limit_kbps: 256
  max_attempts: 3
  claim_timeout: 45s
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.URL != "https://sof.example.com" || cfg.Server.GetTimeout() != 10*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if !cfg.Launcher.RememberMe || cfg.Launcher.Language != "de" {
		t.Errorf("unexpected launcher config: %+v", cfg.Launcher)
	}
	if got := cfg.Download.GetRateLimit(); got != 256*1024 {
		t.Errorf("GetRateLimit() = %d", got)
	}
	if cfg.Download.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", cfg.Download.MaxAttempts)
	}
	if got := cfg.Download.GetClaimTimeout(); got != 45*time.Second {
		t.Errorf("GetClaimTimeout() = %v", got)
	}
	if got := cfg.Launcher.GetInstallPath(); got != filepath.Join(dataDir, "game") {
		t.Errorf("GetInstallPath() = %q", got)
	}
	if got := cfg.GetDatabasePath(); got != filepath.Join(dataDir, "launcher.db") {
		t.Errorf("GetDatabasePath() = %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"relative server url", "server:\n  url: localhost:8000\n", "server.url"},
		{"bad duration", "maintenance:\n  interval: often\n", "maintenance.interval"},
		{"bad claim timeout", "download:\n  claim_timeout: soon\n", "download.claim_timeout"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad language", "launcher:\n  language: xx\n", "launcher.language"},
		{"zero attempts", "download:\n  max_attempts: 0\n", "download.max_attempts"},
		{"malformed yaml", "server: [\n", "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "launcher.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.Set("launcher.remember_me", "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cfg.Set("server.url", "https://play.example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !cfg.Launcher.RememberMe || cfg.Server.URL != "https://play.example.com" {
		t.Errorf("settings not applied: %+v %+v", cfg.Launcher, cfg.Server)
	}

	if err := cfg.Set("server.url", "not a url"); err == nil {
		t.Error("expected validation error")
	}
	if cfg.Server.URL != "https://play.example.com" {
		t.Errorf("invalid value should be rolled back, got %q", cfg.Server.URL)
	}
	if err := cfg.Set("database.path", "/tmp/x.db"); err == nil {
		t.Error("expected error for a key that cannot be set")
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	if !reloaded.Launcher.RememberMe || reloaded.Server.URL != "https://play.example.com" {
		t.Errorf("saved settings not reloaded: %+v %+v", reloaded.Launcher, reloaded.Server)
	}
}

func TestSettableKeys(t *testing.T) {
	keys := SettableKeys()
	if len(keys) == 0 {
		t.Fatal("no settable keys")
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}
