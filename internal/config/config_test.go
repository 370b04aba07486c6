package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env.local")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/.env.local")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ProcessID != DefaultProcessID {
		t.Errorf("ProcessID = %q, want default", cfg.ProcessID)
	}
	if cfg.DirectTimeout != 90*time.Second {
		t.Errorf("DirectTimeout = %v, want 90s", cfg.DirectTimeout)
	}
	if cfg.PollInterval != 10*time.Second || cfg.PollAttempts != 6 || cfg.PollLimit != 5 {
		t.Errorf("poll = %v/%d/%d, want 10s/6/5", cfg.PollInterval, cfg.PollAttempts, cfg.PollLimit)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.CacheTTL)
	}
	if !cfg.UseMemoryTransport() {
		t.Error("default transport should be memory")
	}
}

func TestLoadFrom_EnvFile(t *testing.T) {
	path := writeEnvFile(t, `# comment line
PORT=9090
TRANSPORT="http"
WALLET_KEYFILE=wallet.json
POLL_ATTEMPTS=3
DIRECT_TIMEOUT=2s
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want http", cfg.Transport)
	}
	if cfg.WalletKeyfile != "wallet.json" {
		t.Errorf("WalletKeyfile = %q, want wallet.json", cfg.WalletKeyfile)
	}
	if cfg.PollAttempts != 3 {
		t.Errorf("PollAttempts = %d, want 3", cfg.PollAttempts)
	}
	if cfg.DirectTimeout != 2*time.Second {
		t.Errorf("DirectTimeout = %v, want 2s", cfg.DirectTimeout)
	}
}

func TestLoadFrom_RealEnvTakesPrecedence(t *testing.T) {
	path := writeEnvFile(t, "PORT=from-file\n")
	t.Setenv("PORT", "from-env")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "from-env" {
		t.Errorf("Port = %q, want from-env", cfg.Port)
	}
}

func TestLoadFrom_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("WORKER_CONCURRENCY", "many")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want fallback 10s", cfg.PollInterval)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Errorf("WorkerConcurrency = %d, want fallback 4", cfg.WorkerConcurrency)
	}
}

func TestLoadFrom_RejectsUnknownTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "carrier-pigeon")
	if _, err := LoadFrom(""); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestLoadFrom_HTTPRequiresKeyfile(t *testing.T) {
	t.Setenv("TRANSPORT", "http")
	_, err := LoadFrom("")
	if err == nil || !strings.Contains(err.Error(), "WALLET_KEYFILE") {
		t.Fatalf("err = %v, want WALLET_KEYFILE error", err)
	}

	t.Setenv("WALLET_KEYFILE", "wallet.json")
	if _, err := LoadFrom(""); err != nil {
		t.Fatalf("LoadFrom with keyfile: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
