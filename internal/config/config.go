// Package config provides centralized configuration for the savanna server.
// Values come from the environment, then an optional .env.local file, then
// defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultProcessID is the campaign's submission process.
const DefaultProcessID = "K5BulgZMCI0YDANG5YXlOpl0lGjY3gpwCL08EwTdAKc"

// Transport kinds.
const (
	TransportHTTP   = "http"
	TransportMemory = "memory"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite gallery cache.
	DBPath string

	LogLevel  string
	LogFormat string

	// ProcessID identifies the remote process that records submissions.
	ProcessID string

	// Transport selects "http" (real units) or "memory" (in-process fake).
	Transport string

	MUURL      string
	CUURL      string
	SUURL      string
	GatewayURL string

	// DirectTimeout bounds the direct result lookup.
	DirectTimeout time.Duration

	// PollInterval is the pause after each unsuccessful poll.
	PollInterval time.Duration
	PollAttempts int
	PollLimit    int

	// CacheTTL is how long a cached gallery stays fresh.
	CacheTTL time.Duration

	// WorkerInterval is the polling interval for the confirmation worker.
	WorkerInterval    time.Duration
	WorkerConcurrency int

	// HTTPTimeout is the timeout for outgoing HTTP requests.
	HTTPTimeout time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// WalletAddress fixes the dev wallet address; empty means random.
	WalletAddress string

	// WalletKeyfile is the JWK keyfile that signs submissions sent over http.
	WalletKeyfile string
}

// Load reads configuration from the environment and ./.env.local.
func Load() (Config, error) {
	return LoadFrom(".env.local")
}

// LoadFrom reads configuration from the environment and the given dotenv file.
// A missing file is not an error; real environment variables take precedence.
func LoadFrom(envFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "savanna.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("PROCESS_ID", DefaultProcessID)
	v.SetDefault("TRANSPORT", TransportMemory)
	v.SetDefault("MU_URL", "https://mu.ao-testnet.xyz")
	v.SetDefault("CU_URL", "https://cu.ao-testnet.xyz")
	v.SetDefault("SU_URL", "https://su44.ao-testnet.xyz")
	v.SetDefault("GATEWAY_URL", "https://arweave.net")
	v.SetDefault("DIRECT_TIMEOUT", "90s")
	v.SetDefault("POLL_INTERVAL", "10s")
	v.SetDefault("POLL_ATTEMPTS", 6)
	v.SetDefault("POLL_LIMIT", 5)
	v.SetDefault("CACHE_TTL", "30m")
	v.SetDefault("WORKER_INTERVAL", "1s")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("HTTP_TIMEOUT", "60s")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("WALLET_ADDRESS", "")
	v.SetDefault("WALLET_KEYFILE", "")

	if envFile != "" {
		if err := loadEnvFile(v, envFile); err != nil {
			return Config{}, err
		}
	}

	v.AutomaticEnv()

	cfg := Config{
		Port:              v.GetString("PORT"),
		DBPath:            v.GetString("DB_PATH"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:         strings.ToLower(v.GetString("LOG_FORMAT")),
		ProcessID:         v.GetString("PROCESS_ID"),
		Transport:         strings.ToLower(v.GetString("TRANSPORT")),
		MUURL:             v.GetString("MU_URL"),
		CUURL:             v.GetString("CU_URL"),
		SUURL:             v.GetString("SU_URL"),
		GatewayURL:        v.GetString("GATEWAY_URL"),
		DirectTimeout:     duration(v, "DIRECT_TIMEOUT", 90*time.Second),
		PollInterval:      duration(v, "POLL_INTERVAL", 10*time.Second),
		PollAttempts:      integer(v, "POLL_ATTEMPTS", 6),
		PollLimit:         integer(v, "POLL_LIMIT", 5),
		CacheTTL:          duration(v, "CACHE_TTL", 30*time.Minute),
		WorkerInterval:    duration(v, "WORKER_INTERVAL", time.Second),
		WorkerConcurrency: integer(v, "WORKER_CONCURRENCY", 4),
		HTTPTimeout:       duration(v, "HTTP_TIMEOUT", 60*time.Second),
		CORSOrigin:        v.GetString("CORS_ORIGIN"),
		WalletAddress:     v.GetString("WALLET_ADDRESS"),
		WalletKeyfile:     v.GetString("WALLET_KEYFILE"),
	}
	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.ProcessID == "" {
		errs = append(errs, errors.New("PROCESS_ID is required"))
	}
	if c.Transport != TransportHTTP && c.Transport != TransportMemory {
		errs = append(errs, fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportMemory, c.Transport))
	}
	if c.Transport == TransportHTTP && c.WalletKeyfile == "" {
		errs = append(errs, errors.New("WALLET_KEYFILE is required when TRANSPORT is http"))
	}
	if c.PollAttempts < 0 {
		errs = append(errs, errors.New("POLL_ATTEMPTS must not be negative"))
	}
	return errors.Join(errs...)
}

// UseMemoryTransport returns true when submissions stay in-process.
func (c Config) UseMemoryTransport() bool {
	return c.Transport == TransportMemory
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadEnvFile merges a dotenv file into v. Keys already present in the
// process environment are left to AutomaticEnv.
func loadEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func integer(v *viper.Viper, key string, fallback int) int {
	raw := v.GetString(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
