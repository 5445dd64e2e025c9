package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Scrapers    ScrapersConfig  `toml:"scrapers"`
	Dedup       DedupConfig     `toml:"dedup"`
	Logging     LoggingConfig   `toml:"logging"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ScrapersConfig controls how scraper child processes are launched and
// supervised.
type ScrapersConfig struct {
	Runtime            string   `toml:"runtime"`              // Executable used to run scraper scripts (default: "node")
	Dir                string   `toml:"dir"`                  // Working directory for spawned scrapers
	KillGracePeriod    string   `toml:"kill_grace_period"`    // e.g. "5s" - SIGTERM to SIGKILL escalation window
	Retention          string   `toml:"retention"`            // e.g. "24h" - terminal process record retention
	CleanupSchedule    string   `toml:"cleanup_schedule"`     // Cron schedule for process table eviction
	ArtifactDirs       []string `toml:"artifact_dirs"`        // Directories swept for transient artifacts after success
	ArtifactDateLayout string   `toml:"artifact_date_layout"` // Go time layout matched inside artifact filenames
}

// DedupConfig configures the handoff coordinator and its pipeline consumer.
type DedupConfig struct {
	Enabled                 bool   `toml:"enabled"`
	ProcessingTimeout       string `toml:"processing_timeout"` // e.g. "30s" - bound on each forwarded event
	MaxRetries              int    `toml:"max_retries"`
	CircuitBreakerThreshold int    `toml:"circuit_breaker_threshold"` // Consecutive failures before the breaker opens
	CircuitBreakerCooldown  string `toml:"circuit_breaker_cooldown"`  // Open-state duration before a half-open probe
	EnableFallback          bool   `toml:"enable_fallback"`           // Queue events for later when the breaker is open
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// WebSocketConfig controls event broadcasting to browser clients.
type WebSocketConfig struct {
	AllowedEvents     []string          `toml:"allowed_events"`     // Whitelist of events to broadcast (empty = allow all)
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // Per-event minimum broadcast interval, e.g. "process:output" = "250ms"
}

// NewDefaultConfig returns the configuration defaults applied before any file
// or environment override.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/colligo",
			},
		},
		Scrapers: ScrapersConfig{
			Runtime:            "node",
			Dir:                "./scrapers",
			KillGracePeriod:    "5s",
			Retention:          "24h",
			CleanupSchedule:    "0 * * * *", // Hourly
			ArtifactDateLayout: "2006-01-02",
		},
		Dedup: DedupConfig{
			Enabled:                 true,
			ProcessingTimeout:       "30s",
			MaxRetries:              3,
			CircuitBreakerThreshold: 5,
			CircuitBreakerCooldown:  "60s",
			EnableFallback:          true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		WebSocket: WebSocketConfig{
			ThrottleIntervals: map[string]string{
				"process:output": "250ms",
			},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("COLLIGO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if dir := os.Getenv("COLLIGO_SCRAPERS_DIR"); dir != "" {
		config.Scrapers.Dir = dir
	}
	if runtime := os.Getenv("COLLIGO_SCRAPERS_RUNTIME"); runtime != "" {
		config.Scrapers.Runtime = runtime
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// KillGracePeriod returns the parsed SIGTERM escalation window, falling back
// to 5 seconds on a malformed value.
func (c *ScrapersConfig) KillGracePeriodDuration() time.Duration {
	return parseDurationOr(c.KillGracePeriod, 5*time.Second)
}

// RetentionDuration returns the parsed terminal-record retention window,
// falling back to 24 hours on a malformed value.
func (c *ScrapersConfig) RetentionDuration() time.Duration {
	return parseDurationOr(c.Retention, 24*time.Hour)
}

// ProcessingTimeoutDuration returns the parsed per-event forwarding bound.
func (c *DedupConfig) ProcessingTimeoutDuration() time.Duration {
	return parseDurationOr(c.ProcessingTimeout, 30*time.Second)
}

// CooldownDuration returns the parsed open-state duration before a half-open
// probe is allowed.
func (c *DedupConfig) CooldownDuration() time.Duration {
	return parseDurationOr(c.CircuitBreakerCooldown, 60*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true when running with a production environment value
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
