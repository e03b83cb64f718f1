package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the query daemon
type Config struct {
	Server       ServerConfig
	State        StateConfig
	EventConsole EventConsoleConfig
	RRD          RRDConfig
	Auth         AuthConfig
	Log          LogConfig
	Metrics      MetricsConfig
}

type ServerConfig struct {
	SocketPath      string // Unix socket the query protocol listens on
	MaxResponseSize int64  // Replies larger than this are rejected
	IdleTimeout     int    // Seconds a keep-alive connection may sit idle
}

type StateConfig struct {
	SnapshotPath string // JSON snapshot of the monitoring state to serve
}

type EventConsoleConfig struct {
	Enabled        bool
	SocketPath     string // Unix socket of the event daemon
	ConnectTimeout int    // Dial/read deadline in seconds
}

type RRDConfig struct {
	Enabled      bool
	DataDir      string // Directory holding the per-host RRD files
	RRDToolPath  string // rrdtool binary, resolved via PATH when bare
	CachedSocket string // rrdcached socket; empty disables flushing
}

type AuthConfig struct {
	ServiceAuthorization string // "loose" or "strict"
	GroupAuthorization   string // "loose" or "strict"
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string // HTTP listen address for /metrics
}

// Load loads configuration from environment and config file
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LIVEQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("livequery")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/livequery/")
	v.AddConfigPath("$HOME/.livequery/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	maxResponseSize, err := ParseSize(v.GetString("server.max_response_size"))
	if err != nil {
		return nil, fmt.Errorf("invalid server.max_response_size: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			SocketPath:      v.GetString("server.socket_path"),
			MaxResponseSize: maxResponseSize,
			IdleTimeout:     v.GetInt("server.idle_timeout"),
		},
		State: StateConfig{
			SnapshotPath: v.GetString("state.snapshot_path"),
		},
		EventConsole: EventConsoleConfig{
			Enabled:        v.GetBool("event_console.enabled"),
			SocketPath:     v.GetString("event_console.socket_path"),
			ConnectTimeout: v.GetInt("event_console.connect_timeout"),
		},
		RRD: RRDConfig{
			Enabled:      v.GetBool("rrd.enabled"),
			DataDir:      v.GetString("rrd.data_dir"),
			RRDToolPath:  v.GetString("rrd.rrdtool_path"),
			CachedSocket: v.GetString("rrd.cached_socket"),
		},
		Auth: AuthConfig{
			ServiceAuthorization: v.GetString("auth.service_authorization"),
			GroupAuthorization:   v.GetString("auth.group_authorization"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
		},
	}

	if err := cfg.Auth.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c AuthConfig) validate() error {
	for key, val := range map[string]string{
		"auth.service_authorization": c.ServiceAuthorization,
		"auth.group_authorization":   c.GroupAuthorization,
	} {
		if val != "loose" && val != "strict" {
			return fmt.Errorf("invalid %s %q: use 'loose' or 'strict'", key, val)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.socket_path", "./run/livequery.sock")
	v.SetDefault("server.max_response_size", "100MB")
	v.SetDefault("server.idle_timeout", 300)

	// State defaults
	v.SetDefault("state.snapshot_path", "./data/state.json")

	// Event console defaults
	v.SetDefault("event_console.enabled", false)
	v.SetDefault("event_console.socket_path", "./run/eventd.sock")
	v.SetDefault("event_console.connect_timeout", 10)

	// RRD defaults
	v.SetDefault("rrd.enabled", false)
	v.SetDefault("rrd.data_dir", "./data/rrd")
	v.SetDefault("rrd.rrdtool_path", "rrdtool")
	v.SetDefault("rrd.cached_socket", "")

	// Auth defaults
	v.SetDefault("auth.service_authorization", "loose")
	v.SetDefault("auth.group_authorization", "loose")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", "127.0.0.1:9405")
}

// ParseSize parses a human-readable size string (e.g., "1GB", "500MB", "100KB") to bytes.
// Supports: B, KB, MB, GB (case-insensitive).
// Returns the size in bytes or an error if the format is invalid.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Define multipliers (order matters: check longer suffixes first)
	type unitInfo struct {
		suffix     string
		multiplier int64
	}
	units := []unitInfo{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	// Try each suffix from longest to shortest
	for _, unit := range units {
		if strings.HasSuffix(sizeStr, unit.suffix) {
			numStr := strings.TrimSuffix(sizeStr, unit.suffix)
			numStr = strings.TrimSpace(numStr)

			// Ensure the remaining string is a valid number (no trailing non-numeric chars)
			var num float64
			var trailing string
			n, _ := fmt.Sscanf(numStr, "%f%s", &num, &trailing)
			if n == 0 {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			if trailing != "" {
				// There's extra text after the number - likely an unrecognized unit like "T" in "1TB"
				return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
			}
			if num < 0 {
				return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	// Try parsing as plain number (bytes)
	var num int64
	var trailing string
	n, _ := fmt.Sscanf(sizeStr, "%d%s", &num, &trailing)
	if n == 0 || trailing != "" {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}
