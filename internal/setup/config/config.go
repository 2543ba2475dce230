package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentAPIVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig `koanf:"common"`
	API    APIConfig    `koanf:"api"`
}

// CommonConfig contains configuration shared between the server and the CLI.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Telemetry  Telemetry  `koanf:"telemetry"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Require TLS for the connection.
	SSL bool `koanf:"ssl"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
	// Queries slower than this are logged as warnings (0 disables).
	SlowQueryMs int `koanf:"slow_query_ms"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Disable client side caching.
	DisableCache bool `koanf:"disable_cache"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Uptrace DSN. Tracing is disabled when empty.
	UptraceDSN string `koanf:"uptrace_dsn"`
	// Service name reported with spans.
	ServiceName string `koanf:"service_name"`
	// Deployment environment reported with spans.
	Environment string `koanf:"environment"`
}

// APIConfig contains GraphQL server configuration.
type APIConfig struct {
	// Version of the api config.
	Version    int       `koanf:"version"`
	Server     Server    `koanf:"server"`
	Session    Session   `koanf:"session"`
	RateLimit  RateLimit `koanf:"rate_limit"`
	IP         IPConfig  `koanf:"ip"`
	Playground bool      `koanf:"playground"`
}

// Server contains HTTP listener configuration.
type Server struct {
	// Host to bind to.
	Host string `koanf:"host"`
	// Port to listen on.
	Port int `koanf:"port"`
	// Read timeout in seconds.
	ReadTimeout int `koanf:"read_timeout"`
	// Write timeout in seconds.
	WriteTimeout int `koanf:"write_timeout"`
	// Idle timeout in seconds.
	IdleTimeout int `koanf:"idle_timeout"`
	// Graceful shutdown timeout in seconds.
	ShutdownTimeout int `koanf:"shutdown_timeout"`
}

// Session contains session cookie configuration.
type Session struct {
	// Name of the session cookie.
	CookieName string `koanf:"cookie_name"`
	// Session lifetime in hours.
	TTLHours int `koanf:"ttl_hours"`
}

// RateLimit contains per-IP rate limiting configuration.
type RateLimit struct {
	// Requests per second allowed per client.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	// Burst size allowed per client.
	BurstSize int `koanf:"burst_size"`
	// Number of rejected requests before a client is blocked.
	StrikeLimit int `koanf:"strike_limit"`
	// Block duration in seconds.
	BlockDuration int `koanf:"block_duration"`
	// Milliseconds between shared block lookups for the same client. Zero means one second.
	SharedBlockRecheck int `koanf:"shared_block_recheck_ms"`
}

// IPConfig contains client IP detection configuration.
type IPConfig struct {
	// Read client IPs from headers set by trusted proxies.
	EnableHeaderCheck bool `koanf:"enable_header_check"`
	// CIDR ranges of trusted proxies.
	TrustedProxies []string `koanf:"trusted_proxies"`
	// Headers to check, in order.
	CustomHeaders []string `koanf:"custom_headers"`
	// Accept private and loopback addresses.
	AllowLocalIPs bool `koanf:"allow_local_ips"`
}

// configFiles lists the files that make up a full configuration.
var configFiles = []string{"common", "api"}

// LoadConfig loads the configuration from the first search path that has each file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadConfigFrom([]string{
		".forum",
		homeDir + "/.forum/config",
		"/etc/forum/config",
		"config",
		".",
	})
}

// LoadConfigFrom loads the configuration from the given search paths.
func LoadConfigFrom(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	var usedConfigPath string

	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			sub := koanf.New(".")
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := sub.Load(file.Provider(configPath), toml.Parser()); err != nil {
				continue
			}

			if err := k.MergeAt(sub, configName); err != nil {
				return nil, "", fmt.Errorf("failed to merge %s.toml: %w", configName, err)
			}

			configLoaded = true
			if usedConfigPath == "" {
				usedConfigPath = path
			}

			break
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("api", config.API.Version, CurrentAPIVersion); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/pointboard/forum/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
