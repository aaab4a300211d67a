// Package config provides configuration for gamemetrics.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables, e.g. GAMEMETRICS_RCON_PASSWORD.
const EnvPrefix = "gamemetrics"

// Defaults.
const (
	DefaultMetricsPort   = 8080
	DefaultLogLevel      = "info"
	DefaultRCONHost      = "localhost"
	DefaultRCONPort      = 27015
	DefaultReadTimeout   = 13 * time.Second
	DefaultWriteTimeout  = 37 * time.Second
	DefaultRetryInterval = 5 * time.Second
)

// TelemetryConfig configures the optional self-telemetry HTTP server.
type TelemetryConfig struct {
	// Host is the listen address. Empty means all interfaces.
	Host string `yaml:"host" mapstructure:"host"`
	// Port is the listen port. 0 disables the telemetry server.
	Port int `yaml:"port" mapstructure:"port"`
}

// Enabled reports whether the telemetry server should run.
func (t TelemetryConfig) Enabled() bool {
	return t.Port != 0
}

// Addr returns the telemetry listen address.
func (t TelemetryConfig) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// RCONConfig configures the connection to the game server's remote console.
type RCONConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// Password should be supplied through GAMEMETRICS_RCON_PASSWORD so it does
	// not show up in the process list.
	Password      string        `yaml:"password" mapstructure:"password"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`
}

// Address returns host:port of the RCON listener.
func (r RCONConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Config is the root configuration.
type Config struct {
	// MetricsHost is the scrape listen address. Empty means all interfaces.
	MetricsHost string `yaml:"metrics_host" mapstructure:"metrics_host"`
	// MetricsPort is the scrape listen port (1-65535).
	MetricsPort int `yaml:"metrics_port" mapstructure:"metrics_port"`
	// LogPath is the path to the log file (JSON, rotated via lumberjack). Empty logs to stderr.
	LogPath string `yaml:"log_path" mapstructure:"log_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel  string          `yaml:"log_level" mapstructure:"log_level"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	RCON      RCONConfig      `yaml:"rcon" mapstructure:"rcon"`
}

// MetricsAddr returns the scrape listen address.
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort(c.MetricsHost, strconv.Itoa(c.MetricsPort))
}

// Level returns the parsed log level.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// SetDefaults registers every key with its default on v so environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("metrics_host", "")
	v.SetDefault("metrics_port", DefaultMetricsPort)
	v.SetDefault("log_path", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("telemetry.host", "")
	v.SetDefault("telemetry.port", 0)
	v.SetDefault("rcon.host", DefaultRCONHost)
	v.SetDefault("rcon.port", DefaultRCONPort)
	v.SetDefault("rcon.password", "")
	v.SetDefault("rcon.read_timeout", DefaultReadTimeout)
	v.SetDefault("rcon.write_timeout", DefaultWriteTimeout)
	v.SetDefault("rcon.retry_interval", DefaultRetryInterval)
}

// Load builds the configuration from, in increasing precedence: defaults, the
// YAML file at path (skipped when empty), GAMEMETRICS_* environment variables
// and flags already bound on v.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		m, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfigMap(m); err != nil {
			return nil, fmt.Errorf("merge %s: %w", path, err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return c, c.Validate()
}

func readFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path is user-configured
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	m := make(map[string]any)
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return m, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be 1-65535, got %d", c.MetricsPort)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Telemetry.Port < 0 || c.Telemetry.Port > 65535 {
		return fmt.Errorf("telemetry.port must be 0-65535, got %d", c.Telemetry.Port)
	}
	if c.Telemetry.Enabled() && c.Telemetry.Port == c.MetricsPort && c.Telemetry.Host == c.MetricsHost {
		return fmt.Errorf("telemetry.port must differ from metrics_port")
	}
	return c.RCON.Validate()
}

// Validate validates the RCON configuration.
func (r RCONConfig) Validate() error {
	if r.Host == "" {
		return errors.New("rcon.host is required")
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("rcon.port must be 1-65535, got %d", r.Port)
	}
	if r.Password == "" {
		return errors.New("rcon.password is required")
	}
	if r.ReadTimeout <= 0 {
		return fmt.Errorf("rcon.read_timeout must be positive, got %s", r.ReadTimeout)
	}
	if r.WriteTimeout <= 0 {
		return fmt.Errorf("rcon.write_timeout must be positive, got %s", r.WriteTimeout)
	}
	if r.RetryInterval <= 0 {
		return fmt.Errorf("rcon.retry_interval must be positive, got %s", r.RetryInterval)
	}
	return nil
}
