package main

import (
	"errors"
	"fmt"

	"github.com/jsirianni/gamemetrics/config"
	"github.com/jsirianni/gamemetrics/internal/collector"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath string
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"metrics-host":        "metrics_host",
	"metrics-port":        "metrics_port",
	"log-path":            "log_path",
	"log-level":           "log_level",
	"telemetry-host":      "telemetry.host",
	"telemetry-port":      "telemetry.port",
	"rcon-host":           "rcon.host",
	"rcon-port":           "rcon.port",
	"rcon-password":       "rcon.password",
	"rcon-read-timeout":   "rcon.read_timeout",
	"rcon-write-timeout":  "rcon.write_timeout",
	"rcon-retry-interval": "rcon.retry_interval",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gamemetrics",
		Short:         "Expose live game server player counts as Prometheus metrics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errors.New("a game sub-command is required")
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to an optional YAML configuration file")
	pf.String("metrics-host", "", "Address to expose Prometheus metrics on; empty binds all interfaces")
	pf.IntP("metrics-port", "m", config.DefaultMetricsPort, "Port to expose Prometheus metrics on")
	pf.String("log-path", "", "Path to the log file; logs to stderr when empty")
	pf.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.String("telemetry-host", "", "Address of the exporter's own metrics listener")
	pf.Int("telemetry-port", 0, "Port of the exporter's own metrics listener; 0 disables it")

	for _, name := range collector.Names() {
		variant, _ := collector.Lookup(name)
		cmd.AddCommand(newGameCmd(opts, variant))
	}
	cmd.AddCommand(newExecCmd(opts))
	return cmd
}

func addRCONFlags(fs *pflag.FlagSet) {
	fs.String("rcon-host", config.DefaultRCONHost, "Host of the game server's RCON listener")
	fs.Int("rcon-port", config.DefaultRCONPort, "Port to be used to connect to the game server via RCON")
	fs.String("rcon-password", "", "Password used for the RCON connection. Prefer GAMEMETRICS_RCON_PASSWORD")
	fs.Duration("rcon-read-timeout", config.DefaultReadTimeout, "RCON socket read timeout")
	fs.Duration("rcon-write-timeout", config.DefaultWriteTimeout, "RCON socket write timeout")
	fs.Duration("rcon-retry-interval", config.DefaultRetryInterval, "Wait between failed connection attempts")
}

// loadConfig binds the command's flags and loads the configuration.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	v := viper.New()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
