// Package config defines all configuration for the botnode process. Config
// is loaded from a YAML file (default: configs/config.yaml) with the
// connection identity overridable via BOTNODE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	BotID      uint16          `mapstructure:"bot_id"`
	ServerAddr string          `mapstructure:"server_addr"`
	Executor   ExecutorConfig  `mapstructure:"executor"`
	Reconnect  ReconnectConfig `mapstructure:"reconnect"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
	Audit      AuditConfig     `mapstructure:"audit"`
}

// ExecutorConfig tunes the per-engine CPU pinning and poll-loop discipline.
//
//   - FirstCPU: CPU index the Control engine pins to; MarketData/Indicator/
//     Trading/Exchange/Audit are pinned to FirstCPU+1, +2, ... in spawn order.
//   - PollTimeout: loaded and checked by Validate; no engine reads it. Each
//     engine parks for its own fixed 50µs poll timeout.
//   - SpinBeforePark: loaded but not read by any engine; every engine spins
//     engine.DefaultSpinBudget misses before parking.
type ExecutorConfig struct {
	FirstCPU       int           `mapstructure:"first_cpu"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	SpinBeforePark int           `mapstructure:"spin_before_park"`
}

// ReconnectConfig tunes Control's server reconnect backoff and keepalive.
type ReconnectConfig struct {
	Backoff      time.Duration `mapstructure:"backoff"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus throughput-counter HTTP exposition.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// AuditConfig controls the optional off-by-default throughput-snapshot
// persistence (see internal/audit/snapshot.go).
type AuditConfig struct {
	SnapshotEnabled bool          `mapstructure:"snapshot_enabled"`
	SnapshotDir     string        `mapstructure:"snapshot_dir"`
	SnapshotEvery   time.Duration `mapstructure:"snapshot_every"`
}

// Load reads config from a YAML file with env var overrides.
// The connection identity uses env vars: BOTNODE_BOT_ID, BOTNODE_SERVER_ADDR.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BOTNODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("executor.first_cpu", 0)
	v.SetDefault("executor.poll_timeout", 50*time.Microsecond)
	v.SetDefault("executor.spin_before_park", 64)
	v.SetDefault("reconnect.backoff", time.Second)
	v.SetDefault("reconnect.ping_interval", 15*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("audit.snapshot_enabled", false)
	v.SetDefault("audit.snapshot_dir", "data")
	v.SetDefault("audit.snapshot_every", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if id := os.Getenv("BOTNODE_BOT_ID"); id != "" {
		var parsed uint16
		if _, err := fmt.Sscanf(id, "%d", &parsed); err != nil {
			return nil, fmt.Errorf("BOTNODE_BOT_ID must be a uint16: %w", err)
		}
		cfg.BotID = parsed
	}
	if addr := os.Getenv("BOTNODE_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required (set BOTNODE_SERVER_ADDR)")
	}
	if c.Executor.PollTimeout <= 0 {
		return fmt.Errorf("executor.poll_timeout must be > 0")
	}
	if c.Reconnect.Backoff <= 0 {
		return fmt.Errorf("reconnect.backoff must be > 0")
	}
	if c.Reconnect.PingInterval <= 0 {
		return fmt.Errorf("reconnect.ping_interval must be > 0")
	}
	return nil
}
