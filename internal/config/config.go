// Package config loads the vdecapture configuration using viper.
//
// Sources, lowest priority first: built-in defaults, an optional YAML file,
// VDECAPTURE_* environment variables, then command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"firestige.xyz/vdecapture/internal/core"
	"firestige.xyz/vdecapture/internal/log"
)

// EnvPrefix prefixes every environment override, e.g. VDECAPTURE_LOG_LEVEL
// for log.level and VDECAPTURE_CAPTURE_COUNT for capture.count.
const EnvPrefix = "VDECAPTURE"

// MaxPollInterval bounds capture.poll_interval. The interval is also the idle
// flush period and the latency of signal handling, so it stays short.
const MaxPollInterval = 5 * time.Second

// Config is the full configuration. The link locator and the output path are
// positional arguments and are not part of it.
type Config struct {
	Capture CaptureConfig    `mapstructure:"capture"`
	Log     log.LoggerConfig `mapstructure:"log"`
}

// CaptureConfig holds the capture limits and switches.
type CaptureConfig struct {
	Count        uint64        `mapstructure:"count"`  // max packets, 0 = unbounded
	Size         uint64        `mapstructure:"size"`   // max output bytes, 0 = unbounded
	Time         uint64        `mapstructure:"time"`   // max seconds, 0 = unbounded
	Append       bool          `mapstructure:"append"` // append to an existing capture
	Quiet        bool          `mapstructure:"quiet"`  // no packet counter on stderr
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Duration is the time limit as a time.Duration.
func (c CaptureConfig) Duration() time.Duration {
	return time.Duration(c.Time) * time.Second
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"count":              "capture.count",
	"size":               "capture.size",
	"time":               "capture.time",
	"append":             "capture.append",
	"quiet":              "capture.quiet",
	"log-level":          "log.level",
	"log-format-pattern": "log.pattern",
	"log-file":           "log.file.filename",
}

// Load builds the configuration. path may be empty; flags may be nil. Flags
// only override when set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", core.ErrConfigInvalid, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", core.ErrConfigInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capture.count", 0)
	v.SetDefault("capture.size", 0)
	v.SetDefault("capture.time", 0)
	v.SetDefault("capture.append", false)
	v.SetDefault("capture.quiet", false)
	v.SetDefault("capture.poll_interval", "1s")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pattern", log.DefaultPattern)
	v.SetDefault("log.time", log.DefaultTime)
	v.SetDefault("log.caller", false)
	v.SetDefault("log.file.filename", "")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.compress", true)
}

// Validate checks values viper cannot type-check.
func (cfg *Config) Validate() error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Capture.PollInterval <= 0 || cfg.Capture.PollInterval > MaxPollInterval {
		return fmt.Errorf("%w: capture.poll_interval must be in (0, %s], got %s",
			core.ErrConfigInvalid, MaxPollInterval, cfg.Capture.PollInterval)
	}
	if cfg.Log.File.MaxSize < 0 || cfg.Log.File.MaxBackups < 0 || cfg.Log.File.MaxAge < 0 {
		return fmt.Errorf("%w: log.file rotation settings must not be negative", core.ErrConfigInvalid)
	}
	return nil
}
