package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/TomasB/geoheader/internal/data"
	"github.com/TomasB/geoheader/internal/extract"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds the service settings.
type Config struct {
	MmdbPath        string        `mapstructure:"mmdb_path"`
	Port            string        `mapstructure:"port"`
	GRPCPort        string        `mapstructure:"grpc_port"`
	LogLevel        string        `mapstructure:"log_level"`
	Upstream        string        `mapstructure:"upstream"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	FallbackCountry string        `mapstructure:"fallback_country"`
	MaxLen          int           `mapstructure:"max_len"`
	XFFMaxLen       int           `mapstructure:"xff_max_len"`
	MemoryCache     bool          `mapstructure:"memory_cache"`
	Watch           bool          `mapstructure:"watch"`
}

var defaults = map[string]any{
	"port":             "8080",
	"grpc_port":        "",
	"log_level":        "info",
	"upstream":         "",
	"upstream_timeout": 10 * time.Second,
	"fallback_country": data.DefaultFallbackCountry,
	"max_len":          extract.MaxLen,
	"xff_max_len":      extract.MaxForwardedLen,
	"memory_cache":     true,
	"watch":            true,
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"db":           "mmdb_path",
	"port":         "port",
	"grpc-port":    "grpc_port",
	"log-level":    "log_level",
	"upstream":     "upstream",
	"fallback":     "fallback_country",
	"memory-cache": "memory_cache",
	"watch":        "watch",
}

// RegisterFlags adds every server flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	RegisterLookupFlags(fs)
	fs.String("port", "", "HTTP listen port")
	fs.String("grpc-port", "", "gRPC listen port, disabled when empty")
	fs.String("upstream", "", "Upstream URL to proxy unmatched requests to")
	fs.Bool("watch", true, "Warn when the dataset file changes on disk")
}

// RegisterLookupFlags adds only the flags that affect a single lookup.
func RegisterLookupFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Path to a YAML config file")
	fs.String("db", "", "Path to the MaxMind MMDB dataset")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("fallback", "", "Country code used when a lookup fails")
	fs.Bool("memory-cache", true, "Load the whole dataset into memory")
}

// Load builds a Config from defaults, an optional YAML file, environment
// variables (upper-case keys such as MMDB_PATH) and the flags in fs, in
// increasing order of precedence. fs must already be parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	// AutomaticEnv only covers keys viper already knows about.
	if err := v.BindEnv("mmdb_path"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config from yaml: %w", err)
			}
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.MmdbPath == "" {
		return fmt.Errorf("%w: mmdb_path is required", ErrInvalid)
	}
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalid)
	}
	if c.MaxLen <= 0 {
		return fmt.Errorf("%w: max_len must be positive", ErrInvalid)
	}
	if c.XFFMaxLen <= 0 {
		return fmt.Errorf("%w: xff_max_len must be positive", ErrInvalid)
	}
	return nil
}

// Formatter returns a formatter honoring the configured caps and fallback.
func (c *Config) Formatter() *extract.Formatter {
	f := extract.NewFormatter(c.FallbackCountry, c.MaxLen)
	if c.XFFMaxLen > 0 {
		f.MaxForwardedLen = c.XFFMaxLen
	}
	return f
}

// SlogLevel converts the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
