// Package config loads flowview settings from defaults, an optional config
// file and FLOWVIEW_* environment variables using Viper.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/flowview/internal/observability"
)

// EnvPrefix is prepended to every environment override, e.g.
// FLOWVIEW_VIEW_LISTEN_ADDRESS.
const EnvPrefix = "FLOWVIEW"

// Source kinds.
const (
	SourceFile = "file"
	SourceGRPC = "grpc"
)

// ErrInvalidConfig marks validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full flowview configuration.
type Config struct {
	Log     LogConfig                   `mapstructure:"log"`
	Source  SourceConfig                `mapstructure:"source"`
	Server  ServerConfig                `mapstructure:"server"`
	View    ViewConfig                  `mapstructure:"view"`
	Metrics MetricsConfig               `mapstructure:"metrics"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SourceConfig says where periods come from.
type SourceConfig struct {
	Kind         string        `mapstructure:"kind"`
	Path         string        `mapstructure:"path"`
	Address      string        `mapstructure:"address"`
	Watch        bool          `mapstructure:"watch"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

// ServerConfig configures the period gRPC server.
type ServerConfig struct {
	GRPCAddress string `mapstructure:"grpc_address"`
}

// ViewConfig configures the headless view and its browser bridge.
type ViewConfig struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	OverlayPadding  float64       `mapstructure:"overlay_padding"`
	OverlayWidth    float64       `mapstructure:"overlay_width"`
	OverlayHeight   float64       `mapstructure:"overlay_height"`
	CanvasWidth     float64       `mapstructure:"canvas_width"`
	CanvasHeight    float64       `mapstructure:"canvas_height"`
	EventsPerSecond float64       `mapstructure:"events_per_second"`
	Autoplay        time.Duration `mapstructure:"autoplay"`
}

// MetricsConfig configures the standalone /metrics listener used by serve.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// SetDefaults registers a default for every key so environment overrides
// apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("source.kind", SourceFile)
	v.SetDefault("source.path", "results.json")
	v.SetDefault("source.address", "127.0.0.1:7070")
	v.SetDefault("source.watch", false)
	v.SetDefault("source.fetch_timeout", 5*time.Second)

	v.SetDefault("server.grpc_address", "127.0.0.1:7070")

	v.SetDefault("view.listen_address", "127.0.0.1:8080")
	v.SetDefault("view.overlay_padding", 10.0)
	v.SetDefault("view.overlay_width", 220.0)
	v.SetDefault("view.overlay_height", 160.0)
	v.SetDefault("view.canvas_width", 1280.0)
	v.SetDefault("view.canvas_height", 720.0)
	v.SetDefault("view.events_per_second", 30.0)
	v.SetDefault("view.autoplay", time.Duration(0))

	v.SetDefault("metrics.address", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "flowview")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// NewViper returns a Viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads path into v when path is non-empty and decodes the result.
// The file type follows the extension (yaml, toml or json).
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown source kinds and non-positive sizes.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return errors.Mark(errors.New("source.path is required for file sources"), ErrInvalidConfig)
		}
	case SourceGRPC:
		if c.Source.Address == "" {
			return errors.Mark(errors.New("source.address is required for grpc sources"), ErrInvalidConfig)
		}
	default:
		return errors.Mark(errors.Newf("unknown source kind %q", c.Source.Kind), ErrInvalidConfig)
	}

	sizes := []struct {
		key   string
		value float64
	}{
		{"view.overlay_width", c.View.OverlayWidth},
		{"view.overlay_height", c.View.OverlayHeight},
		{"view.canvas_width", c.View.CanvasWidth},
		{"view.canvas_height", c.View.CanvasHeight},
		{"view.events_per_second", c.View.EventsPerSecond},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			return errors.Mark(errors.Newf("%s must be positive, got %v", s.key, s.value), ErrInvalidConfig)
		}
	}
	if c.View.OverlayPadding < 0 {
		return errors.Mark(errors.Newf("view.overlay_padding must not be negative, got %v", c.View.OverlayPadding), ErrInvalidConfig)
	}
	if c.View.Autoplay < 0 {
		return errors.Mark(errors.Newf("view.autoplay must not be negative, got %v", c.View.Autoplay), ErrInvalidConfig)
	}
	return nil
}
