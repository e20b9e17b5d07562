package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source.Kind != SourceFile || cfg.Source.Path != "results.json" {
		t.Fatalf("source = %+v, want file results.json", cfg.Source)
	}
	if cfg.View.OverlayPadding != 10 || cfg.View.CanvasWidth != 1280 {
		t.Fatalf("view = %+v", cfg.View)
	}
	if cfg.Source.FetchTimeout != 5*time.Second {
		t.Fatalf("fetch_timeout = %v, want 5s", cfg.Source.FetchTimeout)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.ServiceName != "flowview" {
		t.Fatalf("tracing = %+v", cfg.Tracing)
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"flowview.yaml": "source:\n  kind: grpc\n  address: 10.0.0.1:7070\nview:\n  autoplay: 2s\n",
		"flowview.toml": "[source]\nkind = \"grpc\"\naddress = \"10.0.0.1:7070\"\n[view]\nautoplay = \"2s\"\n",
		"flowview.json": `{"source": {"kind": "grpc", "address": "10.0.0.1:7070"}, "view": {"autoplay": "2s"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := Load(NewViper(), path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Source.Kind != SourceGRPC || cfg.Source.Address != "10.0.0.1:7070" {
				t.Fatalf("source = %+v, want grpc 10.0.0.1:7070", cfg.Source)
			}
			if cfg.View.Autoplay != 2*time.Second {
				t.Fatalf("autoplay = %v, want 2s", cfg.View.Autoplay)
			}
			if cfg.View.OverlayWidth != 220 {
				t.Fatalf("overlay_width = %v, want default 220", cfg.View.OverlayWidth)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("FLOWVIEW_VIEW_LISTEN_ADDRESS", "0.0.0.0:9000")
	t.Setenv("FLOWVIEW_LOG_LEVEL", "debug")

	cfg, err := Load(NewViper(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.View.ListenAddress != "0.0.0.0:9000" {
		t.Fatalf("listen_address = %q, want 0.0.0.0:9000", cfg.View.ListenAddress)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(NewViper(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load succeeded for a missing file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(NewViper(), "")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown kind", func(c *Config) { c.Source.Kind = "kafka" }},
		{"file without path", func(c *Config) { c.Source.Path = "" }},
		{"grpc without address", func(c *Config) { c.Source.Kind = SourceGRPC; c.Source.Address = "" }},
		{"zero overlay width", func(c *Config) { c.View.OverlayWidth = 0 }},
		{"negative canvas height", func(c *Config) { c.View.CanvasHeight = -1 }},
		{"zero event rate", func(c *Config) { c.View.EventsPerSecond = 0 }},
		{"negative padding", func(c *Config) { c.View.OverlayPadding = -2 }},
		{"negative autoplay", func(c *Config) { c.View.Autoplay = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Validate(defaults) = %v", err)
	}
}
