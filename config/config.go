// Package config loads the dispatchmap configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/metrics"
	"github.com/kilianp07/dispatchmap/infra/gateway"
	"github.com/kilianp07/dispatchmap/infra/httpserver"
	"github.com/kilianp07/dispatchmap/infra/monitoring"
	"github.com/kilianp07/dispatchmap/infra/profiling"
	"github.com/kilianp07/dispatchmap/infra/tracing"
	"github.com/kilianp07/dispatchmap/simulator"
)

type Config struct {
	Viewer    ViewerConfig            `json:"viewer"`
	Session   SessionConfig           `json:"session"`
	Gateway   gateway.Config          `json:"gateway"`
	Channel   factory.ModuleConfig    `json:"channel"`
	Engine    EngineConfig            `json:"engine"`
	Metrics   metrics.Config          `json:"metrics"`
	Journal   JournalConfig           `json:"journal"`
	HTTP      httpserver.Config       `json:"http"`
	Sentry    monitoring.SentryConfig `json:"sentry"`
	Tracing   tracing.Config          `json:"tracing"`
	Profiling profiling.Config        `json:"profiling"`
	Simulator simulator.Config        `json:"simulator"`
}

// Load reads path, applies K_ environment overrides, fills defaults and
// validates the sections every command relies on.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, e.g. K_GATEWAY__BASE_URL.
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Viewer.SetDefaults()
	c.Engine.SetDefaults()
	c.Journal.SetDefaults()
	c.HTTP.SetDefaults()
	c.Tracing.SetDefaults()
	c.Profiling.SetDefaults()
	c.Simulator.SetDefaults()
	c.Metrics.SetDefaults()
	if c.Channel.Type == "" {
		c.Channel.Type = "socketio"
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = os.Getenv("APP_ENV")
	}
}

// Validate checks the sections shared by every command. The client
// sections are checked by ValidateClient.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"engine", c.Engine.Validate},
		{"journal", c.Journal.Validate},
		{"tracing", c.Tracing.Validate},
		{"profiling", c.Profiling.Validate},
		{"simulator", c.Simulator.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}

// ValidateClient checks what running the client needs on top of Validate.
func (c *Config) ValidateClient() error {
	gw := c.Gateway
	gw.SetDefaults()
	var errs []error
	if err := gw.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}
	if c.Channel.Type == "" {
		errs = append(errs, errors.New("channel: type is required"))
	}
	if _, err := c.Session.Load(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
