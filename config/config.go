package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hausnetz/eos/adapter"
	"github.com/hausnetz/eos/core/bridge"
	"github.com/hausnetz/eos/core/ems"
	"github.com/hausnetz/eos/core/forecast"
	"github.com/hausnetz/eos/core/metrics"
	"github.com/hausnetz/eos/core/model"
	"github.com/hausnetz/eos/core/optimizer"
	"github.com/hausnetz/eos/infra/mqtt"
)

// Config is the root service configuration.
type Config struct {
	Engine    ems.Config        `json:"engine"`
	Devices   model.Devices     `json:"devices"`
	Forecast  forecast.Config   `json:"forecast"`
	Optimizer optimizer.Weights `json:"optimizer"`
	Adapter   adapter.Config    `json:"adapter"`
	Metrics   metrics.Config    `json:"metrics"`
	MQTT      mqtt.Config       `json:"mqtt"`
	API       APIConfig         `json:"api"`
	Logging   LoggingConfig     `json:"logging"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr string `json:"addr"`
	// Token guards mutating endpoints when non-empty.
	Token string `json:"token"`
}

// LoggingConfig controls the global log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

// SetDefaults fills unset logging options.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the log level.
func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("config: unknown log level %q", c.Level)
	}
}

// Load reads the configuration file, applies EOS_* environment overrides and
// validates everything eagerly so a contradictory setup fails at startup, not
// mid-cycle.
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
		return nil, fmt.Errorf("config: unsupported format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides: EOS_MQTT__BROKER=... maps to
	// mqtt.broker. The callback emits dot-separated keys, so the provider
	// delimiter must be "." for the override to merge into the nested tree.
	if err := k.Load(env.Provider("EOS_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "eos_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.Devices.SetDefaults()
	c.Forecast.SetDefaults()
	c.Optimizer.SetDefaults()
	c.Logging.SetDefaults()

	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Devices.Validate(); err != nil {
		return err
	}
	if err := c.Forecast.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	// Mapping tables fail at load, never inside a live cycle.
	if _, err := bridge.NewMeasurementMapping(c.Adapter.MeasurementEntities); err != nil {
		return err
	}
	_, err := bridge.NewSolutionMapping(c.Adapter.SolutionEntities)
	return err
}
