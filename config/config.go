// Package config loads the service configuration from a JSON or YAML file
// with optional environment overrides.
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

	"github.com/nutetra/doser/core/metrics"
	"github.com/nutetra/doser/infra/device"
	"github.com/nutetra/doser/infra/mqtt"
)

type Config struct {
	Device     device.Config    `json:"device"`
	Controller ControllerConfig `json:"controller"`
	API        APIConfig        `json:"api"`
	Metrics    metrics.Config   `json:"metrics"`
	History    HistoryConfig    `json:"history"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Sentry     SentryConfig     `json:"sentry"`
}

// Load reads the configuration file at path. Environment variables prefixed
// with ND_ override file values, with __ separating nesting levels
// (ND_DEVICE__BASE_URL overrides device.base_url).
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
	if err := k.Load(env.Provider("ND_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "nd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Device.SetDefaults()
	cfg.Controller.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.History.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Controller.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.History.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
