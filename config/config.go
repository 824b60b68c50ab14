// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/vehicleplus/sums/auth"
	"github.com/vehicleplus/sums/core/metrics"
	"github.com/vehicleplus/sums/core/release"
	"github.com/vehicleplus/sums/infra/notify"
	"github.com/vehicleplus/sums/infra/store"
)

// HTTPConfig configures the OTA HTTP server.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

// RegistryConfig names the container registry units pull images from.
type RegistryConfig struct {
	Host string `json:"host"`
}

type Config struct {
	HTTP      HTTPConfig     `json:"http"`
	Store     store.Config   `json:"store"`
	Auth      auth.Config    `json:"auth"`
	Registry  RegistryConfig `json:"registry"`
	Publisher release.Config `json:"publisher"`
	Notify    notify.Config  `json:"notify"`
	Metrics   metrics.Config `json:"metrics"`
}

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
	// Optional environment overrides
	if err := k.Load(env.Provider("SUMS_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "sums_")
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

// SetDefaults applies defaults for everything the file may omit.
func (c *Config) SetDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Registry.Host == "" {
		c.Registry.Host = "vehicleplus.cloud"
	}
	c.Store.SetDefaults()
	c.Publisher.SetDefaults()
	c.Notify.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Notify.Validate()
}
