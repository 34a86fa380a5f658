package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/osvrouter/pkg/logger"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = logger.LogLevelInfo
	}
	if c.Dataplane.VPPAPISocket == "" {
		c.Dataplane.VPPAPISocket = "/run/vpp/api.sock"
	}
	if c.Dataplane.PuntSocketPath == "" {
		c.Dataplane.PuntSocketPath = "/run/osvrouter/punt.sock"
	}
	if c.Dataplane.InjectSocketPath == "" {
		c.Dataplane.InjectSocketPath = "/run/osvrouter/inject.sock"
	}
	if c.Dataplane.OpDBPath == "" {
		c.Dataplane.OpDBPath = "/var/lib/osvrouter/opdb.sqlite"
	}
	if c.API.Address == "" {
		c.API.Address = "127.0.0.1:8445"
	}
}

func (c *Config) Validate() error {
	for i, d := range c.Diversions {
		if d.Protocols == "" {
			return fmt.Errorf("diversions[%d]: protocols is required", i)
		}
		if d.Interface == "" {
			return fmt.Errorf("diversions[%d]: interface is required", i)
		}
		if d.Shadow == "" {
			return fmt.Errorf("diversions[%d]: shadow is required", i)
		}
	}
	return nil
}
