package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references first and
// filling defaults afterwards.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(24 * time.Hour)
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}

	if cfg.Routing.LearningRate == 0 {
		cfg.Routing.LearningRate = 0.1
	}
	if cfg.Routing.AttemptTimeout == 0 {
		cfg.Routing.AttemptTimeout = Duration(30 * time.Second)
	}
	if cfg.Routing.ProbeInterval == 0 {
		cfg.Routing.ProbeInterval = Duration(30 * time.Second)
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Kind == "" {
			p.Kind = p.Name
		}
		if p.MaxConcurrent == 0 {
			p.MaxConcurrent = 8
		}
		if p.CostPer1KTokens == 0 && p.Kind != "local" {
			p.CostPer1KTokens = 0.01
		}
	}
}
