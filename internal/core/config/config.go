package config

import (
	"fmt"
	"time"

	redisclient "github.com/DealAppSeo/hyperdag-router/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Providers []ProviderConfig `yaml:"providers"`
	Cache     CacheConfig      `yaml:"cache"`
	Routing   RoutingConfig    `yaml:"routing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProviderConfig holds settings for one upstream provider. APIKey supports
// ${ENV} interpolation; an entry whose key expands to empty is never
// registered (except the keyless "local" kind).
type ProviderConfig struct {
	Name            string             `yaml:"name"`
	Kind            string             `yaml:"kind"` // openai, anthropic, google, local
	APIKey          string             `yaml:"api_key"`
	Model           string             `yaml:"model"`
	CostPer1KTokens float64            `yaml:"cost_per_1k_tokens"`
	MaxConcurrent   int                `yaml:"max_concurrent"`
	Capabilities    map[string]float64 `yaml:"capabilities"`
}

// CacheConfig holds response cache settings. A non-empty redis URL selects
// the Redis-backed tier; otherwise the bounded in-memory store is used.
type CacheConfig struct {
	TTL        Duration           `yaml:"ttl"`
	MaxEntries int                `yaml:"max_entries"`
	Redis      redisclient.Config `yaml:"redis"`
}

// RoutingConfig holds ranker and executor tuning.
type RoutingConfig struct {
	LearningRate   float64  `yaml:"learning_rate"`
	MinSuitability float64  `yaml:"min_suitability"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
	ProbeInterval  Duration `yaml:"probe_interval"`
}

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML parses a duration string ("24h", "30s").
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ActiveProviders filters the configured providers down to those that can
// actually be instantiated: remote kinds require a credential, the local
// kind never does. Entries without credentials are dropped entirely, never
// registered as unavailable.
func (c *AppConfig) ActiveProviders() []ProviderConfig {
	active := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Kind != "local" && p.APIKey == "" {
			continue
		}
		active = append(active, p)
	}
	return active
}
