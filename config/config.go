// Package config loads a YAML description of a cache stack and assembles it:
// one store, one CachePool over it, a NamespacePool per namespace and a
// ChainedPool routing between them.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Keksclan/nutcache"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	KindMemory    = "memory"
	KindDir       = "dir"
	KindRistretto = "ristretto"
	KindRedis     = "redis"
	KindSQLite    = "sqlite"
)

const defaultMaxEntries = 10000

// Config is the YAML document.
type Config struct {
	Store        StoreConfig `yaml:"store"`
	Namespaces   []string    `yaml:"namespaces"`
	ComputeRate  *RateConfig `yaml:"compute_rate"`
	SingleFlight bool        `yaml:"single_flight"`
}

// StoreConfig selects and parameterises the backend. Fields that do not
// apply to Kind are ignored.
type StoreConfig struct {
	Kind       string `yaml:"kind"`
	Path       string `yaml:"path"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Prefix     string `yaml:"prefix"`
	MaxEntries int64  `yaml:"max_entries"`

	// Breaker, when set, guards the store with a circuit breaker.
	Breaker *BreakerConfig `yaml:"breaker"`
}

// BreakerConfig maps onto breaker.Config. Zero fields take the breaker's
// defaults.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	HalfOpenProbes   int           `yaml:"half_open_probes"`
}

// RateConfig bounds how often values may be computed across the stack.
type RateConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates it. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = KindMemory
	}
	if c.Store.Kind == KindRistretto && c.Store.MaxEntries == 0 {
		c.Store.MaxEntries = defaultMaxEntries
	}
	if len(c.Namespaces) == 0 {
		c.Namespaces = []string{"default"}
	}
}

// Validate reports the first problem that would make Build fail.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case KindMemory, KindRistretto:
	case KindDir, KindSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("config: store kind %q needs a path", c.Store.Kind)
		}
	case KindRedis:
		if c.Store.Addr == "" {
			return fmt.Errorf("config: store kind %q needs an addr", c.Store.Kind)
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	if c.Store.Kind == KindRistretto && c.Store.MaxEntries < 0 {
		return errors.New("config: max_entries must be positive")
	}
	if b := c.Store.Breaker; b != nil && (b.FailureThreshold < 0 || b.OpenTimeout < 0 || b.HalfOpenProbes < 0) {
		return errors.New("config: breaker settings must not be negative")
	}
	for _, ns := range c.Namespaces {
		if ns == "" || strings.Contains(ns, nutcache.Separator) {
			return fmt.Errorf("config: invalid namespace %q", ns)
		}
	}
	if r := c.ComputeRate; r != nil && (r.PerSecond <= 0 || r.Burst <= 0) {
		return errors.New("config: compute_rate needs positive per_second and burst")
	}
	return nil
}
