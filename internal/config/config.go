// Package config loads and validates the indexer's configuration: defaults,
// overlaid by an optional YAML file, overlaid by environment variables,
// overlaid by command-line flags. See SPEC_FULL.md's AMBIENT STACK section.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the merged, validated set of options recognized by the indexer
// (rpc endpoints, sqlite store location, batching knobs).
type Config struct {
	RPCURLs     []string `yaml:"rpc_urls"`
	ChainID     uint64   `yaml:"chain_id"`
	BatchSize   int      `yaml:"batch_size"`
	Concurrency int      `yaml:"concurrency"`
	StartBlock  *uint64  `yaml:"start_block"`
	StoreURL    string   `yaml:"store_url"`

	// StoreKey is recognized and parsed (a connection credential, for a
	// backend that has one) but never passed to store.Open: the sqlite
	// backend (modernc.org/sqlite, a local file, no server-side auth) has
	// nothing for a connection key to authenticate against.
	StoreKey string `yaml:"store_key"`

	PollInterval   time.Duration `yaml:"-"`
	PollIntervalMS int           `yaml:"poll_interval_ms"`
}

// Defaults returns the baseline configuration before any file, environment,
// or flag overlay is applied.
func Defaults() Config {
	return Config{
		ChainID:        8453,
		BatchSize:      50,
		Concurrency:    4,
		StoreURL:       "ethscriptions.sqlite",
		PollIntervalMS: 500,
	}
}

// LoadFile overlays cfg with values found in the YAML file at path. A
// missing file is not an error (the -config flag is optional); a malformed
// one is.
func LoadFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv overlays cfg with recognized environment variables, the idiomatic
// way to hand an RPC endpoint or secret to a process without a config file.
func LoadEnv(cfg Config) Config {
	if v := os.Getenv("ETHSCRIPTIONS_RPC_URLS"); v != "" {
		cfg.RPCURLs = strings.Split(v, ",")
	}
	if v := os.Getenv("ETHSCRIPTIONS_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.ChainID = n
		}
	}
	if v := os.Getenv("ETHSCRIPTIONS_STORE_URL"); v != "" {
		cfg.StoreURL = v
	}
	if v := os.Getenv("ETHSCRIPTIONS_STORE_KEY"); v != "" {
		cfg.StoreKey = v
	}
	return cfg
}

// Finalize converts the PollIntervalMS scalar (the only field easy to
// express portably across YAML/env/flags) into the time.Duration the rest
// of the codebase consumes, and validates the merged result.
func (c Config) Finalize() (Config, error) {
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 500
	}
	c.PollInterval = time.Duration(c.PollIntervalMS) * time.Millisecond

	if len(c.RPCURLs) == 0 {
		return c, fmt.Errorf("config: at least one rpc url is required")
	}
	if c.ChainID == 0 {
		return c, fmt.Errorf("config: chain_id is required")
	}
	if c.BatchSize <= 0 {
		return c, fmt.Errorf("config: batch_size must be positive")
	}
	if c.Concurrency <= 0 {
		return c, fmt.Errorf("config: concurrency must be positive")
	}
	if c.StoreURL == "" {
		return c, fmt.Errorf("config: store_url is required")
	}
	return c, nil
}
