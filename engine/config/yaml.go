// Package config loads engine.Config from a YAML file, in the same
// read-unmarshal-default-validate shape zombar-tunnelmesh's internal/config
// package uses for its own server/peer configs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chunkgrid/storagenode/engine"
)

// fileConfig mirrors engine.Config's fields with yaml tags; MetaPort is
// flattened here rather than nested, since on-disk configs tend to be
// edited by hand. The meta-server host is supplied per-request from the
// op's Location, not from static config, so it has no on-disk analogue.
type fileConfig struct {
	MaxRetryCount         int   `yaml:"max_retry_count"`
	TimeSecBetweenRetries int   `yaml:"time_sec_between_retries"`
	OpTimeoutSec          int   `yaml:"op_timeout_sec"`
	IdleTimeoutSec        int   `yaml:"idle_timeout_sec"`
	MaxReadSize           int64 `yaml:"max_read_size"`
	MaxChunkReadSize      int64 `yaml:"max_chunk_read_size"`
	LeaseRetryTimeoutSec  int   `yaml:"lease_retry_timeout_sec"`
	LeaseWaitTimeoutSec   int   `yaml:"lease_wait_timeout_sec"`
	UseConnectionPool     bool  `yaml:"use_connection_pool"`
	MetaPort              int   `yaml:"meta_port"`
}

// Load reads path and overlays it on engine.DefaultConfig(), so a config
// file only needs to name the fields it wants to override.
func Load(path string) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return engine.Config{}, fmt.Errorf("parse config file: %w", err)
	}

	if fc.MaxRetryCount != 0 {
		cfg.MaxRetryCount = fc.MaxRetryCount
	}
	if fc.TimeSecBetweenRetries != 0 {
		cfg.TimeSecBetweenRetries = fc.TimeSecBetweenRetries
	}
	if fc.OpTimeoutSec != 0 {
		cfg.OpTimeoutSec = fc.OpTimeoutSec
	}
	if fc.IdleTimeoutSec != 0 {
		cfg.IdleTimeoutSec = fc.IdleTimeoutSec
	}
	if fc.MaxReadSize != 0 {
		cfg.MaxReadSize = fc.MaxReadSize
	}
	if fc.MaxChunkReadSize != 0 {
		cfg.MaxChunkReadSize = fc.MaxChunkReadSize
	}
	if fc.LeaseRetryTimeoutSec != 0 {
		cfg.LeaseRetryTimeout = time.Duration(fc.LeaseRetryTimeoutSec) * time.Second
	}
	if fc.LeaseWaitTimeoutSec != 0 {
		cfg.LeaseWaitTimeout = time.Duration(fc.LeaseWaitTimeoutSec) * time.Second
	}
	cfg.UseConnectionPool = fc.UseConnectionPool
	if fc.MetaPort != 0 {
		cfg.Meta.Port = fc.MetaPort
	}

	if err := validate(cfg); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

func validate(cfg engine.Config) error {
	if cfg.MaxRetryCount < 0 {
		return fmt.Errorf("max_retry_count must be >= 0")
	}
	if cfg.MaxReadSize <= 0 {
		return fmt.Errorf("max_read_size must be > 0")
	}
	if cfg.MaxChunkReadSize <= 0 {
		return fmt.Errorf("max_chunk_read_size must be > 0")
	}
	return nil
}
