package engine

import (
	"sync"
	"time"
)

// Config holds the tunable parameters from spec §6 "Configuration surface".
// Field names follow the dotted option keys, split into the two groups the
// source keeps: rsReader/direct options, and the nested meta-client options.
type Config struct {
	MaxRetryCount        int
	TimeSecBetweenRetries int
	OpTimeoutSec         int
	IdleTimeoutSec       int
	MaxReadSize          int64
	MaxChunkReadSize     int64
	LeaseRetryTimeout    time.Duration
	LeaseWaitTimeout     time.Duration

	Meta MetaConfig

	// UseConnectionPool controls whether the Factory dials a fresh peer
	// connection per replicator or draws one from a pool. spec.md §9 notes
	// the source keys this off chunkServer.rsReader.meta.idleTimeoutSec by
	// what looks like a copy-paste bug; this rewrite gives it its own key.
	UseConnectionPool bool
}

// MetaConfig is the nested "meta.*" configuration group used by the Shared
// Metaserver Client.
type MetaConfig struct {
	MaxRetryCount                 int
	TimeSecBetweenRetries         int
	OpTimeoutSec                  int
	IdleTimeoutSec                int
	ResetConnectionOnOpTimeoutFlag bool
	Port                          int
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryCount:         3,
		TimeSecBetweenRetries: 5,
		OpTimeoutSec:          30,
		IdleTimeoutSec:        300,
		MaxReadSize:           defaultReadSize,
		MaxChunkReadSize:      CHUNKSIZE,
		LeaseRetryTimeout:     3 * time.Second,
		LeaseWaitTimeout:      15 * time.Second,
		Meta: MetaConfig{
			MaxRetryCount:         3,
			TimeSecBetweenRetries: 5,
			OpTimeoutSec:          30,
			IdleTimeoutSec:        300,
		},
	}
}

func roundUpToChecksumBlock(n int64) int64 {
	if n <= 0 {
		return ChecksumBlockSize
	}
	return (n + ChecksumBlockSize - 1) / ChecksumBlockSize * ChecksumBlockSize
}

// ConfigStore is a mutex-guarded holder for the live Config, applied
// atomically at startup and on reconfiguration, the same way ChunkServer
// fields are guarded by chunkServer.mu throughout the teacher's code.
type ConfigStore struct {
	mu  sync.RWMutex
	cur Config
}

// NewConfigStore builds a ConfigStore seeded with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	cfg.MaxReadSize = roundUpToChecksumBlock(cfg.MaxReadSize)
	return &ConfigStore{cur: cfg}
}

// Get returns the currently active configuration.
func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// SetParameters applies a new configuration atomically. Re-applying an
// identical configuration is a no-op (spec §8 round-trip property).
func (s *ConfigStore) SetParameters(cfg Config) (changed bool) {
	cfg.MaxReadSize = roundUpToChecksumBlock(cfg.MaxReadSize)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == cfg {
		return false
	}
	s.cur = cfg
	return true
}
