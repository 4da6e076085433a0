package cache

import (
	"time"

	"github.com/goliatone/go-entity-cache/internal/cacheinfra"
)

// Config configures the lookup cache placed in front of single-row reads.
// It sits below a table's identity cache: a Get that misses the identity
// cache reads the row here before it queries the store, and the row it
// returns is turned into a new cached entity. Writes through a table drop
// the row's entry, so both caches see the same state.
type Config struct {
	Capacity             int                 `yaml:"capacity" json:"capacity"`
	NumShards            int                 `yaml:"num_shards" json:"num_shards"`
	TTL                  time.Duration       `yaml:"ttl" json:"ttl"`
	EvictionPercentage   int                 `yaml:"eviction_percentage" json:"eviction_percentage"`
	EarlyRefresh         *EarlyRefreshConfig `yaml:"early_refresh" json:"early_refresh"`
	MissingRecordStorage bool                `yaml:"missing_record_storage" json:"missing_record_storage"`
	EvictionInterval     time.Duration       `yaml:"eviction_interval" json:"eviction_interval"`
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async" json:"min_async"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async" json:"max_async"`
	SyncRefreshTime     time.Duration `yaml:"sync" json:"sync"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
}

// DefaultConfig returns the lookup cache defaults.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService constructs the sturdyc backed cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	return cacheinfra.NewSturdycService(cfg.toInternal())
}

func (c Config) toInternal() cacheinfra.Config {
	out := cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
	if r := c.EarlyRefresh; r != nil {
		out.EarlyRefresh = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: r.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: r.MaxAsyncRefreshTime,
			SyncRefreshTime:     r.SyncRefreshTime,
			RetryBaseDelay:      r.RetryBaseDelay,
		}
	}
	return out
}

func fromInternal(cfg cacheinfra.Config) Config {
	out := Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
	if r := cfg.EarlyRefresh; r != nil {
		out.EarlyRefresh = &EarlyRefreshConfig{
			MinAsyncRefreshTime: r.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: r.MaxAsyncRefreshTime,
			SyncRefreshTime:     r.SyncRefreshTime,
			RetryBaseDelay:      r.RetryBaseDelay,
		}
	}
	return out
}
