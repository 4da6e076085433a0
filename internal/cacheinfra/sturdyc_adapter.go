package cacheinfra

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by a fetch function when the source of truth has
// no record for the key. With MissingRecordStorage enabled the miss itself
// is remembered until the key is invalidated.
var ErrNotFound = errors.New("cache: record not found")

// Config holds the sturdyc options used by the row lookup cache.
type Config struct {
	// Capacity is the maximum number of cached rows. Must be greater than 0.
	Capacity int

	// NumShards spreads keys over independently locked shards. Must be
	// greater than 0.
	NumShards int

	// TTL bounds how long a cached row or miss is served. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage of entries dropped when capacity is reached (1-100).
	EvictionPercentage int

	// EarlyRefresh refreshes hot keys in the background before they expire.
	// Nil disables it.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers ids that matched no row so repeated
	// lookups of absent ids do not reach the store.
	MissingRecordStorage bool

	// EvictionInterval sets how often expired entries are swept. Zero uses
	// the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns the lookup cache defaults: a bounded cache that
// remembers misses and never refreshes rows behind the caller's back.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            64,
		TTL:                  time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions maps the optional settings to sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage are constructor arguments instead.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	case c.NumShards <= 0:
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	case c.TTL <= 0:
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if r := c.EarlyRefresh; r != nil {
		durations := []struct {
			field string
			value time.Duration
		}{
			{"EarlyRefresh.MinAsyncRefreshTime", r.MinAsyncRefreshTime},
			{"EarlyRefresh.MaxAsyncRefreshTime", r.MaxAsyncRefreshTime},
			{"EarlyRefresh.SyncRefreshTime", r.SyncRefreshTime},
			{"EarlyRefresh.RetryBaseDelay", r.RetryBaseDelay},
		}
		for _, d := range durations {
			if d.value < 0 {
				return &ConfigError{Field: d.field, Message: "must be non-negative"}
			}
		}
		if r.MinAsyncRefreshTime > r.MaxAsyncRefreshTime {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must not exceed MaxAsyncRefreshTime"}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycService is a CacheService backed by a sturdyc client. Concurrent
// fetches of the same key are coalesced into one call.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &SturdycService{client: client}, nil
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// validateFetchFn checks fetchFn has the shape func(context.Context) (T, error).
func validateFetchFn(fetchFn any) error {
	if fetchFn == nil {
		return &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	fnType := reflect.TypeOf(fetchFn)
	if fnType.Kind() != reflect.Func {
		return &ConfigError{Field: "fetchFn", Message: "must be a function"}
	}
	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return &ConfigError{Field: "fetchFn", Message: "must have signature func(context.Context) (T, error)"}
	}
	if !fnType.In(0).Implements(contextType) {
		return &ConfigError{Field: "fetchFn", Message: "first parameter must be context.Context"}
	}
	if !fnType.Out(1).Implements(errorType) {
		return &ConfigError{Field: "fetchFn", Message: "second return value must be error"}
	}
	return nil
}

// noValue stands in for a nil fetch result. sturdyc asserts every result to
// the client's value type and any(nil).(any) fails with ErrInvalidType.
type noValue struct{}

// GetOrFetch returns the cached value for key or runs fetchFn to load it.
// A fetch reporting ErrNotFound is recorded as a missing record and every
// not-found outcome is returned as ErrNotFound. Other fetch errors are
// returned unchanged and are not cached.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	value, err := s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		v, err := call(ctx, fetchFn)
		if v == nil {
			v = noValue{}
		}
		if errors.Is(err, ErrNotFound) {
			return v, sturdyc.ErrNotFound
		}
		return v, err
	})
	if _, ok := value.(noValue); ok {
		value = nil
	}
	if errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord) {
		return nil, ErrNotFound
	}
	return value, err
}

func call(ctx context.Context, fetchFn any) (any, error) {
	if fn, ok := fetchFn.(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	out := reflect.ValueOf(fetchFn).Call([]reflect.Value{reflect.ValueOf(ctx)})

	var value any
	if out[0].IsValid() && out[0].CanInterface() {
		value = out[0].Interface()
	}
	if e := out[1]; !e.IsNil() {
		return value, e.Interface().(error)
	}
	return value, nil
}

// Delete drops a single key.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix drops every key starting with prefix.
func (s *SturdycService) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys drops every listed key.
func (s *SturdycService) InvalidateKeys(_ context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Size returns the number of cached entries, missing records included.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
