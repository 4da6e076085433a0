package di

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/multierr"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/i18n"
	"github.com/goliatone/go-entity-cache/store"
)

// EnvPrefix prefixes every variable read by ConfigFromEnv.
const EnvPrefix = "ENTITYCACHE_"

// Config wires the store, the optional lookup cache and the ambient
// settings of a Container.
type Config struct {
	Store store.Config `yaml:"store" json:"store"`

	// LookupCache enables the read-through cache on single-row reads when
	// set.
	LookupCache *cache.Config `yaml:"lookup_cache,omitempty" json:"lookup_cache,omitempty"`

	// Locale selects the display language of translated columns.
	Locale string `yaml:"locale" json:"locale"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory SQLite container without lookup cache.
func DefaultConfig() Config {
	return Config{
		Store:    store.DefaultConfig(),
		Locale:   i18n.DefaultLocale,
		LogLevel: "info",
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Store),
		validation.Field(&c.LookupCache),
		validation.Field(&c.Locale, validation.By(func(value any) error {
			_, err := i18n.ParseLocale(value.(string))
			return err
		})),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// ConfigFromEnv overlays ENTITYCACHE_* variables on DefaultConfig:
//
//	ENTITYCACHE_DRIVER          store driver
//	ENTITYCACHE_DSN             data source name
//	ENTITYCACHE_TIMEOUT         statement timeout, e.g. "2s"
//	ENTITYCACHE_READ_ONLY       reject writes
//	ENTITYCACHE_MAX_OPEN_CONNS  connection pool size
//	ENTITYCACHE_LOOKUP_CACHE    enable the lookup cache
//	ENTITYCACHE_LOOKUP_TTL      lookup cache TTL, e.g. "30s"
//	ENTITYCACHE_LOCALE          display locale
//	ENTITYCACHE_LOG_LEVEL       log level
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key, fallback string) string {
		v, err := env.GetAsString(EnvPrefix+key, false, fallback)
		errs = append(errs, err)
		return v
	}
	duration := func(key string, fallback time.Duration) time.Duration {
		v := str(key, fallback.String())
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return fallback
		}
		return d
	}

	cfg.Store.Driver = str("DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = str("DSN", cfg.Store.DSN)
	cfg.Store.Timeout = duration("TIMEOUT", cfg.Store.Timeout)

	readOnly, err := env.GetAsBool(EnvPrefix+"READ_ONLY", false, cfg.Store.ReadOnly)
	errs = append(errs, err)
	cfg.Store.ReadOnly = readOnly

	conns, err := env.GetAsInt(EnvPrefix+"MAX_OPEN_CONNS", false, cfg.Store.MaxOpenConns)
	errs = append(errs, err)
	cfg.Store.MaxOpenConns = conns

	lookup, err := env.GetAsBool(EnvPrefix+"LOOKUP_CACHE", false, false)
	errs = append(errs, err)
	if lookup {
		lc := cache.DefaultConfig()
		lc.TTL = duration("LOOKUP_TTL", lc.TTL)
		cfg.LookupCache = &lc
	}

	cfg.Locale = str("LOCALE", cfg.Locale)
	cfg.LogLevel = str("LOG_LEVEL", cfg.LogLevel)

	if err := multierr.Combine(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("di: invalid environment config: %w", err)
	}
	return cfg, nil
}
