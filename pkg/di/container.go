package di

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-entity-cache/cache"
	"github.com/goliatone/go-entity-cache/entitycache"
	"github.com/goliatone/go-entity-cache/i18n"
	"github.com/goliatone/go-entity-cache/idgen"
	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/store"
)

// Container provides dependency injection for the entity cache runtime.
// It owns the database handle, the store, the id allocator, the optional
// lookup cache, metrics and logging, and hands out one table runtime per
// schema.
type Container struct {
	id         uuid.UUID
	config     Config
	logger     *zap.Logger
	db         *bun.DB
	ownsDB     bool
	store      *store.Store
	alloc      *idgen.Allocator
	lookup     cache.CacheService
	keys       cache.KeySerializer
	registerer prometheus.Registerer
	metrics    *entitycache.Metrics
	translator i18n.Translator
	tables     *xsync.MapOf[string, *entitycache.Table]
}

// Option customizes a Container.
type Option func(*Container)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDB uses an already open database instead of opening Config.Store.
// The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithRegisterer registers the metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Container) {
		if reg != nil {
			c.registerer = reg
		}
	}
}

// WithTranslator replaces the pass-through translator of Config.Locale.
func WithTranslator(tr i18n.Translator) Option {
	return func(c *Container) {
		c.translator = tr
	}
}

// NewLogger builds a production zap logger at level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("di: invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// NewContainer validates config and wires every shared component.
func NewContainer(ctx context.Context, config Config, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("di: invalid config: %w", err)
	}

	c := &Container{
		id:     uuid.New(),
		config: config,
		keys:   cache.NewDefaultKeySerializer(),
		tables: xsync.NewMapOf[string, *entitycache.Table](),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.translator == nil {
		tag, err := i18n.ParseLocale(config.Locale)
		if err != nil {
			return nil, err
		}
		c.translator = i18n.Nop(tag)
	}

	if c.registerer == nil {
		c.registerer = prometheus.NewRegistry()
	}
	metrics, err := entitycache.NewMetrics(c.registerer)
	if err != nil {
		return nil, fmt.Errorf("di: register metrics: %w", err)
	}
	c.metrics = metrics

	if config.LookupCache != nil {
		lookup, err := cache.NewCacheService(*config.LookupCache)
		if err != nil {
			return nil, fmt.Errorf("di: lookup cache: %w", err)
		}
		c.lookup = lookup
	}

	if c.db == nil {
		db, err := store.Open(ctx, config.Store)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}

	// Nothing after the logger may fail; Close is the only place it is synced.
	if c.logger == nil {
		logger, err := NewLogger(config.LogLevel)
		if err != nil {
			if c.ownsDB {
				_ = c.db.Close()
			}
			return nil, err
		}
		c.logger = logger
	}
	c.logger = c.logger.With(zap.String("container", c.id.String()))
	c.store = store.FromConfig(c.db, config.Store, store.WithLogger(c.logger))
	c.alloc = idgen.New()

	c.logger.Info("container ready",
		zap.String("driver", config.Store.Driver),
		zap.Bool("read_only", config.Store.ReadOnly),
		zap.Bool("lookup_cache", c.lookup != nil),
		zap.Stringer("locale", c.translator.Language()),
	)
	return c, nil
}

// NewContainerWithDefaults creates a container from DefaultConfig.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, DefaultConfig(), opts...)
}

// ID identifies the container; it scopes its lookup cache keys.
func (c *Container) ID() uuid.UUID { return c.id }

// Config returns the configuration used by this container.
func (c *Container) Config() Config { return c.config }

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// DB returns the database handle.
func (c *Container) DB() *bun.DB { return c.db }

// Store returns the shared store.
func (c *Container) Store() *store.Store { return c.store }

// Allocator returns the id allocator shared by every table.
func (c *Container) Allocator() *idgen.Allocator { return c.alloc }

// CacheService returns the lookup cache, nil when disabled.
func (c *Container) CacheService() cache.CacheService { return c.lookup }

// KeySerializer returns the lookup cache key serializer.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keys }

// Metrics returns the entity cache collectors.
func (c *Container) Metrics() *entitycache.Metrics { return c.metrics }

// Translator returns the display translator.
func (c *Container) Translator() i18n.Translator { return c.translator }

// Table returns the runtime of s, creating it on first use. Later calls
// with a schema of the same name return the same runtime.
func (c *Container) Table(s *schema.Table) *entitycache.Table {
	t, _ := c.tables.LoadOrCompute(strings.ToUpper(s.Name()), func() *entitycache.Table {
		opts := []entitycache.Option{
			entitycache.WithLogger(c.logger),
			entitycache.WithAllocator(c.alloc),
			entitycache.WithMetrics(c.metrics),
			entitycache.WithTranslator(c.translator),
		}
		if c.lookup != nil {
			opts = append(opts, entitycache.WithLookupCache(c.lookup, c.keys, c.id.String()))
		}
		return entitycache.New(s, c.store, opts...)
	})
	return t
}

// Lookup returns the runtime registered under name.
func (c *Container) Lookup(name string) (*entitycache.Table, bool) {
	return c.tables.Load(strings.ToUpper(name))
}

// Tables returns the registered runtimes ordered by name.
func (c *Container) Tables() []*entitycache.Table {
	var out []*entitycache.Table
	c.tables.Range(func(_ string, t *entitycache.Table) bool {
		out = append(out, t)
		return true
	})
	slices.SortFunc(out, func(a, b *entitycache.Table) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}

// Register creates the runtimes of every schema.
func (c *Container) Register(schemas ...*schema.Table) []*entitycache.Table {
	out := make([]*entitycache.Table, len(schemas))
	for i, s := range schemas {
		out[i] = c.Table(s)
	}
	return out
}

// EnsureAll ensures every registered table and returns the combined errors.
func (c *Container) EnsureAll(ctx context.Context) error {
	var err error
	for _, t := range c.Tables() {
		err = multierr.Append(err, t.Ensure(ctx))
	}
	return err
}

// Close releases every table cache and closes the database when the
// container opened it.
func (c *Container) Close() error {
	for _, t := range c.Tables() {
		t.Destroy()
	}
	var err error
	if c.ownsDB {
		err = multierr.Append(err, c.db.Close())
	}
	// Sync fails on terminals; there is nothing left to flush on error.
	_ = c.logger.Sync()
	return err
}
