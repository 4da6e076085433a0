package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config describes how to reach the backing database.
type Config struct {
	// Driver is the database/sql driver name: "sqlite3" (default) or "postgres".
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the driver specific data source name.
	DSN string `yaml:"dsn" json:"dsn"`

	// Timeout bounds every statement. Zero disables the bound.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// ReadOnly rejects every write with ErrReadOnly.
	ReadOnly bool `yaml:"read_only" json:"read_only"`

	// MaxOpenConns caps the connection pool. SQLite defaults to a single
	// connection so in-memory databases are shared by every statement.
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:  DriverSQLite,
		DSN:     ":memory:",
		Timeout: 5 * time.Second,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
	)
}

// Open opens and pings the database described by cfg.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store: invalid config: %w", err)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}

	var db *bun.DB
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		conns := cfg.MaxOpenConns
		if conns == 0 {
			conns = 1
		}
		sqldb.SetMaxOpenConns(conns)
		sqldb.SetConnMaxLifetime(0)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}
