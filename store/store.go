// Package store is the persistence bridge between table runtimes and a SQL
// database reached through bun.
//
// Every statement is bounded by the store timeout or by a per-call timeout
// attached with WithTimeout. Engine failures are reported as *Error and an
// empty single-row lookup as ErrNotFound.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-cache/predicate"
	"github.com/goliatone/go-entity-cache/schema"
)

// Order sorts a listing by one column.
type Order struct {
	Column     string
	Descending bool
}

// Store executes table statements against a bun database.
type Store struct {
	db       *bun.DB
	timeout  time.Duration
	readOnly bool
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithStatementTimeout sets the default bound of every statement.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithReadOnly rejects every write with ErrReadOnly.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps db.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig wraps db using the timeout and read-only settings of cfg.
func FromConfig(db *bun.DB, cfg Config, opts ...Option) *Store {
	base := []Option{WithStatementTimeout(cfg.Timeout), WithReadOnly(cfg.ReadOnly)}
	return New(db, append(base, opts...)...)
}

// DB returns the underlying database.
func (s *Store) DB() *bun.DB { return s.db }

// ReadOnly reports whether writes are rejected.
func (s *Store) ReadOnly() bool { return s.readOnly }

func (s *Store) postgres() bool {
	return s.db.Dialect().Name() == dialect.PG
}

// ident quotes a table or column name. Postgres folds unquoted DDL names to
// lower case, so quoted references are folded the same way.
func (s *Store) ident(name string) bun.Ident {
	if s.postgres() {
		return bun.Ident(strings.ToLower(name))
	}
	return bun.Ident(name)
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	d := s.timeout
	if override, ok := timeoutFromContext(ctx); ok {
		d = override
	}
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (s *Store) fail(op string, t *schema.Table, err error) error {
	return &Error{Op: op, Table: t.Name(), Err: err}
}

func (s *Store) writable(op string, t *schema.Table) error {
	if s.readOnly {
		return fmt.Errorf("%s %s: %w", op, t.Name(), ErrReadOnly)
	}
	return nil
}

// TableExists reports whether the table is present in the database.
func (s *Store) TableExists(ctx context.Context, t *schema.Table) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE"
	if s.postgres() {
		query = "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, string(s.ident(t.Name()))).Scan(&n); err != nil {
		return false, s.fail("exists", t, err)
	}
	return n > 0, nil
}

// CreateTable runs the create statement and inserts every seed row inside a
// single transaction.
func (s *Store) CreateTable(ctx context.Context, t *schema.Table) error {
	if err := s.writable("create", t); err != nil {
		return err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, t.CreateStatement()); err != nil {
			return err
		}
		query := s.insertQuery(t)
		for _, row := range t.Seeds() {
			if _, err := tx.ExecContext(ctx, query, s.insertArgs(t, row)...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fail("create", t, err)
	}

	s.logger.Debug("table created",
		zap.String("table", t.Name()),
		zap.Int("seeds", len(t.Seeds())),
	)
	return nil
}

// EnsureIndexes creates every declared index that is absent. Each statement
// runs on its own; failures are collected and returned together.
func (s *Store) EnsureIndexes(ctx context.Context, t *schema.Table) error {
	if err := s.writable("index", t); err != nil {
		return err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var errs error
	for _, stmt := range t.IdempotentIndexes() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			errs = multierr.Append(errs, s.fail("index", t, fmt.Errorf("%s: %w", stmt, err)))
		}
	}
	return errs
}

// Drop removes the table if it exists.
func (s *Store) Drop(ctx context.Context, t *schema.Table) error {
	if err := s.writable("drop", t); err != nil {
		return err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS ?", s.ident(t.Name())); err != nil {
		return s.fail("drop", t, err)
	}
	return nil
}

func (s *Store) insertQuery(t *schema.Table) string {
	n := t.NumColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	return fmt.Sprintf("INSERT INTO ? (%s) VALUES (%s)", marks, marks)
}

func (s *Store) insertArgs(t *schema.Table, values []any) []any {
	args := make([]any, 0, 1+2*len(values))
	args = append(args, s.ident(t.Name()))
	for _, c := range t.Columns() {
		args = append(args, s.ident(c.Name))
	}
	return append(args, values...)
}

// Insert writes one row. values are in column order and include the key.
func (s *Store) Insert(ctx context.Context, t *schema.Table, values []any) error {
	if err := s.writable("insert", t); err != nil {
		return err
	}
	if len(values) != t.NumColumns() {
		return s.fail("insert", t, fmt.Errorf("got %d values, want %d", len(values), t.NumColumns()))
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := s.insertQuery(t)
	if _, err := s.db.ExecContext(ctx, query, s.insertArgs(t, values)...); err != nil {
		return s.fail("insert", t, err)
	}
	return nil
}

// Update rewrites every non-key column of the row whose key is held in
// values. It returns ErrNotFound when no row has that key.
func (s *Store) Update(ctx context.Context, t *schema.Table, values []any) error {
	if err := s.writable("update", t); err != nil {
		return err
	}
	if len(values) != t.NumColumns() {
		return s.fail("update", t, fmt.Errorf("got %d values, want %d", len(values), t.NumColumns()))
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pk := t.PrimaryKey()
	sets := make([]string, 0, t.NumColumns())
	args := []any{s.ident(t.Name())}
	for _, c := range t.Columns() {
		if c.PrimaryKey {
			continue
		}
		sets = append(sets, "? = ?")
		args = append(args, s.ident(c.Name), values[c.Position])
	}
	if len(sets) == 0 {
		// key-only table, nothing to rewrite
		_, err := s.SelectByID(ctx, t, values[pk.Position])
		return err
	}
	args = append(args, s.ident(pk.Name), values[pk.Position])

	query := "UPDATE ? SET " + strings.Join(sets, ", ") + " WHERE ? = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return s.fail("update", t, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", t.Name(), ErrNotFound)
	}
	return nil
}

// Delete removes the row with key id. Deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, t *schema.Table, id int64) error {
	if err := s.writable("delete", t); err != nil {
		return err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := "DELETE FROM ? WHERE ? = ?"
	if _, err := s.db.ExecContext(ctx, query, s.ident(t.Name()), s.ident(t.PrimaryKey().Name), id); err != nil {
		return s.fail("delete", t, err)
	}
	return nil
}

// SelectByID reads the row with key id. It returns ErrNotFound when there
// is none.
func (s *Store) SelectByID(ctx context.Context, t *schema.Table, id any) ([]any, error) {
	rows, err := s.selectRows(ctx, "get", t, predicate.Eq(t.PrimaryKey(), id), nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get %s: %w", t.Name(), ErrNotFound)
	}
	return rows[0], nil
}

// Select reads every row matching where, optionally ordered. A nil where
// selects every row.
func (s *Store) Select(ctx context.Context, t *schema.Table, where predicate.Expr, order *Order) ([][]any, error) {
	return s.selectRows(ctx, "select", t, where, order)
}

func (s *Store) selectRows(ctx context.Context, op string, t *schema.Table, where predicate.Expr, order *Order) ([][]any, error) {
	columns := t.Columns()

	q := s.db.NewSelect().TableExpr("?", s.ident(t.Name()))
	for _, c := range columns {
		q = s.selectColumn(q, c)
	}

	if where != nil {
		clause, args, err := predicate.Compile(where)
		if err != nil {
			return nil, s.fail(op, t, err)
		}
		q = q.Where(clause, s.foldIdents(args)...)
	}

	if order != nil && order.Column != "" {
		col, ok := t.Column(order.Column)
		if !ok {
			return nil, s.fail(op, t, fmt.Errorf("%w: %s", schema.ErrUnknownColumn, order.Column))
		}
		q = q.OrderExpr(s.orderExpr(col, order.Descending), s.ident(col.Name))
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, s.fail(op, t, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, s.fail(op, t, err)
		}
		values := make([]any, len(columns))
		for i, c := range columns {
			v, err := c.Coerce(raw[i])
			if err != nil {
				return nil, s.fail(op, t, err)
			}
			values[i] = v
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, t, err)
	}
	return out, nil
}

// selectColumn reads DATE columns as text: drivers otherwise parse
// timestamp-like text into time.Time and the stored string is lost.
func (s *Store) selectColumn(q *bun.SelectQuery, c schema.Column) *bun.SelectQuery {
	if c.Type == schema.TypeDate {
		return q.ColumnExpr("CAST(? AS TEXT) AS ?", s.ident(c.Name), s.ident(c.Name))
	}
	return q.ColumnExpr("?", s.ident(c.Name))
}

// orderExpr orders case-insensitively: NOCASE collation on SQLite, lower()
// on Postgres text columns.
func (s *Store) orderExpr(col schema.Column, desc bool) string {
	dir := " ASC"
	if desc {
		dir = " DESC"
	}
	switch {
	case s.postgres() && col.Type.IsTextual():
		return "lower(?)" + dir
	case s.postgres():
		return "?" + dir
	default:
		return "? COLLATE NOCASE" + dir
	}
}

func (s *Store) foldIdents(args []any) []any {
	if !s.postgres() {
		return args
	}
	out := make([]any, len(args))
	for i, a := range args {
		if id, ok := a.(bun.Ident); ok {
			a = s.ident(string(id))
		}
		out[i] = a
	}
	return out
}

// IsTimeout reports whether err was caused by a statement deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
