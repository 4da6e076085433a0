package testsupport

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-cache/schema"
	"github.com/goliatone/go-entity-cache/store"
)

// OpenMemoryDB opens a private in-memory SQLite database closed at the end
// of the test.
func OpenMemoryDB(t testing.TB) *bun.DB {
	t.Helper()

	db, err := store.Open(context.Background(), store.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewStore returns a store over a fresh in-memory database.
func NewStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	return store.New(OpenMemoryDB(t), opts...)
}

// CurrencyDefinition is the currency table used across tests: one seed row
// whose name carries the translation marker.
func CurrencyDefinition() schema.Definition {
	return schema.Definition{
		Name: "Currencyformats_V1",
		Columns: []schema.Column{
			{Name: "CURRENCYID", Type: schema.TypeInteger, PrimaryKey: true},
			{Name: "CURRENCYNAME", Type: schema.TypeText},
			{Name: "CURRENCY_SYMBOL", Type: schema.TypeText},
		},
		Indexes: []string{
			"CREATE INDEX IDX_CURRENCYFORMATS_SYMBOL ON Currencyformats_V1(CURRENCY_SYMBOL)",
		},
		Seeds: [][]any{
			{1, "_tr_US Dollar", "USD"},
		},
	}
}

// CurrencySchema builds the schema of CurrencyDefinition.
func CurrencySchema(t testing.TB) *schema.Table {
	t.Helper()

	tbl, err := schema.New(CurrencyDefinition())
	if err != nil {
		t.Fatalf("failed to build currency schema: %v", err)
	}
	return tbl
}
