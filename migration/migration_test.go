package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-entity-cache/pkg/testsupport"
	"github.com/goliatone/go-entity-cache/schema"
)

func currencySchema() *schema.Table {
	return schema.MustNew(schema.Definition{
		Name: "Currencyformats_V1",
		Columns: []schema.Column{
			{Name: "CURRENCYID", Type: schema.TypeInteger, PrimaryKey: true},
			{Name: "CURRENCYNAME", Type: schema.TypeText},
			{Name: "PFX_SYMBOL", Type: schema.TypeText, Nullable: true},
			{Name: "CURRENCY_SYMBOL", Type: schema.TypeText},
		},
		Indexes: []string{"CREATE INDEX IDX_CURRENCY_SYMBOL ON Currencyformats_V1(CURRENCY_SYMBOL)"},
		Seeds: [][]any{
			{1, "_tr_US Dollar", "$", "USD"},
			{2, "_tr_Euro", "€", "EUR"},
			{3, "Pa'anga", "T$", "TOP"},
		},
	})
}

func payeeSchema() *schema.Table {
	return schema.MustNew(schema.Definition{
		Name: "PAYEE_V1",
		Columns: []schema.Column{
			{Name: "PAYEEID", Type: schema.TypeInteger, PrimaryKey: true},
			{Name: "PAYEENAME", Type: schema.TypeText},
		},
	})
}

func TestSeedScript(t *testing.T) {
	script := SeedScript([]*schema.Table{currencySchema(), payeeSchema()})

	if strings.Contains(script, "_tr_US") || strings.Contains(script, "'_tr_") {
		t.Errorf("translation markers must be removed:\n%s", script)
	}
	for _, want := range []string{
		"CREATE TABLE Currencyformats_V1(CURRENCYID INTEGER PRIMARY KEY, CURRENCYNAME TEXT NOT NULL, PFX_SYMBOL TEXT, CURRENCY_SYMBOL TEXT NOT NULL);\n",
		"INSERT INTO Currencyformats_V1 VALUES (1, 'US Dollar', '$', 'USD');\n",
		"INSERT INTO Currencyformats_V1 VALUES (3, 'Pa''anga', 'T$', 'TOP');\n",
		"CREATE INDEX IF NOT EXISTS IDX_CURRENCY_SYMBOL ON Currencyformats_V1(CURRENCY_SYMBOL);\n",
		"CREATE TABLE PAYEE_V1(PAYEEID INTEGER PRIMARY KEY, PAYEENAME TEXT NOT NULL);\n",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script is missing %q:\n%s", want, script)
		}
	}

	testsupport.CompareWithGolden(t, testsupport.GoldenPath(SeedScriptFile), []byte(script))
}

func TestSeedScriptBuildsDatabase(t *testing.T) {
	ctx := context.Background()
	db := testsupport.OpenMemoryDB(t)

	if _, err := db.ExecContext(ctx, SeedScript([]*schema.Table{currencySchema()})); err != nil {
		t.Fatalf("seed script failed: %v", err)
	}

	var name string
	if err := db.QueryRowContext(ctx, "SELECT CURRENCYNAME FROM Currencyformats_V1 WHERE CURRENCY_SYMBOL = 'EUR'").Scan(&name); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if name != "Euro" {
		t.Errorf("expected Euro, got %q", name)
	}
}

func TestCurrencyPatch(t *testing.T) {
	full, err := CurrencyPatch(currencySchema(), false)
	if err != nil {
		t.Fatalf("CurrencyPatch() failed: %v", err)
	}
	want := `-- MMEX Debug SQL - Update --
-- MMEX db version required 10
-- This script will add missing currencies and will overwrite all currencies params in your database.
INSERT OR IGNORE INTO Currencyformats_V1 (CURRENCYNAME, CURRENCY_SYMBOL) VALUES ('US Dollar', 'USD');
UPDATE OR IGNORE Currencyformats_V1 SET CURRENCYNAME='US Dollar', PFX_SYMBOL='$' WHERE CURRENCY_SYMBOL='USD';
INSERT OR IGNORE INTO Currencyformats_V1 (CURRENCYNAME, CURRENCY_SYMBOL) VALUES ('Euro', 'EUR');
UPDATE OR IGNORE Currencyformats_V1 SET CURRENCYNAME='Euro', PFX_SYMBOL='€' WHERE CURRENCY_SYMBOL='EUR';
INSERT OR IGNORE INTO Currencyformats_V1 (CURRENCYNAME, CURRENCY_SYMBOL) VALUES ('Pa''anga', 'TOP');
UPDATE OR IGNORE Currencyformats_V1 SET CURRENCYNAME='Pa''anga', PFX_SYMBOL='T$' WHERE CURRENCY_SYMBOL='TOP';`
	if full != want {
		t.Errorf("CurrencyPatch(false) =\n%s\nwant\n%s", full, want)
	}

	unicode, err := CurrencyPatch(currencySchema(), true)
	if err != nil {
		t.Fatalf("CurrencyPatch() failed: %v", err)
	}
	if !strings.Contains(unicode, "params containing UTF8 in your database.") {
		t.Errorf("unexpected unicode header:\n%s", unicode)
	}
	if strings.Contains(unicode, "'USD'") || strings.Contains(unicode, "'TOP'") {
		t.Errorf("ASCII-only currencies must be skipped:\n%s", unicode)
	}
	if !strings.Contains(unicode, "WHERE CURRENCY_SYMBOL='EUR';") {
		t.Errorf("expected the EUR update:\n%s", unicode)
	}
}

func TestCurrencyPatchRejectsOtherTables(t *testing.T) {
	if _, err := CurrencyPatch(payeeSchema(), false); !errors.Is(err, ErrNotCurrencyTable) {
		t.Errorf("CurrencyPatch(PAYEE_V1) = %v", err)
	}

	incomplete := schema.MustNew(schema.Definition{
		Name: "CURRENCYFORMATS_V1",
		Columns: []schema.Column{
			{Name: "CURRENCYID", Type: schema.TypeInteger, PrimaryKey: true},
			{Name: "CURRENCYNAME", Type: schema.TypeText},
		},
	})
	if _, err := CurrencyPatch(incomplete, false); !errors.Is(err, schema.ErrUnknownColumn) {
		t.Errorf("expected missing symbol column error, got %v", err)
	}
}

func TestWriteAll(t *testing.T) {
	tests := []struct {
		name   string
		tables []*schema.Table
		want   []string
	}{
		{
			name:   "with currency table",
			tables: []*schema.Table{payeeSchema(), currencySchema()},
			want:   []string{SeedScriptFile, UnicodePatchFile, PatchFile},
		},
		{
			name:   "without currency table",
			tables: []*schema.Table{payeeSchema()},
			want:   []string{SeedScriptFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			written, err := WriteAll(dir, tt.tables)
			if err != nil {
				t.Fatalf("WriteAll() failed: %v", err)
			}
			if len(written) != len(tt.want) {
				t.Fatalf("WriteAll() wrote %v, want %v", written, tt.want)
			}
			for i, name := range tt.want {
				if written[i] != filepath.Join(dir, name) {
					t.Errorf("written[%d] = %s, want %s", i, written[i], name)
				}
				if _, err := os.Stat(written[i]); err != nil {
					t.Errorf("expected %s to exist: %v", written[i], err)
				}
			}
		})
	}
}
