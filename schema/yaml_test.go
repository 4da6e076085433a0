package schema

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFile(t *testing.T) {
	tables, err := LoadFile(filepath.Join("testdata", "currency.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(tables))
	}

	currency := tables[0]
	if currency.NumColumns() != 3 {
		t.Errorf("expected 3 columns, got %d", currency.NumColumns())
	}
	if currency.MustColumn("CURRENCYID").Type != TypeInteger {
		t.Error("expected CURRENCYID to be INTEGER")
	}
	if len(currency.Seeds()) != 2 {
		t.Errorf("expected 2 seeds, got %d", len(currency.Seeds()))
	}
	if got := currency.IdempotentIndexes()[0]; !strings.Contains(got, "IF NOT EXISTS") {
		t.Errorf("expected idempotent index, got %s", got)
	}

	payee := tables[1]
	if !strings.Contains(payee.CreateStatement(), "COLLATE NOCASE") {
		t.Errorf("expected explicit create statement to be kept, got %s", payee.CreateStatement())
	}
	if !payee.MustColumn("CATEGID").Nullable {
		t.Error("expected CATEGID to be nullable")
	}
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown type",
			doc: `tables:
  - name: T
    columns:
      - {name: ID, type: UUID, primary_key: true}`,
		},
		{
			name: "unknown field",
			doc: `tables:
  - name: T
    colour: red
    columns:
      - {name: ID, type: INTEGER, primary_key: true}`,
		},
		{
			name: "no columns",
			doc: `tables:
  - name: T`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadYAML(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}
