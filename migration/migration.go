// Package migration renders the portable SQL scripts derived from table
// schemas: a seed script that builds a clean database and the currency
// upgrade patches applied to existing databases.
package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	bunschema "github.com/uptrace/bun/schema"

	"github.com/goliatone/go-entity-cache/schema"
)

// File names written by WriteAll.
const (
	SeedScriptFile   = "sql_tables.sql"
	UnicodePatchFile = "currencies_update_patch_unicode_only.mmdbg"
	PatchFile        = "currencies_update_patch.mmdbg"
)

// CurrencyTable is the table the upgrade patches are generated for.
const CurrencyTable = "CURRENCYFORMATS_V1"

// ErrNotCurrencyTable is returned by CurrencyPatch for any other table.
var ErrNotCurrencyTable = errors.New("migration: not a currency table")

const seedHeader = `-- NOTE:
-- This file has been AUTO GENERATED from the table schemas.
-- All translation identifiers "_tr_" have been removed.
-- This file can be used to manually generate a database.

`

const patchHeader = `-- MMEX Debug SQL - Update --
-- MMEX db version required 10
-- This script will add missing currencies and will overwrite all currencies params %sin your database.`

// Scripts target SQLite; literals are quoted by its bun dialect.
var formatter = bunschema.NewFormatter(sqlitedialect.New())

// SeedScript renders the create statement, seed rows and indexes of every
// table. Translation markers are removed from the output.
func SeedScript(tables []*schema.Table) string {
	var b strings.Builder
	b.WriteString(seedHeader)

	for i, t := range tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimSuffix(t.CreateStatement(), ";"))
		b.WriteString(";\n")
		for _, row := range t.Seeds() {
			for j, v := range row {
				if s, ok := v.(string); ok {
					row[j] = schema.RemoveMarkers(s)
				}
			}
			b.WriteString(formatter.FormatQuery("INSERT INTO ? VALUES (?);\n", bun.Safe(t.Name()), bun.In(row)))
		}
		for _, stmt := range t.IdempotentIndexes() {
			b.WriteString(strings.TrimSuffix(stmt, ";"))
			b.WriteString(";\n")
		}
	}
	return b.String()
}

// IsCurrencyTable reports whether t is the currency table.
func IsCurrencyTable(t *schema.Table) bool {
	return strings.EqualFold(t.Name(), CurrencyTable)
}

// CurrencyPatch renders the upgrade script of the currency table: each seed
// currency is inserted when missing and its parameters are overwritten,
// matching on CURRENCY_SYMBOL. With unicodeOnly only currencies whose
// parameters hold non-ASCII text are included.
func CurrencyPatch(t *schema.Table, unicodeOnly bool) (string, error) {
	if !IsCurrencyTable(t) {
		return "", fmt.Errorf("%w: %s", ErrNotCurrencyTable, t.Name())
	}
	nameAt, err := t.Lookup("CURRENCYNAME")
	if err != nil {
		return "", err
	}
	symbolAt, err := t.Lookup("CURRENCY_SYMBOL")
	if err != nil {
		return "", err
	}
	pk := t.PrimaryKey().Position

	var b strings.Builder
	if unicodeOnly {
		fmt.Fprintf(&b, patchHeader, "containing UTF8 ")
	} else {
		fmt.Fprintf(&b, patchHeader, "")
	}

	table := bun.Safe(t.Name())
	for _, row := range t.Seeds() {
		assignments := make([]string, 0, len(row))
		for i, v := range row {
			if i == pk || i == symbolAt {
				continue
			}
			assignments = append(assignments,
				formatter.FormatQuery("?=?", bun.Safe(t.ColumnAt(i).Name), literal(v)))
		}
		set := strings.Join(assignments, ", ")
		if unicodeOnly && schema.IsASCII(set) {
			continue
		}

		symbol := literal(row[symbolAt])
		b.WriteByte('\n')
		b.WriteString(formatter.FormatQuery("INSERT OR IGNORE INTO ? (CURRENCYNAME, CURRENCY_SYMBOL) VALUES (?, ?);\n",
			table, literal(row[nameAt]), symbol))
		b.WriteString(formatter.FormatQuery("UPDATE OR IGNORE ? SET ? WHERE CURRENCY_SYMBOL=?;",
			table, bun.Safe(set), symbol))
	}
	return b.String(), nil
}

// literal renders a seed value as marker-free text.
func literal(v any) string {
	text, _ := schema.Column{Type: schema.TypeText}.Coerce(v)
	s, _ := text.(string)
	return schema.RemoveMarkers(s)
}

// WriteAll writes the seed script for tables into dir and, when tables
// include the currency table, both upgrade patches. It returns the written
// paths.
func WriteAll(dir string, tables []*schema.Table) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("migration: create %s: %w", dir, err)
	}

	var written []string
	write := func(name, content string) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("migration: write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(SeedScriptFile, SeedScript(tables)); err != nil {
		return written, err
	}

	for _, t := range tables {
		if !IsCurrencyTable(t) {
			continue
		}
		for _, p := range []struct {
			file        string
			unicodeOnly bool
		}{
			{UnicodePatchFile, true},
			{PatchFile, false},
		} {
			script, err := CurrencyPatch(t, p.unicodeOnly)
			if err != nil {
				return written, err
			}
			if err := write(p.file, script); err != nil {
				return written, err
			}
		}
		break
	}
	return written, nil
}
