package schema

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ErrUnknownColumn is returned when a column name is not part of a table.
var ErrUnknownColumn = errors.New("schema: unknown column")

// DefaultCollatedColumns are the name-like columns sorted with locale collation.
var DefaultCollatedColumns = []string{"ACCOUNTNAME", "CATEGNAME", "PAYEENAME", "SUBCATEGNAME"}

// Definition is the raw table description produced by the schema generator.
type Definition struct {
	Name    string   `yaml:"name" json:"name"`
	Create  string   `yaml:"create" json:"create"`
	Columns []Column `yaml:"columns" json:"columns"`
	Indexes []string `yaml:"indexes" json:"indexes"`
	Seeds   [][]any  `yaml:"seeds" json:"seeds"`
}

// Validate implements validation.Validatable.
func (d Definition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Match(identPattern)),
		validation.Field(&d.Columns, validation.Required, validation.By(singlePrimaryKey)),
		validation.Field(&d.Seeds, validation.By(seedWidth(len(d.Columns)))),
	)
}

func singlePrimaryKey(value any) error {
	columns, _ := value.([]Column)
	var pks []Column
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		key := strings.ToUpper(c.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[key] = struct{}{}
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	if len(pks) != 1 {
		return fmt.Errorf("exactly one primary key column required, got %d", len(pks))
	}
	if pks[0].Type != TypeInteger {
		return fmt.Errorf("primary key %s must be INTEGER", pks[0].Name)
	}
	return nil
}

func seedWidth(width int) validation.RuleFunc {
	return func(value any) error {
		seeds, _ := value.([][]any)
		for i, row := range seeds {
			if len(row) != width {
				return fmt.Errorf("seed row %d has %d values, want %d", i, len(row), width)
			}
		}
		return nil
	}
}

// Table is the immutable schema of one table.
type Table struct {
	name    string
	create  string
	columns []Column
	byName  map[string]int
	pk      int
	indexes []string
	seeds   [][]any
}

// New validates a definition and builds the immutable table schema.
// Seed values are coerced to their column types; text seeds that carry the
// translation marker are stored without it and mark their column translated.
func New(def Definition) (*Table, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("schema: table %q: %w", def.Name, err)
	}

	t := &Table{
		name:    def.Name,
		create:  strings.TrimSpace(def.Create),
		columns: make([]Column, len(def.Columns)),
		byName:  make(map[string]int, len(def.Columns)),
		indexes: slices.Clone(def.Indexes),
	}

	for i, c := range def.Columns {
		c.Position = i
		if slices.Contains(DefaultCollatedColumns, strings.ToUpper(c.Name)) {
			c.Collated = true
		}
		t.columns[i] = c
		t.byName[strings.ToUpper(c.Name)] = i
		if c.PrimaryKey {
			t.pk = i
		}
	}

	for r, row := range def.Seeds {
		values := make([]any, len(row))
		for i, raw := range row {
			col := t.columns[i]
			if s, ok := raw.(string); ok && col.Type.IsTextual() {
				if stripped, marked := StripMarker(s); marked {
					raw = stripped
					t.columns[i].Translated = true
				}
			}
			v, err := col.Coerce(raw)
			if err != nil {
				return nil, fmt.Errorf("schema: table %q seed row %d: %w", def.Name, r, err)
			}
			values[i] = v
		}
		t.seeds = append(t.seeds, values)
	}

	if t.create == "" {
		t.create = t.deriveCreate()
	}
	return t, nil
}

// MustNew is New that panics on error; intended for static schemas.
func MustNew(def Definition) *Table {
	t, err := New(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) deriveCreate() string {
	decls := make([]string, len(t.columns))
	for i, c := range t.columns {
		decls[i] = c.Name + " " + c.SQLType()
	}
	return fmt.Sprintf("CREATE TABLE %s(%s)", t.name, strings.Join(decls, ", "))
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// CreateStatement returns the DDL used to create the table.
func (t *Table) CreateStatement() string { return t.create }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []Column { return slices.Clone(t.columns) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// ColumnAt returns the column at ordinal i.
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// Column looks a column up by name, ignoring case.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[strings.ToUpper(name)]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// MustColumn is Column that panics when the column does not exist.
func (t *Table) MustColumn(name string) Column {
	c, ok := t.Column(name)
	if !ok {
		panic(fmt.Sprintf("%v: %s.%s", ErrUnknownColumn, t.name, name))
	}
	return c
}

// Lookup returns the ordinal of a column or ErrUnknownColumn.
func (t *Table) Lookup(name string) (int, error) {
	i, ok := t.byName[strings.ToUpper(name)]
	if !ok {
		return -1, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.name, name)
	}
	return i, nil
}

// PrimaryKey returns the primary key column.
func (t *Table) PrimaryKey() Column { return t.columns[t.pk] }

// Indexes returns the declared index statements.
func (t *Table) Indexes() []string { return slices.Clone(t.indexes) }

// IdempotentIndexes returns the index statements rewritten to only create
// indexes that are absent.
func (t *Table) IdempotentIndexes() []string {
	out := make([]string, len(t.indexes))
	for i, stmt := range t.indexes {
		out[i] = IdempotentIndex(stmt)
	}
	return out
}

// Seeds returns a copy of the coerced seed rows.
func (t *Table) Seeds() [][]any {
	out := make([][]any, len(t.seeds))
	for i, row := range t.seeds {
		out[i] = slices.Clone(row)
	}
	return out
}

// TranslatedColumns lists the columns whose display text must be translated.
func (t *Table) TranslatedColumns() []string {
	var out []string
	for _, c := range t.columns {
		if c.Translated {
			out = append(out, c.Name)
		}
	}
	return out
}

// IdempotentIndex rewrites "CREATE [UNIQUE] INDEX name ..." into its
// "IF NOT EXISTS" form. Statements already in that form are returned as is.
func IdempotentIndex(stmt string) string {
	fields := strings.Fields(stmt)
	upper := strings.ToUpper(strings.Join(fields, " "))
	if strings.Contains(upper, "IF NOT EXISTS") {
		return strings.Join(fields, " ")
	}
	at := 2
	if len(fields) > 1 && strings.EqualFold(fields[1], "UNIQUE") {
		at = 3
	}
	if len(fields) < at {
		return strings.Join(fields, " ")
	}
	out := make([]string, 0, len(fields)+3)
	out = append(out, fields[:at]...)
	out = append(out, "IF", "NOT", "EXISTS")
	out = append(out, fields[at:]...)
	return strings.Join(out, " ")
}
