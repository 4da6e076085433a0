package schema

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ColumnType is the declared storage type of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeNumeric
	TypeInteger
	TypeReal
	TypeBlob
	TypeDate
)

var columnTypeNames = map[ColumnType]string{
	TypeText:    "TEXT",
	TypeNumeric: "NUMERIC",
	TypeInteger: "INTEGER",
	TypeReal:    "REAL",
	TypeBlob:    "BLOB",
	TypeDate:    "DATE",
}

// ParseColumnType maps a declared SQL type name to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for t, n := range columnTypeNames {
		if n == name {
			return t, nil
		}
	}
	return TypeText, fmt.Errorf("schema: unknown column type %q", s)
}

func (t ColumnType) String() string {
	if n, ok := columnTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// IsTextual reports whether values of this type are held as strings.
func (t ColumnType) IsTextual() bool {
	return t == TypeText || t == TypeBlob || t == TypeDate
}

// IsFloat reports whether values of this type are held as float64.
func (t ColumnType) IsFloat() bool {
	return t == TypeReal || t == TypeNumeric
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ColumnType) UnmarshalText(b []byte) error {
	parsed, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Column describes a single table column.
type Column struct {
	Name       string     `yaml:"name" json:"name"`
	Type       ColumnType `yaml:"type" json:"type"`
	Nullable   bool       `yaml:"nullable" json:"nullable"`
	PrimaryKey bool       `yaml:"primary_key" json:"primary_key"`

	// Collated columns sort with locale collation on case-folded text.
	Collated bool `yaml:"collated" json:"collated"`

	// Translated columns hold source text whose display form is resolved
	// through a translator before it is shown or sorted.
	Translated bool `yaml:"translated" json:"translated"`

	// Position is the ordinal of the column, assigned by New.
	Position int `yaml:"-" json:"position"`
}

// Validate implements validation.Validatable.
func (c Column) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Match(identPattern)),
		validation.Field(&c.Type, validation.In(TypeText, TypeNumeric, TypeInteger, TypeReal, TypeBlob, TypeDate)),
	)
}

// Zero returns the default value of a column in a fresh entity.
func (c Column) Zero() any {
	switch {
	case c.Type == TypeInteger:
		return int64(0)
	case c.Type.IsFloat():
		return float64(0)
	default:
		return ""
	}
}

// SQLType renders the declaration used when a create statement is derived.
func (c Column) SQLType() string {
	decl := c.Type.String()
	if c.PrimaryKey {
		return decl + " PRIMARY KEY"
	}
	if !c.Nullable {
		decl += " NOT NULL"
	}
	return decl
}
