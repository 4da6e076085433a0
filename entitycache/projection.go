package entitycache

import (
	"bytes"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-entity-cache/schema"
)

// MarshalJSON renders the entity as an object keyed by column name in
// schema order. INTEGER columns are JSON integers, REAL and NUMERIC columns
// JSON numbers and every other column a string.
func (e *Entity) MarshalJSON() ([]byte, error) {
	values := e.Values()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.table.schema.ColumnAt(i).Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToJSON renders the entity as indented JSON.
func (e *Entity) ToJSON() ([]byte, error) {
	return indent(e.MarshalJSON())
}

// MarshalSet renders entities as an indented JSON array.
func MarshalSet(entities []*Entity) ([]byte, error) {
	if entities == nil {
		entities = []*Entity{}
	}
	return indent(json.Marshal(entities))
}

func indent(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToRow returns the stored values keyed by column name.
func (e *Entity) ToRow() map[string]any {
	values := e.Values()
	row := make(map[string]any, len(values))
	for i, v := range values {
		row[e.table.schema.ColumnAt(i).Name] = v
	}
	return row
}

// ToTemplate returns the values keyed by column name for template
// rendering. Translated columns hold their display text.
func (e *Entity) ToTemplate() map[string]any {
	values := e.Values()
	row := make(map[string]any, len(values))
	for i, v := range values {
		col := e.table.schema.ColumnAt(i)
		if col.Translated {
			v = e.table.display(col, v)
		}
		row[col.Name] = v
	}
	return row
}

// Display returns the display text of column: translated text for
// translated columns and the stored value otherwise.
func (e *Entity) Display(column string) string {
	col, ok := e.table.schema.Column(column)
	if !ok {
		return ""
	}
	return e.table.display(col, e.at(col.Position))
}

func (t *Table) display(col schema.Column, v any) string {
	raw, _ := schema.Column{Type: schema.TypeText}.Coerce(v)
	s, _ := raw.(string)
	if col.Translated {
		return t.translator.Translate(s)
	}
	return s
}
