package schema

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the textual layout of DATE columns.
const DateLayout = "2006-01-02"

// ErrTypeMismatch is returned when a value cannot be represented in a column.
var ErrTypeMismatch = errors.New("schema: type mismatch")

// Coerce converts v into the canonical Go representation of the column:
// int64 for INTEGER, float64 for REAL/NUMERIC and string otherwise.
// A nil value yields the column zero value.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		return c.Zero(), nil
	}
	switch {
	case c.Type == TypeInteger:
		return toInt64(c, v)
	case c.Type.IsFloat():
		return toFloat64(c, v)
	default:
		return toString(v), nil
	}
}

func mismatch(c Column, v any) error {
	return fmt.Errorf("%w: column %s (%s) cannot hold %T(%v)", ErrTypeMismatch, c.Name, c.Type, v, v)
}

func toInt64(c Column, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, mismatch(c, v)
		}
		return int64(n), nil
	case float32:
		return floatToInt(c, float64(n))
	case float64:
		return floatToInt(c, n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, mismatch(c, v)
		}
		return i, nil
	case []byte:
		return toInt64(c, string(n))
	}
	return 0, mismatch(c, v)
}

func floatToInt(c Column, f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, mismatch(c, f)
	}
	return int64(f), nil
}

func toFloat64(c Column, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, mismatch(c, v)
		}
		return f, nil
	case []byte:
		return toFloat64(c, string(n))
	}
	return 0, mismatch(c, v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(DateLayout)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
