package cache

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the serializer used for row lookup keys.
// Scalars render as their plain value, so a key built from a namespace and
// an id reads "get::<namespace>::<id>" and namespaces can be invalidated by
// prefix.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

// SerializeKey joins method and the serialized args with KeySeparator.
func (s defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.value(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s defaultKeySerializer) value(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "nil"
	}
	if str, ok := v.(fmt.Stringer); ok {
		return str.String()
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.value(rv.Elem().Interface())
	case reflect.Func, reflect.Chan:
		return fmt.Sprintf("%s:%p", rv.Kind(), v)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = s.value(rv.Index(i).Interface())
		}
		return "[" + strings.Join(items, ",") + "]"
	case reflect.Map:
		pairs := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pairs = append(pairs, s.value(iter.Key().Interface())+"="+s.value(iter.Value().Interface()))
		}
		slices.Sort(pairs)
		return "{" + strings.Join(pairs, ",") + "}"
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "type:" + rv.Type().String()
	}
	return string(data)
}
