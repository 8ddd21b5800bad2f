// Package format renders argument values as request strings.
package format

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// Value formats a scalar argument.
func Value(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "", nil
		}
		return Value(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Func, reflect.Chan:
		return "", fmt.Errorf("cannot format %T as a scalar", v)
	}
	return fmt.Sprint(v), nil
}

// Values formats an argument that may be a slice into one string per element.
func Values(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case []byte, encoding.TextMarshaler, fmt.Stringer:
		s, err := Value(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		s, err := Value(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := Value(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// IsStruct reports whether v is a struct or a non-nil pointer to one.
func IsStruct(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}
