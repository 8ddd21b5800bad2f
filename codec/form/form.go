// Package form provides the application/x-www-form-urlencoded writer and reader.
// Structs are mapped to fields with gorilla/schema using `schema` struct tags.
package form

import (
	"net/url"
	"reflect"

	"github.com/gorilla/schema"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

var (
	encoder = schema.NewEncoder()
	decoder = schema.NewDecoder()

	valuesType = reflect.TypeOf(url.Values{})
)

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// Encode flattens a struct (or pointer to struct) into form values.
func Encode(v any) (url.Values, error) {
	values := make(url.Values)
	if err := encoder.Encode(v, values); err != nil {
		return nil, err
	}
	return values, nil
}

// Writer encodes the invocation's form fields
type Writer struct{}

// NewWriter creates a form writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write encodes inv.Form; a body argument, if any, is flattened in as well
func (w *Writer) Write(inv *invocation.Invocation) ([]byte, error) {
	values := make(url.Values, len(inv.Form))
	for k, v := range inv.Form {
		values[k] = append([]string(nil), v...)
	}
	if inv.Body != nil {
		extra, err := Encode(inv.Body)
		if err != nil {
			return nil, errors.Serialization(err, "encode %T as form", inv.Body)
		}
		for k, v := range extra {
			values[k] = append(values[k], v...)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	return []byte(values.Encode()), nil
}

// Reader decodes form-url-encoded responses
type Reader struct {
	ignoreStatus bool
}

// NewReader creates a form reader
func NewReader(ignoreStatus bool) *Reader {
	return &Reader{ignoreStatus: ignoreStatus}
}

// Read decodes res into url.Values or a struct type
func (r *Reader) Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	if !res.IsSuccess() && !r.ignoreStatus {
		return nil, codec.RemoteError(res, md, unmarshal)
	}
	return codec.Decode(res, md, unmarshal)
}

func unmarshal(data []byte, v any) error {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.Elem().Type().ConvertibleTo(valuesType) && rv.Elem().Kind() == reflect.Map {
		rv.Elem().Set(reflect.ValueOf(values).Convert(rv.Elem().Type()))
		return nil
	}
	return decoder.Decode(v, values)
}

var (
	_ codec.Writer = (*Writer)(nil)
	_ codec.Reader = (*Reader)(nil)
)
