// Package text provides the text/plain writer and reader.
package text

import (
	"reflect"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/internal/format"
	"github.com/go-thor/restproxy/invocation"
)

// Writer writes the string form of the body argument
type Writer struct{}

// NewWriter creates a plain text writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write formats inv.Body; a nil body produces no payload
func (w *Writer) Write(inv *invocation.Invocation) ([]byte, error) {
	if inv.Body == nil {
		return nil, nil
	}
	s, err := format.Value(inv.Body)
	if err != nil {
		return nil, errors.Serialization(err, "format %T as text", inv.Body)
	}
	return []byte(s), nil
}

// Reader returns response bodies as strings
type Reader struct {
	ignoreStatus bool
}

// NewReader creates a plain text reader
func NewReader(ignoreStatus bool) *Reader {
	return &Reader{ignoreStatus: ignoreStatus}
}

// Read returns the body as a value of the method's result type, which must have
// string or []byte as its underlying type.
func (r *Reader) Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	if !res.IsSuccess() && !r.ignoreStatus {
		return nil, codec.RemoteError(res, md, nil)
	}
	if md.Result == nil {
		return nil, nil
	}
	switch {
	case md.Result.Kind() == reflect.String:
		return reflect.ValueOf(string(res.Body)).Convert(md.Result).Interface(), nil
	case md.Result.Kind() == reflect.Slice && md.Result.Elem().Kind() == reflect.Uint8:
		return reflect.ValueOf(res.Body).Convert(md.Result).Interface(), nil
	default:
		return nil, errors.Serialization(nil, "text/plain response cannot populate %s", md.Result)
	}
}

var (
	_ codec.Writer = (*Writer)(nil)
	_ codec.Reader = (*Reader)(nil)
)
