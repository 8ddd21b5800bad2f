// Package protobuf provides the application/x-protobuf writer and reader.
package protobuf

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// Writer marshals a proto.Message body
type Writer struct{}

// NewWriter creates a protobuf writer
func NewWriter() *Writer {
	return &Writer{}
}

// Write marshals inv.Body using protobuf
func (w *Writer) Write(inv *invocation.Invocation) ([]byte, error) {
	if inv.Body == nil {
		return nil, nil
	}
	message, ok := inv.Body.(proto.Message)
	if !ok {
		return nil, errors.Serialization(nil, "type %T is not proto.Message", inv.Body)
	}
	data, err := proto.Marshal(message)
	if err != nil {
		return nil, errors.Serialization(err, "marshal %T as protobuf", inv.Body)
	}
	return data, nil
}

// Reader decodes protobuf responses. The result type must be a message pointer type.
type Reader struct {
	ignoreStatus bool
}

// NewReader creates a protobuf reader
func NewReader(ignoreStatus bool) *Reader {
	return &Reader{ignoreStatus: ignoreStatus}
}

// Read unmarshals res into a new message of the method's result type
func (r *Reader) Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	if !res.IsSuccess() && !r.ignoreStatus {
		return nil, codec.RemoteError(res, md, unmarshal)
	}
	if md.Result == nil {
		return nil, nil
	}
	if md.Result.Kind() != reflect.Pointer {
		return nil, errors.Serialization(nil, "protobuf result %s must be a message pointer", md.Result)
	}
	message, ok := reflect.New(md.Result.Elem()).Interface().(proto.Message)
	if !ok {
		return nil, errors.Serialization(nil, "type %s is not proto.Message", md.Result)
	}
	if err := proto.Unmarshal(res.Body, message); err != nil {
		return nil, errors.Serialization(err, "decode %s response", md.FullName())
	}
	return message, nil
}

// unmarshal decodes into a declared error type; v is a pointer to that type
func unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Elem().Kind() == reflect.Pointer {
		rv.Elem().Set(reflect.New(rv.Elem().Type().Elem()))
		v = rv.Elem().Interface()
	}
	message, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("type %T is not proto.Message", v)
	}
	return proto.Unmarshal(data, message)
}

var (
	_ codec.Writer = (*Writer)(nil)
	_ codec.Reader = (*Reader)(nil)
)
