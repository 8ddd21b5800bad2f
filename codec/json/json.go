// Package json provides the application/json writer and reader backed by json-iterator.
package json

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// DefaultAPI is the object mapper used when none is configured
var DefaultAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Writer serializes the body argument as JSON
type Writer struct {
	api jsoniter.API
}

// NewWriter creates a JSON writer. A nil api uses DefaultAPI.
func NewWriter(api jsoniter.API) *Writer {
	if api == nil {
		api = DefaultAPI
	}
	return &Writer{api: api}
}

// Write marshals inv.Body; a nil body produces no payload
func (w *Writer) Write(inv *invocation.Invocation) ([]byte, error) {
	if inv.Body == nil {
		return nil, nil
	}
	data, err := w.api.Marshal(inv.Body)
	if err != nil {
		return nil, errors.Serialization(err, "marshal %T as JSON", inv.Body)
	}
	return data, nil
}

// Reader decodes JSON responses
type Reader struct {
	api          jsoniter.API
	ignoreStatus bool
}

// NewReader creates a JSON reader. When ignoreStatus is set, non-2xx bodies are decoded
// as results instead of producing remote status errors.
func NewReader(api jsoniter.API, ignoreStatus bool) *Reader {
	if api == nil {
		api = DefaultAPI
	}
	return &Reader{api: api, ignoreStatus: ignoreStatus}
}

// Read decodes res into the method's result type
func (r *Reader) Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	if !res.IsSuccess() && !r.ignoreStatus {
		return nil, codec.RemoteError(res, md, r.api.Unmarshal)
	}
	return codec.Decode(res, md, r.api.Unmarshal)
}

var (
	_ codec.Writer = (*Writer)(nil)
	_ codec.Reader = (*Reader)(nil)
)
