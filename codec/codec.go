// Package codec defines the content-type keyed request writers and response readers
// used by the dispatcher, and the registry they are looked up in.
package codec

import (
	"mime"
	"strings"
	"sync"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

// Content types registered by default
const (
	ContentTypeJSON     = "application/json"
	ContentTypeForm     = "application/x-www-form-urlencoded"
	ContentTypeText     = "text/plain"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Writer serializes the body of an invocation.
type Writer interface {
	// Write returns the request body, or nil for no body
	Write(inv *invocation.Invocation) ([]byte, error)
}

// Reader decodes a response into the method's result.
type Reader interface {
	// Read returns the decoded result, or an error for a failed exchange
	Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error)
}

// WriterFunc adapts a function to Writer
type WriterFunc func(inv *invocation.Invocation) ([]byte, error)

// Write calls f(inv)
func (f WriterFunc) Write(inv *invocation.Invocation) ([]byte, error) {
	return f(inv)
}

// ReaderFunc adapts a function to Reader
type ReaderFunc func(res *invocation.Result, md *invocation.MethodMetadata) (any, error)

// Read calls f(res, md)
func (f ReaderFunc) Read(res *invocation.Result, md *invocation.MethodMetadata) (any, error) {
	return f(res, md)
}

// Registry maps content types to codecs.
// It is populated at construction and read concurrently afterwards.
type Registry[C any] struct {
	mu     sync.RWMutex
	codecs map[string]C
}

// NewRegistry creates an empty registry
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{
		codecs: make(map[string]C),
	}
}

// Register registers c for contentType, replacing any previous codec
func (r *Registry[C]) Register(contentType string, c C) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[Normalize(contentType)] = c
}

// Resolve returns the codec registered for contentType
func (r *Registry[C]) Resolve(contentType string) (C, error) {
	var zero C
	key := Normalize(contentType)
	if key == "" {
		return zero, errors.UnsupportedContentType(contentType)
	}

	r.mu.RLock()
	c, ok := r.codecs[key]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.UnsupportedContentType(contentType)
	}
	return c, nil
}

// ContentTypes returns the registered content types
func (r *Registry[C]) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.codecs))
	for ct := range r.codecs {
		types = append(types, ct)
	}
	return types
}

// Normalize lower-cases a content type and drops its parameters.
func Normalize(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(contentType)
}
