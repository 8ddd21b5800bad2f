package restproxy

import (
	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/transport"
)

type options struct {
	transport   transport.Transport
	middlewares []transport.Middleware
	logger      hclog.Logger
	factory     MetadataFactory
	writers     map[string]codec.Writer
	readers     map[string]codec.Reader
	preload     bool
}

// Option configures a Client
type Option func(*options)

// WithTransport sets the transport. The default is an HTTP transport built from the client configuration.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithMiddleware adds middlewares around Transport.Send. The first one is the outermost.
func WithMiddleware(middlewares ...transport.Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithLogger sets the logger
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetadataFactory replaces the default metadata factory
func WithMetadataFactory(f MetadataFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithWriter registers a request writer, replacing any default for contentType
func WithWriter(contentType string, w codec.Writer) Option {
	return func(o *options) {
		if o.writers == nil {
			o.writers = make(map[string]codec.Writer)
		}
		o.writers[contentType] = w
	}
}

// WithReader registers a response reader, replacing any default for contentType
func WithReader(contentType string, r codec.Reader) Option {
	return func(o *options) {
		if o.readers == nil {
			o.readers = make(map[string]codec.Reader)
		}
		o.readers[contentType] = r
	}
}

// WithPreload resolves the metadata of every method in New, which fails if any declaration is invalid
func WithPreload() Option {
	return func(o *options) {
		o.preload = true
	}
}
