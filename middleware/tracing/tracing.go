// Package tracing records a client span for every exchange and propagates the
// trace context in the request headers.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-thor/restproxy/transport"
)

// ScopeName is the instrumentation scope of the spans
const ScopeName = "github.com/go-thor/restproxy/middleware/tracing"

// Option is a middleware option
type Option func(*options)

type options struct {
	provider   trace.TracerProvider
	propagator propagation.TextMapPropagator
}

// WithTracerProvider sets the tracer provider; the global one is used by default
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.provider = tp
	}
}

// WithPropagator sets the propagator; the global one is used by default
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.propagator = p
	}
}

// New creates a tracing middleware
func New(opts ...Option) transport.Middleware {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.provider == nil {
		o.provider = otel.GetTracerProvider()
	}
	if o.propagator == nil {
		o.propagator = otel.GetTextMapPropagator()
	}
	tracer := o.provider.Tracer(ScopeName)

	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			name := "HTTP " + req.Method
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", req.Method),
				attribute.String("url.full", req.URL),
			}
			if inv := req.Invocation; inv != nil {
				attrs = append(attrs, attribute.String("restproxy.invocation.id", inv.ID))
				if inv.Metadata != nil {
					name = inv.Metadata.FullName()
					attrs = append(attrs, attribute.String("restproxy.method", inv.Metadata.FullName()))
				}
			}

			ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
			defer span.End()

			out := req.Clone()
			o.propagator.Inject(ctx, propagation.MapCarrier(out.Header))
			for k, v := range out.Header {
				if ck := http.CanonicalHeaderKey(k); ck != k {
					delete(out.Header, k)
					out.Header[ck] = v
				}
			}

			h, err := next(ctx, out)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return h, err
			}
			status := h.StatusCode()
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return h, nil
		}
	}
}
