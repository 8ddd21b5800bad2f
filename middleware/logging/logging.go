// Package logging logs every exchange sent through the transport.
package logging

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/transport"
)

// Option is a middleware option
type Option func(*options)

type options struct {
	level   hclog.Level
	headers bool
}

// WithLevel sets the level successful exchanges are logged at. Failures are logged at Error.
func WithLevel(level hclog.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithHeaders includes request header names in the log line
func WithHeaders() Option {
	return func(o *options) {
		o.headers = true
	}
}

// New creates a logging middleware writing to logger
func New(logger hclog.Logger, opts ...Option) transport.Middleware {
	o := &options{level: hclog.Debug}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("http")

	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			start := time.Now()
			h, err := next(ctx, req)

			args := []interface{}{"method", req.Method, "url", req.URL, "duration", time.Since(start)}
			if req.Invocation != nil {
				args = append(args, "id", req.Invocation.ID)
			}
			if o.headers {
				names := make([]string, 0, len(req.Header))
				for k := range req.Header {
					names = append(names, k)
				}
				args = append(args, "headers", names)
			}
			if err != nil {
				logger.Error("request failed", append(args, "error", err)...)
				return h, err
			}
			logger.Log(o.level, "request sent", append(args, "status", h.StatusCode())...)
			return h, nil
		}
	}
}
