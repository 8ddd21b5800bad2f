// Package retry resends requests that failed in transport or were answered
// with a retryable status. The core never retries on its own.
//
// A retry resends the same request. Invocations marked OneShot, those carrying
// a synchronized nonce or a digest, are never resent: the server would see a
// replayed nonce or signature. Retry those at the call site so a fresh
// invocation is built.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

// Options defines options for the retry middleware
type Options struct {
	// MaxRetries is the maximum number of retries after the first attempt
	MaxRetries int
	// InitialInterval is the first backoff delay
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay
	MaxInterval time.Duration
	// MaxWait caps an advertised Retry-After; longer waits are not retried
	MaxWait time.Duration
	// RetryableStatuses are the status codes worth another attempt
	RetryableStatuses []int
	// OnRetry is called before each retry with the attempt number and the reason
	OnRetry func(ctx context.Context, attempt int, reason error)
	// Logger receives a debug line per retry
	Logger hclog.Logger
}

// Option configures the retry middleware
type Option func(*Options)

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(max int) Option {
	return func(o *Options) {
		o.MaxRetries = max
	}
}

// WithBackoff sets the initial and maximum backoff delay
func WithBackoff(initial, max time.Duration) Option {
	return func(o *Options) {
		o.InitialInterval = initial
		o.MaxInterval = max
	}
}

// WithMaxWait sets the longest Retry-After delay that is honored
func WithMaxWait(d time.Duration) Option {
	return func(o *Options) {
		o.MaxWait = d
	}
}

// WithRetryableStatuses sets the retryable status codes
func WithRetryableStatuses(codes ...int) Option {
	return func(o *Options) {
		o.RetryableStatuses = codes
	}
}

// WithOnRetry sets the retry callback
func WithOnRetry(fn func(ctx context.Context, attempt int, reason error)) Option {
	return func(o *Options) {
		o.OnRetry = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger hclog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// New creates a retry middleware
func New(opts ...Option) transport.Middleware {
	o := &Options{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxWait:         30 * time.Second,
		RetryableStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = hclog.NewNullLogger()
	}
	logger := o.Logger.Named("retry")

	retryable := make(map[int]bool, len(o.RetryableStatuses))
	for _, code := range o.RetryableStatuses {
		retryable[code] = true
	}

	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = o.InitialInterval
			eb.MaxInterval = o.MaxInterval
			eb.MaxElapsedTime = 0
			b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(o.MaxRetries)), ctx)
			b.Reset()

			for attempt := 1; ; attempt++ {
				h, err := next(ctx, req)

				wait, reason := classify(h, err, retryable)
				if reason == nil || oneShot(req) {
					return h, err
				}
				if wait > o.MaxWait {
					return h, err
				}
				delay := b.NextBackOff()
				if delay == backoff.Stop {
					return h, err
				}
				if wait > delay {
					delay = wait
				}

				// The retried exchange replaces this one
				if h != nil {
					_ = h.Close()
				}
				logger.Debug("retrying request", "url", req.URL, "attempt", attempt, "delay", delay, "reason", reason)
				if o.OnRetry != nil {
					o.OnRetry(ctx, attempt, reason)
				}

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, errors.Transport(ctx.Err(), "retry aborted")
				case <-timer.C:
				}
			}
		}
	}
}

func oneShot(req *transport.Request) bool {
	return req.Invocation != nil && req.Invocation.OneShot
}

// classify returns any advertised delay and why the exchange should be retried, or nil
func classify(h transport.Handle, err error, retryable map[int]bool) (time.Duration, error) {
	if err != nil {
		if errors.KindOf(err) != errors.KindTransport || errors.Is(err, context.Canceled) {
			return 0, nil
		}
		return 0, err
	}
	status := h.StatusCode()
	if !retryable[status] {
		return 0, nil
	}
	wait, _ := invocation.ParseRetryAfter(h.Header(), time.Now())
	return wait, errors.RemoteStatus(status, nil, nil)
}
