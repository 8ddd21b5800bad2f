// Package metrics reports request counts, errors and latencies per service method.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/transport"
)

// Option is a middleware option
type Option func(*options)

type options struct {
	reporter Reporter
}

// Reporter defines the interface for a metrics reporter
type Reporter interface {
	// ReportLatency reports the time until response headers arrived
	ReportLatency(service, method string, latency time.Duration)
	// ReportRequest reports a request
	ReportRequest(service, method string)
	// ReportError reports a failed exchange or an error status
	ReportError(service, method string, err error)
}

// DefaultReporter keeps per-method aggregates in memory. Its size depends on
// the number of distinct methods only.
type DefaultReporter struct {
	mu    sync.RWMutex
	stats map[string]*stats
}

type stats struct {
	requests int64
	errors   int64
	samples  int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
}

// NewDefaultReporter creates an empty reporter
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{stats: make(map[string]*stats)}
}

func key(service, method string) string {
	return service + "." + method
}

// entry returns the stats for a method, creating them. r.mu must be held for writing.
func (r *DefaultReporter) entry(service, method string) *stats {
	k := key(service, method)
	s, ok := r.stats[k]
	if !ok {
		s = &stats{}
		r.stats[k] = s
	}
	return s
}

// ReportLatency records one latency sample
func (r *DefaultReporter) ReportLatency(service, method string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.entry(service, method)
	if s.samples == 0 || latency < s.min {
		s.min = latency
	}
	if latency > s.max {
		s.max = latency
	}
	s.samples++
	s.total += latency
}

// ReportRequest counts a request
func (r *DefaultReporter) ReportRequest(service, method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(service, method).requests++
}

// ReportError counts an error
func (r *DefaultReporter) ReportError(service, method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entry(service, method).errors++
}

func (r *DefaultReporter) snapshot(service, method string) stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.stats[key(service, method)]; ok {
		return *s
	}
	return stats{}
}

// RequestCount returns the request count for a service method
func (r *DefaultReporter) RequestCount(service, method string) int64 {
	return r.snapshot(service, method).requests
}

// ErrorCount returns the error count for a service method
func (r *DefaultReporter) ErrorCount(service, method string) int64 {
	return r.snapshot(service, method).errors
}

// AverageLatency returns the mean latency for a service method
func (r *DefaultReporter) AverageLatency(service, method string) time.Duration {
	s := r.snapshot(service, method)
	if s.samples == 0 {
		return 0
	}
	return s.total / time.Duration(s.samples)
}

// LatencyRange returns the smallest and largest latency seen for a service method
func (r *DefaultReporter) LatencyRange(service, method string) (lo, hi time.Duration) {
	s := r.snapshot(service, method)
	return s.min, s.max
}

// WithReporter sets the reporter for the middleware
func WithReporter(reporter Reporter) Option {
	return func(o *options) {
		o.reporter = reporter
	}
}

// New creates a metrics middleware
func New(opts ...Option) transport.Middleware {
	o := &options{
		reporter: NewDefaultReporter(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			service, method := serviceMethod(req)
			o.reporter.ReportRequest(service, method)

			start := time.Now()
			h, err := next(ctx, req)
			o.reporter.ReportLatency(service, method, time.Since(start))

			switch {
			case err != nil:
				o.reporter.ReportError(service, method, err)
			case h.StatusCode() >= http.StatusBadRequest:
				o.reporter.ReportError(service, method, errors.RemoteStatus(h.StatusCode(), nil, nil))
			}
			return h, err
		}
	}
}

func serviceMethod(req *transport.Request) (string, string) {
	if req.Invocation == nil || req.Invocation.Metadata == nil {
		return "", req.Method
	}
	md := req.Invocation.Metadata
	return md.Service, md.Name
}
