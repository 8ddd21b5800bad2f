package invocation

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Invocation is a fully resolved, single-use description of one outgoing request.
type Invocation struct {
	// ID identifies the invocation in logs and traces
	ID string
	// Metadata is the method the invocation was built from
	Metadata *MethodMetadata
	// URL is the resolved target URL including the query string
	URL string
	// PathParams are the resolved path placeholder values
	PathParams map[string]string
	// Query holds the query parameters
	Query url.Values
	// Form holds the form-url-encoded body fields
	Form url.Values
	// Headers holds request headers keyed by canonical name
	Headers map[string]string
	// Body is the raw body argument
	Body any
	// Payload is the serialized body, nil when the request has no body
	Payload []byte
	// OneShot marks a request carrying a synchronized value or a digest.
	// Sending it again would replay a nonce or signature the server has seen.
	OneShot bool
}

// New returns an empty invocation for md.
func New(id string, md *MethodMetadata) *Invocation {
	return &Invocation{
		ID:         id,
		Metadata:   md,
		PathParams: make(map[string]string),
		Query:      make(url.Values),
		Form:       make(url.Values),
		Headers:    make(map[string]string),
	}
}

// SetHeader sets a header, replacing any previous value.
func (i *Invocation) SetHeader(name, value string) {
	i.Headers[http.CanonicalHeaderKey(name)] = value
}

// Header returns a copy of the headers as an http.Header.
func (i *Invocation) Header() http.Header {
	h := make(http.Header, len(i.Headers))
	for k, v := range i.Headers {
		h.Set(k, v)
	}
	return h
}

// Method returns the HTTP verb, or "" for a nil invocation.
func (i *Invocation) Method() string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	return i.Metadata.HTTPMethod
}

// String returns "METHOD url".
func (i *Invocation) String() string {
	if i == nil {
		return "<nil invocation>"
	}
	return i.Method() + " " + i.URL
}

// Result is the raw outcome of one HTTP exchange.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RetryAfter returns the delay advertised by the Retry-After header.
func (r *Result) RetryAfter(now time.Time) (time.Duration, bool) {
	return ParseRetryAfter(r.Header, now)
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds or as a date.
// Dates in the past yield a zero delay.
func ParseRetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	at, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return 0, false
	}
	if d := at.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}
