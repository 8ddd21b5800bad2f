// Package transport defines the contract between the dispatcher and the component
// that performs HTTP exchanges.
package transport

import (
	"context"
	"net/http"

	"github.com/go-thor/restproxy/invocation"
)

// Request is what the dispatcher hands to the transport
type Request struct {
	// Method is the HTTP verb
	Method string
	// URL is the resolved target URL
	URL string
	// Header holds the merged request headers, keyed by canonical name
	Header map[string]string
	// Body is the serialized body, nil for none
	Body []byte
	// Invocation is the invocation the request was built from
	Invocation *invocation.Invocation
}

// Handle is an exchange whose status line and headers have been received
// but whose body has not been read yet.
type Handle interface {
	// StatusCode returns the response status
	StatusCode() int
	// Header returns the response headers
	Header() http.Header
	// Close discards the unread body
	Close() error
}

// Transport sends requests and receives their results
type Transport interface {
	// Send sends the request and returns once response headers are available
	Send(ctx context.Context, req *Request) (Handle, error)
	// Receive reads the rest of the exchange and releases the handle
	Receive(ctx context.Context, h Handle) (*invocation.Result, error)
}

// SendFunc is the signature of Transport.Send
type SendFunc func(ctx context.Context, req *Request) (Handle, error)

// Middleware wraps a SendFunc
type Middleware func(next SendFunc) SendFunc

// Chain applies middlewares to send. The first middleware is the outermost one.
func Chain(send SendFunc, middlewares ...Middleware) SendFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			send = middlewares[i](send)
		}
	}
	return send
}

// Clone returns a copy of req with its own header map
func (r *Request) Clone() *Request {
	cp := *r
	cp.Header = make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		cp.Header[k] = v
	}
	return &cp
}
