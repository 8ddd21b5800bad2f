// Package transporttest provides a scripted in-memory transport for tests.
package transporttest

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

// Response is a scripted reply
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// SendErr fails Send
	SendErr error
	// ReceiveErr fails Receive
	ReceiveErr error
}

// OK returns a 200 response with a JSON body
func OK(body string) Response {
	return JSON(http.StatusOK, body)
}

// JSON returns a response with the given status and JSON body
func JSON(status int, body string) Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return Response{StatusCode: status, Header: h, Body: []byte(body)}
}

// Transport records requests and answers them from a script. When the script
// runs out, the last response repeats.
type Transport struct {
	mu        sync.Mutex
	requests  []*transport.Request
	responses []Response
	closed    int

	// OnSend runs at the start of every Send, outside the transport's lock
	OnSend func(ctx context.Context, req *transport.Request)
}

// New creates a transport answering with responses in order
func New(responses ...Response) *Transport {
	return &Transport{responses: responses}
}

// Send records req and returns the next scripted response
func (t *Transport) Send(ctx context.Context, req *transport.Request) (transport.Handle, error) {
	if t.OnSend != nil {
		t.OnSend(ctx, req)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req.Clone())
	resp := Response{StatusCode: http.StatusOK, Header: make(http.Header)}
	if len(t.responses) > 0 {
		resp = t.responses[0]
		if len(t.responses) > 1 {
			t.responses = t.responses[1:]
		}
	}
	if resp.SendErr != nil {
		return nil, resp.SendErr
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	return &Handle{resp: resp, t: t}, nil
}

// Receive returns the scripted result for h
func (t *Transport) Receive(ctx context.Context, h transport.Handle) (*invocation.Result, error) {
	hh, ok := h.(*Handle)
	if !ok {
		return nil, errors.Transport(nil, "foreign handle")
	}
	if hh.resp.ReceiveErr != nil {
		return nil, hh.resp.ReceiveErr
	}
	return &invocation.Result{
		StatusCode: hh.resp.StatusCode,
		Header:     hh.resp.Header.Clone(),
		Body:       append([]byte(nil), hh.resp.Body...),
	}, nil
}

// Requests returns the recorded requests
func (t *Transport) Requests() []*transport.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*transport.Request(nil), t.requests...)
}

// LastRequest returns the most recent request, or nil
func (t *Transport) LastRequest() *transport.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

// Closed returns how many handles were closed without being received
func (t *Transport) Closed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Handle is the handle returned by Transport.Send
type Handle struct {
	resp Response
	t    *Transport
}

// StatusCode returns the scripted status
func (h *Handle) StatusCode() int { return h.resp.StatusCode }

// Header returns the scripted headers
func (h *Handle) Header() http.Header { return h.resp.Header }

// Close counts the handle as discarded
func (h *Handle) Close() error {
	h.t.mu.Lock()
	h.t.closed++
	h.t.mu.Unlock()
	return nil
}

var _ transport.Transport = (*Transport)(nil)
