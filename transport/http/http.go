// Package http implements transport.Transport on net/http.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-thor/restproxy/config"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

const (
	// DefaultReadTimeout is the default time to wait for response headers
	DefaultReadTimeout = 30 * time.Second
	// DefaultConnectTimeout is the default dial timeout
	DefaultConnectTimeout = 30 * time.Second
	// DefaultMaxMessageSize is the default maximum response body size (10MB)
	DefaultMaxMessageSize = 10 * 1024 * 1024
)

// Transport is an HTTP transport
type Transport struct {
	readTimeout    time.Duration
	connectTimeout time.Duration
	maxMsgSize     int64
	proxy          func(*http.Request) (*url.URL, error)
	tlsConfig      *tls.Config

	client *http.Client
}

// Option is a transport option
type Option func(*Transport)

// WithReadTimeout sets the time to wait for response headers
func WithReadTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.readTimeout = timeout
	}
}

// WithConnectTimeout sets the dial timeout
func WithConnectTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.connectTimeout = timeout
	}
}

// WithMaxMessageSize sets the maximum response body size
func WithMaxMessageSize(size int64) Option {
	return func(t *Transport) {
		t.maxMsgSize = size
	}
}

// WithProxy routes requests through an HTTP proxy at host:port
func WithProxy(host string, port int) Option {
	return func(t *Transport) {
		if host == "" {
			return
		}
		u := &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))}
		t.proxy = http.ProxyURL(u)
	}
}

// WithTLSConfig sets the TLS client configuration
func WithTLSConfig(cfg *tls.Config) Option {
	return func(t *Transport) {
		t.tlsConfig = cfg
	}
}

// WithClient uses c instead of building a client; timeout, proxy and TLS options are ignored
func WithClient(c *http.Client) Option {
	return func(t *Transport) {
		t.client = c
	}
}

// New creates a new HTTP transport
func New(opts ...Option) *Transport {
	t := &Transport{
		readTimeout:    DefaultReadTimeout,
		connectTimeout: DefaultConnectTimeout,
		maxMsgSize:     DefaultMaxMessageSize,
		proxy:          http.ProxyFromEnvironment,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		t.client = &http.Client{
			Transport: &http.Transport{
				Proxy:               t.proxy,
				TLSClientConfig:     t.tlsConfig,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   t.connectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				ResponseHeaderTimeout: t.readTimeout,
			},
		}
	}

	return t
}

// FromConfig creates a transport from the client configuration
func FromConfig(cfg config.ClientConfig, opts ...Option) *Transport {
	base := []Option{
		WithProxy(cfg.ProxyHost, cfg.ProxyPort),
		WithTLSConfig(cfg.TLSConfig),
	}
	// Zero timeouts keep the transport defaults
	if cfg.ConnectTimeout > 0 {
		base = append(base, WithConnectTimeout(cfg.ConnectTimeout))
	}
	if cfg.ReadTimeout > 0 {
		base = append(base, WithReadTimeout(cfg.ReadTimeout))
	}
	return New(append(base, opts...)...)
}

// Send sends the request and returns once the response headers are in
func (t *Transport) Send(ctx context.Context, req *transport.Request) (transport.Handle, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errors.Transport(err, "create request")
	}
	for k, v := range req.Header {
		hreq.Header.Set(k, v)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, errors.Transport(err, "do request")
	}
	return &handle{resp: resp}, nil
}

// Receive reads the response body with a size limit and closes it
func (t *Transport) Receive(ctx context.Context, h transport.Handle) (*invocation.Result, error) {
	hh, ok := h.(*handle)
	if !ok {
		return nil, errors.Transport(fmt.Errorf("unexpected handle %T", h), "receive")
	}
	defer hh.resp.Body.Close()

	// Read one byte past the limit to detect oversized bodies
	limiter := io.LimitReader(hh.resp.Body, t.maxMsgSize+1)
	body, err := io.ReadAll(limiter)
	if err != nil {
		return nil, errors.Transport(err, "read response")
	}
	if int64(len(body)) > t.maxMsgSize {
		return nil, errors.Transport(fmt.Errorf("body exceeds %d bytes", t.maxMsgSize), "response too large")
	}

	return &invocation.Result{
		StatusCode: hh.resp.StatusCode,
		Header:     hh.resp.Header,
		Body:       body,
	}, nil
}

type handle struct {
	resp *http.Response
}

func (h *handle) StatusCode() int     { return h.resp.StatusCode }
func (h *handle) Header() http.Header { return h.resp.Header }

func (h *handle) Close() error {
	_, _ = io.Copy(io.Discard, io.LimitReader(h.resp.Body, 4096))
	return h.resp.Body.Close()
}

// Make sure Transport implements transport.Transport
var _ transport.Transport = (*Transport)(nil)
