// Package config holds the per-client policy consumed by the dispatcher and the
// ambient context that supplies headers on every call.
package config

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"

	"github.com/go-thor/restproxy/transport"
)

// Default timeouts
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 30 * time.Second
)

// MapperFactory creates the JSON object mapper used by the JSON codecs
type MapperFactory func() jsoniter.API

// ClientConfig is an immutable snapshot of client policy.
type ClientConfig struct {
	// ConnectTimeout bounds connection establishment
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// ReadTimeout bounds the wait for response headers
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// ProxyHost and ProxyPort route requests through an HTTP proxy
	ProxyHost string `mapstructure:"proxy_host"`
	ProxyPort int    `mapstructure:"proxy_port"`
	// TLSConfig is the TLS client configuration
	TLSConfig *tls.Config `mapstructure:"-"`
	// Auth signs outgoing requests
	Auth transport.Middleware `mapstructure:"-"`
	// MapperFactory creates the JSON mapper; nil uses the json-iterator standard configuration
	MapperFactory MapperFactory `mapstructure:"-"`
	// IgnoreHTTPErrorCodes decodes non-2xx responses as results
	IgnoreHTTPErrorCodes bool `mapstructure:"ignore_http_error_codes"`
	// WrapUnexpectedErrors wraps errors no enrichment capability claimed
	WrapUnexpectedErrors bool `mapstructure:"wrap_unexpected_errors"`
	// DefaultParams maps a parameter kind ("query", "form", "header", "path") to default values by name
	DefaultParams map[string]map[string]string `mapstructure:"default_params"`
	// Headers are ambient headers, served by every Context built from the config
	Headers map[string]string `mapstructure:"headers"`
}

// Default returns the default client configuration
func Default() ClientConfig {
	return ClientConfig{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
	}
}

// JSONMapper returns the configured JSON mapper
func (c ClientConfig) JSONMapper() jsoniter.API {
	if c.MapperFactory == nil {
		return jsoniter.ConfigCompatibleWithStandardLibrary
	}
	return c.MapperFactory()
}

// Clone returns a copy whose maps are not shared with c
func (c ClientConfig) Clone() ClientConfig {
	cp := c
	if c.DefaultParams != nil {
		cp.DefaultParams = make(map[string]map[string]string, len(c.DefaultParams))
		for kind, params := range c.DefaultParams {
			m := make(map[string]string, len(params))
			for k, v := range params {
				m[k] = v
			}
			cp.DefaultParams[kind] = m
		}
	}
	cp.Headers = copyHeaders(c.Headers)
	return cp
}

var paramKinds = map[string]bool{"path": true, "query": true, "form": true, "header": true}

// Validate reports every problem with the configuration
func (c ClientConfig) Validate() error {
	var result *multierror.Error
	if c.ConnectTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("connect_timeout must not be negative"))
	}
	if c.ReadTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("read_timeout must not be negative"))
	}
	if c.ProxyHost != "" && (c.ProxyPort <= 0 || c.ProxyPort > 65535) {
		result = multierror.Append(result, fmt.Errorf("proxy_port %d out of range", c.ProxyPort))
	}
	for kind := range c.DefaultParams {
		if !paramKinds[kind] {
			result = multierror.Append(result, fmt.Errorf("default_params: unknown parameter kind %q", kind))
		}
	}
	return result.ErrorOrNil()
}

// Context supplies the client configuration and per-call ambient headers.
type Context interface {
	// ClientConfig returns the configuration snapshot, read once when a client is built
	ClientConfig() ClientConfig
	// Headers returns the ambient headers for one call; callers must not modify the map
	Headers() map[string]string
}

// StaticContext is a Context with a fixed configuration and header set
type StaticContext struct {
	config  ClientConfig
	headers map[string]string
}

// NewStaticContext creates a context serving cfg and a copy of headers.
// A nil headers map serves cfg.Headers.
func NewStaticContext(cfg ClientConfig, headers map[string]string) *StaticContext {
	if headers == nil {
		headers = cfg.Headers
	}
	return &StaticContext{config: cfg.Clone(), headers: copyHeaders(headers)}
}

// DefaultContext returns a context with the default configuration and no headers
func DefaultContext() *StaticContext {
	return NewStaticContext(Default(), nil)
}

// ClientConfig returns a copy of the configuration
func (s *StaticContext) ClientConfig() ClientConfig {
	return s.config.Clone()
}

// Headers returns the ambient headers
func (s *StaticContext) Headers() map[string]string {
	return s.headers
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	cp := make(map[string]string, len(h))
	for k, v := range h {
		cp[http.CanonicalHeaderKey(k)] = v
	}
	return cp
}

var _ Context = (*StaticContext)(nil)
