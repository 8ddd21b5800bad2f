// Package restproxy turns calls on a declared service into HTTP requests and
// maps the responses back into typed results.
//
// A Client is built once per service, base URL and configuration context and
// is safe for concurrent use.
package restproxy

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"dario.cat/mergo"
	"github.com/hashicorp/go-hclog"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/codec/form"
	"github.com/go-thor/restproxy/codec/json"
	"github.com/go-thor/restproxy/codec/protobuf"
	"github.com/go-thor/restproxy/codec/text"
	"github.com/go-thor/restproxy/config"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
	httptransport "github.com/go-thor/restproxy/transport/http"
)

// Stage is the point a call has reached
type Stage int

// Call stages
const (
	StageStart Stage = iota
	StageMetadataResolved
	StageLockAcquired
	StageRequestBuilt
	StageSent
	StageReceived
	StageMapped
)

var stageNames = [...]string{
	StageStart:            "start",
	StageMetadataResolved: "metadata_resolved",
	StageLockAcquired:     "lock_acquired",
	StageRequestBuilt:     "request_built",
	StageSent:             "sent",
	StageReceived:         "received",
	StageMapped:           "mapped",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Client dispatches calls on one service
type Client struct {
	desc    *ServiceDesc
	baseURL string
	apiCtx  config.Context
	cfg     config.ClientConfig
	logger  hclog.Logger

	resolver  *MetadataResolver
	builder   *InvocationBuilder
	mapper    *ResultMapper
	enricher  *ErrorEnricher
	transport transport.Transport
	send      transport.SendFunc
}

// New creates a client for desc at baseURL. apiCtx supplies the configuration,
// read once here, and the ambient headers, read on every call; nil uses
// config.DefaultContext().
func New(desc *ServiceDesc, baseURL string, apiCtx config.Context, opts ...Option) (*Client, error) {
	if desc == nil {
		return nil, errors.Configuration("nil service description")
	}
	if apiCtx == nil {
		apiCtx = config.DefaultContext()
	}
	cfg := apiCtx.ClientConfig()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "invalid client config")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = hclog.NewNullLogger()
	}
	if o.transport == nil {
		o.transport = httptransport.FromConfig(cfg)
	}
	logger := o.logger.Named("restproxy")

	writers := codec.NewRegistry[codec.Writer]()
	writers.Register(codec.ContentTypeJSON, json.NewWriter(cfg.JSONMapper()))
	writers.Register(codec.ContentTypeForm, form.NewWriter())
	writers.Register(codec.ContentTypeText, text.NewWriter())
	writers.Register(codec.ContentTypeProtobuf, protobuf.NewWriter())
	for ct, w := range o.writers {
		writers.Register(ct, w)
	}

	readers := codec.NewRegistry[codec.Reader]()
	readers.Register(codec.ContentTypeJSON, json.NewReader(cfg.JSONMapper(), cfg.IgnoreHTTPErrorCodes))
	readers.Register(codec.ContentTypeForm, form.NewReader(cfg.IgnoreHTTPErrorCodes))
	readers.Register(codec.ContentTypeText, text.NewReader(cfg.IgnoreHTTPErrorCodes))
	readers.Register(codec.ContentTypeProtobuf, protobuf.NewReader(cfg.IgnoreHTTPErrorCodes))
	for ct, r := range o.readers {
		readers.Register(ct, r)
	}

	c := &Client{
		desc:      desc,
		baseURL:   baseURL,
		apiCtx:    apiCtx,
		cfg:       cfg,
		logger:    logger,
		resolver:  NewMetadataResolver(desc, baseURL, o.factory, logger),
		builder:   NewInvocationBuilder(writers),
		mapper:    NewResultMapper(readers),
		enricher:  NewErrorEnricher(cfg.WrapUnexpectedErrors, logger),
		transport: o.transport,
	}
	// Auth signs the final request, so it runs innermost
	middlewares := append(append([]transport.Middleware(nil), o.middlewares...), cfg.Auth)
	c.send = transport.Chain(o.transport.Send, middlewares...)

	if o.preload {
		if err := c.resolver.Preload(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Invoke calls method with args and returns the decoded result
func (c *Client) Invoke(ctx context.Context, method string, args ...any) (result any, err error) {
	stage := StageStart
	var (
		inv *invocation.Invocation
		h   transport.Handle
	)
	defer func() {
		if err != nil {
			err = c.enricher.Handle(err, inv, h)
			c.logger.Debug("call failed", "method", method, "stage", stage, "invocation", inv.String(), "error", err)
		}
	}()

	md, err := c.resolver.Resolve(method)
	if err != nil {
		return nil, err
	}
	stage = c.advance(method, StageMetadataResolved)

	err = WithLock(ExtractToken(args), func() error {
		stage = c.advance(method, StageLockAcquired)

		var err error
		inv, err = c.builder.Build(md, args, c.cfg.DefaultParams)
		if err != nil {
			return err
		}
		headers, err := c.mergeHeaders(inv)
		if err != nil {
			return err
		}
		stage = c.advance(method, StageRequestBuilt)

		h, err = c.send(ctx, &transport.Request{
			Method:     md.HTTPMethod,
			URL:        inv.URL,
			Header:     headers,
			Body:       inv.Payload,
			Invocation: inv,
		})
		if err != nil {
			return err
		}
		stage = c.advance(method, StageSent)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, err := c.transport.Receive(ctx, h)
	if err != nil {
		return nil, err
	}
	stage = c.advance(method, StageReceived)

	result, err = c.mapper.Map(res, md)
	if err != nil {
		return nil, err
	}
	stage = c.advance(method, StageMapped)
	return result, nil
}

// Call invokes method on c and returns the result as a T
func Call[T any](ctx context.Context, c *Client, method string, args ...any) (T, error) {
	var zero T
	v, err := c.Invoke(ctx, method, args...)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Serialization(nil, "%s.%s returned %T, not %s", c.desc.Name, method, v, reflect.TypeOf(&zero).Elem())
	}
	return t, nil
}

// Metadata returns the dispatch metadata of method
func (c *Client) Metadata(method string) (*invocation.MethodMetadata, error) {
	return c.resolver.Resolve(method)
}

// String describes the client without dispatching anything
func (c *Client) String() string {
	return fmt.Sprintf("restproxy.Client(%s @ %s)", c.desc.Name, c.baseURL)
}

func (c *Client) advance(method string, s Stage) Stage {
	c.logger.Trace("stage", "method", method, "stage", s)
	return s
}

// mergeHeaders overlays the ambient headers on the invocation headers; ambient values win
func (c *Client) mergeHeaders(inv *invocation.Invocation) (map[string]string, error) {
	headers := make(map[string]string, len(inv.Headers))
	for k, v := range inv.Headers {
		headers[k] = v
	}
	ambient := c.apiCtx.Headers()
	if len(ambient) == 0 {
		return headers, nil
	}
	overlay := make(map[string]string, len(ambient))
	for k, v := range ambient {
		overlay[http.CanonicalHeaderKey(k)] = v
	}
	if err := mergo.Merge(&headers, overlay, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge headers: %w", err)
	}
	return headers, nil
}
