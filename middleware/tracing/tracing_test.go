package tracing

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-thor/restproxy/internal/transporttest"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

func newRecorder() (*tracetest.SpanRecorder, trace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func attrs(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestTracing_RecordsSpanAndInjectsContext(t *testing.T) {
	sr, tp := newRecorder()
	tr := transporttest.New(transporttest.OK(`{}`))
	send := transport.Chain(tr.Send, New(WithTracerProvider(tp), WithPropagator(propagation.TraceContext{})))

	inv := invocation.New("inv-1", &invocation.MethodMetadata{Service: "Market", Name: "GetTicker", HTTPMethod: http.MethodGet})
	req := &transport.Request{Method: http.MethodGet, URL: "http://api.test/ticker/BTC-USD", Header: map[string]string{}, Invocation: inv}
	_, err := send(context.Background(), req)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "Market.GetTicker", span.Name())
	assert.Equal(t, trace.SpanKindClient, span.SpanKind())
	a := attrs(span.Attributes())
	assert.Equal(t, "http://api.test/ticker/BTC-USD", a["url.full"].AsString())
	assert.Equal(t, int64(200), a["http.response.status_code"].AsInt64())
	assert.Equal(t, "inv-1", a["restproxy.invocation.id"].AsString())

	sent := tr.LastRequest()
	assert.Contains(t, sent.Header["Traceparent"], span.SpanContext().TraceID().String())
	assert.NotContains(t, req.Header, "Traceparent")
}

func TestTracing_Errors(t *testing.T) {
	sr, tp := newRecorder()
	tr := transporttest.New(
		transporttest.Response{SendErr: io.ErrUnexpectedEOF},
		transporttest.JSON(http.StatusBadGateway, `{}`),
	)
	send := transport.Chain(tr.Send, New(WithTracerProvider(tp)))

	_, err := send(context.Background(), &transport.Request{Method: http.MethodPost, URL: "http://api.test/a"})
	assert.Error(t, err)
	_, err = send(context.Background(), &transport.Request{Method: http.MethodPost, URL: "http://api.test/a"})
	assert.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "HTTP POST", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
