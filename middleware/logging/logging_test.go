package logging

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-thor/restproxy/internal/transporttest"
	"github.com/go-thor/restproxy/transport"
)

func newLogger(buf *bytes.Buffer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Output:     buf,
		Level:      hclog.Trace,
		JSONFormat: true,
	})
}

func TestLogging_Success(t *testing.T) {
	var buf bytes.Buffer
	tr := transporttest.New(transporttest.OK(`{}`))
	send := transport.Chain(tr.Send, New(newLogger(&buf), WithLevel(hclog.Info), WithHeaders()))

	h, err := send(context.Background(), &transport.Request{
		Method: http.MethodGet,
		URL:    "http://api.test/ticker/BTC-USD",
		Header: map[string]string{"Accept": "application/json"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, h.StatusCode())

	out := buf.String()
	assert.Contains(t, out, `"@level":"info"`)
	assert.Contains(t, out, `"@module":"http"`)
	assert.Contains(t, out, `"url":"http://api.test/ticker/BTC-USD"`)
	assert.Contains(t, out, `"status":200`)
	assert.Contains(t, out, `"Accept"`)
}

func TestLogging_Failure(t *testing.T) {
	var buf bytes.Buffer
	tr := transporttest.New(transporttest.Response{SendErr: io.ErrUnexpectedEOF})
	send := transport.Chain(tr.Send, New(newLogger(&buf)))

	_, err := send(context.Background(), &transport.Request{Method: http.MethodPost, URL: "http://api.test/orders"})
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	assert.Contains(t, buf.String(), `"@level":"error"`)
	assert.Contains(t, buf.String(), "unexpected EOF")
}

func TestLogging_NilLogger(t *testing.T) {
	tr := transporttest.New()
	send := transport.Chain(tr.Send, New(nil))
	_, err := send(context.Background(), &transport.Request{Method: http.MethodGet, URL: "http://api.test"})
	assert.NoError(t, err)
}
