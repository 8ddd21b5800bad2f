package restproxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/internal/transporttest"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

func testHandle(t *testing.T, header http.Header) *transporttest.Handle {
	t.Helper()
	tr := transporttest.New(transporttest.Response{StatusCode: http.StatusBadRequest, Header: header})
	h, err := tr.Send(context.Background(), &transport.Request{})
	require.NoError(t, err)
	return h.(*transporttest.Handle)
}

func TestEnricher_AttachesToRemoteStatus(t *testing.T) {
	inv := invocation.New("1", &invocation.MethodMetadata{HTTPMethod: http.MethodGet})
	header := http.Header{"X-Ratelimit": {"5"}}
	remote := errors.RemoteStatus(http.StatusTooManyRequests, nil, nil)

	err := NewErrorEnricher(true, nil).Handle(fmt.Errorf("call: %w", remote), inv, testHandle(t, header))
	assert.Equal(t, errors.KindRemoteStatus, errors.KindOf(err))
	assert.Same(t, inv, remote.Invocation)
	assert.Equal(t, header, remote.ResponseHeaders)
}

func TestEnricher_NoHandleSkipsHeaders(t *testing.T) {
	remote := errors.RemoteStatus(http.StatusBadGateway, nil, nil)
	err := NewErrorEnricher(true, nil).Handle(remote, nil, nil)
	assert.Same(t, remote, err)
	assert.Nil(t, remote.ResponseHeaders)
}

func TestEnricher_Wrapping(t *testing.T) {
	inv := invocation.New("1", &invocation.MethodMetadata{HTTPMethod: http.MethodGet})
	plain := errors.Serialization(nil, "bad argument")

	err := NewErrorEnricher(false, nil).Handle(plain, inv, nil)
	assert.Same(t, plain, err)

	err = NewErrorEnricher(true, nil).Handle(plain, inv, nil)
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindDispatch, e.Kind)
	assert.Same(t, plain, e.Cause)
	assert.Same(t, inv, e.Invocation)

	// An absent invocation is carried as nil
	err = NewErrorEnricher(true, nil).Handle(plain, nil, nil)
	require.True(t, errors.As(err, &e))
	assert.Nil(t, e.Invocation)
}

func TestEnricher_FailedAttachmentStillWraps(t *testing.T) {
	remote := errors.RemoteStatus(http.StatusTooManyRequests, nil, nil)
	first := invocation.New("1", &invocation.MethodMetadata{})
	require.NoError(t, remote.SetInvocation(first))

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Warn})
	second := invocation.New("2", &invocation.MethodMetadata{})
	err := NewErrorEnricher(true, logger).Handle(remote, second, nil)

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errors.KindDispatch, e.Kind)
	assert.Same(t, remote, e.Cause)
	assert.Same(t, second, e.Invocation)
	assert.Same(t, first, remote.Invocation)
	assert.Contains(t, buf.String(), "failed to attach invocation")
}

func TestEnricher_FailedAttachmentWithoutWrap(t *testing.T) {
	remote := errors.RemoteStatus(http.StatusTooManyRequests, nil, nil)
	require.NoError(t, remote.SetInvocation(invocation.New("1", &invocation.MethodMetadata{})))

	logger := hclog.New(&hclog.LoggerOptions{Level: hclog.Off})
	err := NewErrorEnricher(false, logger).Handle(remote, invocation.New("2", &invocation.MethodMetadata{}), nil)
	assert.Same(t, remote, err)
}

func TestEnricher_NilError(t *testing.T) {
	assert.NoError(t, NewErrorEnricher(true, nil).Handle(nil, nil, nil))
}
