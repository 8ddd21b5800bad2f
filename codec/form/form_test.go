package form

import (
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

type order struct {
	Pair   string `schema:"pair"`
	Amount int    `schema:"amount"`
}

func TestRoundTrip_Values(t *testing.T) {
	inv := invocation.New("1", &invocation.MethodMetadata{})
	inv.Form.Add("pair", "BTC-USD")
	inv.Form.Add("side", "buy")
	inv.Form.Add("side", "sell")

	data, err := NewWriter().Write(inv)
	require.NoError(t, err)

	md := &invocation.MethodMetadata{Result: reflect.TypeOf(url.Values{})}
	out, err := NewReader(false).Read(&invocation.Result{StatusCode: http.StatusOK, Body: data}, md)
	require.NoError(t, err)
	assert.Equal(t, inv.Form, out)
}

func TestRoundTrip_Struct(t *testing.T) {
	inv := invocation.New("1", &invocation.MethodMetadata{})
	inv.Body = &order{Pair: "ETH-EUR", Amount: 3}

	data, err := NewWriter().Write(inv)
	require.NoError(t, err)

	md := &invocation.MethodMetadata{Result: reflect.TypeOf(order{})}
	out, err := NewReader(false).Read(&invocation.Result{StatusCode: http.StatusOK, Body: data}, md)
	require.NoError(t, err)
	assert.Equal(t, order{Pair: "ETH-EUR", Amount: 3}, out)
}

func TestWriter_Empty(t *testing.T) {
	data, err := NewWriter().Write(invocation.New("1", &invocation.MethodMetadata{}))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncode(t *testing.T) {
	values, err := Encode(order{Pair: "BTC-USD", Amount: 2})
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", values.Get("pair"))
	assert.Equal(t, "2", values.Get("amount"))
}

func TestReader_ErrorStatus(t *testing.T) {
	_, err := NewReader(false).Read(&invocation.Result{StatusCode: http.StatusForbidden}, &invocation.MethodMetadata{})
	assert.ErrorIs(t, err, errors.ErrRemoteStatus)
}
