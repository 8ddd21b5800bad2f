package restproxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-thor/restproxy/codec"
	"github.com/go-thor/restproxy/codec/form"
	"github.com/go-thor/restproxy/codec/json"
	"github.com/go-thor/restproxy/errors"
	"github.com/go-thor/restproxy/invocation"
)

func newTestBuilder() *InvocationBuilder {
	writers := codec.NewRegistry[codec.Writer]()
	writers.Register(codec.ContentTypeJSON, json.NewWriter(nil))
	writers.Register(codec.ContentTypeForm, form.NewWriter())
	b := NewInvocationBuilder(writers)
	b.newID = func() string { return "inv-1" }
	return b
}

func metadata(t *testing.T, m MethodDesc) *invocation.MethodMetadata {
	t.Helper()
	md, err := DefaultMetadataFactory{}.Create(&ServiceDesc{Name: "Svc", Path: "/"}, &m, "http://api.test")
	require.NoError(t, err)
	return md
}

func TestBuilder_PathQueryHeader(t *testing.T) {
	md := metadata(t, MethodDesc{
		Name:       "Search",
		HTTPMethod: http.MethodGet,
		Path:       "/items/{name}",
		Params: []Param{
			{Name: "name", In: InPath},
			{Name: "tag", In: InQuery},
			{Name: "since", In: InQuery},
			{Name: "x-request-id", In: InHeader},
		},
	})
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	inv, err := newTestBuilder().Build(md, []any{"a b/c", []string{"x", "y"}, since, "rid"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "inv-1", inv.ID)
	assert.Equal(t, "http://api.test/items/a%20b%2Fc?since=2024-01-02T03%3A04%3A05Z&tag=x&tag=y", inv.URL)
	assert.Equal(t, "rid", inv.Headers["X-Request-Id"])
	assert.Equal(t, codec.ContentTypeJSON, inv.Headers["Accept"])
	assert.Nil(t, inv.Payload)
	assert.NotContains(t, inv.Headers, "Content-Type")
	assert.False(t, inv.OneShot)
}

func TestBuilder_Arity(t *testing.T) {
	md := metadata(t, MethodDesc{Name: "Get", HTTPMethod: http.MethodGet, Path: "/{id}", Params: []Param{{Name: "id", In: InPath}}})
	_, err := newTestBuilder().Build(md, nil, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)
}

func TestBuilder_RequiredAndDefaults(t *testing.T) {
	md := metadata(t, MethodDesc{
		Name:       "List",
		HTTPMethod: http.MethodGet,
		Path:       "/list",
		Params:     []Param{{Name: "limit", In: InQuery}, {Name: "page", In: InQuery, Optional: true}},
	})
	b := newTestBuilder()

	_, err := b.Build(md, []any{nil, nil}, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)

	defaults := map[string]map[string]string{
		"query":  {"limit": "100", "apikey": "k"},
		"header": {"x-client": "restproxy"},
	}
	inv, err := b.Build(md, []any{nil, nil}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "100", inv.Query.Get("limit"))
	assert.Equal(t, "k", inv.Query.Get("apikey"))
	assert.Equal(t, "restproxy", inv.Headers["X-Client"])

	inv, err = b.Build(md, []any{25, 2}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/list?apikey=k&limit=25&page=2", inv.URL)

	_, err = b.Build(md, []any{nil, nil}, map[string]map[string]string{"cookie": {"a": "b"}})
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestBuilder_BodyValidation(t *testing.T) {
	md := metadata(t, MethodDesc{Name: "Create", HTTPMethod: http.MethodPost, Path: "/orders", Params: []Param{{In: InBody}}})
	b := newTestBuilder()

	_, err := b.Build(md, []any{Order{Amount: 1}}, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)

	_, err = b.Build(md, []any{&Order{Pair: "BTC-USD"}}, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)

	inv, err := b.Build(md, []any{&Order{Pair: "BTC-USD", Amount: 2}}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pair":"BTC-USD","amount":2}`, string(inv.Payload))
	assert.Equal(t, codec.ContentTypeJSON, inv.Headers["Content-Type"])
}

func TestBuilder_FormStructExpansion(t *testing.T) {
	md := metadata(t, MethodDesc{Name: "Login", HTTPMethod: http.MethodPost, Path: "/login", Params: []Param{{In: InForm}, {Name: "remember", In: InForm}}})
	type credentials struct {
		User string `schema:"user"`
		Pass string `schema:"pass"`
	}

	inv, err := newTestBuilder().Build(md, []any{credentials{User: "u", Pass: "p w"}, true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pass=p+w&remember=true&user=u", string(inv.Payload))
	assert.Equal(t, codec.ContentTypeForm, inv.Headers["Content-Type"])

	_, err = newTestBuilder().Build(md, []any{"not a struct", true}, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)
}

func TestBuilder_UnsupportedWriter(t *testing.T) {
	md := metadata(t, MethodDesc{Name: "Upload", HTTPMethod: http.MethodPost, Consumes: "application/xml", Params: []Param{{In: InBody}}})
	_, err := newTestBuilder().Build(md, []any{"<x/>"}, nil)
	assert.ErrorIs(t, err, errors.ErrUnsupportedContentType)
}

func TestBuilder_Digest(t *testing.T) {
	md := metadata(t, MethodDesc{
		Name:       "Signed",
		HTTPMethod: http.MethodGet,
		Path:       "/signed",
		Params:     []Param{{Name: "ts", In: InQuery}, {Name: "sig", In: InQuery, Digest: true}},
	})
	signer := DigesterFunc(func(inv *invocation.Invocation) (string, error) {
		return "h(" + inv.URL + ")", nil
	})

	inv, err := newTestBuilder().Build(md, []any{10, signer}, nil)
	require.NoError(t, err)
	assert.Equal(t, "h(http://api.test/signed?ts=10)", inv.Query.Get("sig"))
	assert.Contains(t, inv.URL, "sig=h%28http")
	assert.True(t, inv.OneShot)

	_, err = newTestBuilder().Build(md, []any{10, "plain"}, nil)
	assert.ErrorIs(t, err, errors.ErrSerialization)
}

func TestBuilder_SynchronizedValue(t *testing.T) {
	md := metadata(t, MethodDesc{Name: "Get", HTTPMethod: http.MethodGet, Path: "/n", Params: []Param{{Name: "nonce", In: InQuery}}})
	token := Synchronize(ValueFactoryFunc(func() any { return int64(5) }))

	inv, err := newTestBuilder().Build(md, []any{token}, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", inv.Query.Get("nonce"))
	assert.True(t, inv.OneShot)

	inv, err = newTestBuilder().Build(md, []any{int64(6)}, nil)
	require.NoError(t, err)
	assert.False(t, inv.OneShot)
}
