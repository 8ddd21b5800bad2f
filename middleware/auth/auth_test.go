package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/go-thor/restproxy/internal/transporttest"
	"github.com/go-thor/restproxy/invocation"
	"github.com/go-thor/restproxy/transport"
)

func request() *transport.Request {
	return &transport.Request{
		Method:     http.MethodGet,
		URL:        "http://api.test/balances",
		Header:     map[string]string{"Accept": "application/json"},
		Invocation: invocation.New("inv-7", &invocation.MethodMetadata{}),
	}
}

func TestJWT_SignsEveryRequest(t *testing.T) {
	secret := []byte("s3cret")
	tr := transporttest.New()
	send := transport.Chain(tr.Send, NewJWT(WithSecret(secret), WithClaims("restproxy", "client-1", "exchange"), WithTTL(time.Hour)))

	req := request()
	_, err := send(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, req.Header, "Authorization")

	header := tr.LastRequest().Header["Authorization"]
	require.True(t, strings.HasPrefix(header, "Bearer "))

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "restproxy", claims.Issuer)
	assert.Equal(t, "client-1", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{"exchange"}, claims.Audience)
	assert.Equal(t, "inv-7", claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestJWT_CustomHeader(t *testing.T) {
	tr := transporttest.New()
	send := transport.Chain(tr.Send, NewJWT(WithSecret([]byte("k")), WithHeader("X-Token")))

	_, err := send(context.Background(), request())
	require.NoError(t, err)
	assert.NotEmpty(t, tr.LastRequest().Header["X-Token"])
	assert.NotContains(t, tr.LastRequest().Header, "Authorization")
}

func TestJWT_SigningFailure(t *testing.T) {
	tr := transporttest.New()
	// HMAC signing needs a []byte key
	send := transport.Chain(tr.Send, NewJWT(WithSigningKey(jwt.SigningMethodHS256, "not bytes")))

	_, err := send(context.Background(), request())
	assert.Error(t, err)
	assert.Empty(t, tr.Requests())
}

func TestOAuth2(t *testing.T) {
	tr := transporttest.New()
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc", TokenType: "bearer"})
	send := transport.Chain(tr.Send, OAuth2(ts))

	_, err := send(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", tr.LastRequest().Header["Authorization"])
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("token endpoint down") }

func TestOAuth2_TokenError(t *testing.T) {
	tr := transporttest.New()
	send := transport.Chain(tr.Send, OAuth2(failingSource{}))

	_, err := send(context.Background(), request())
	assert.ErrorContains(t, err, "token endpoint down")
	assert.Empty(t, tr.Requests())
}

func TestAPIKey(t *testing.T) {
	tr := transporttest.New()
	send := transport.Chain(tr.Send, APIKey("X-Api-Key", "k1"))

	_, err := send(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "k1", tr.LastRequest().Header["X-Api-Key"])
	assert.Equal(t, "application/json", tr.LastRequest().Header["Accept"])
}
