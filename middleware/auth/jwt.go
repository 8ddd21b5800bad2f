// Package auth provides middlewares that sign outgoing requests. Set one as
// config.ClientConfig.Auth so it runs after every other middleware.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/go-thor/restproxy/transport"
)

// JWTOption is a JWT middleware option
type JWTOption func(*jwtOptions)

type jwtOptions struct {
	secret        any
	header        string
	signingMethod jwt.SigningMethod
	issuer        string
	subject       string
	audience      []string
	ttl           time.Duration
	now           func() time.Time
}

// WithSecret sets the HMAC secret
func WithSecret(secret []byte) JWTOption {
	return func(o *jwtOptions) {
		o.secret = secret
	}
}

// WithSigningKey sets the signing method and its key, for RSA or ECDSA keys
func WithSigningKey(method jwt.SigningMethod, key any) JWTOption {
	return func(o *jwtOptions) {
		o.signingMethod = method
		o.secret = key
	}
}

// WithHeader sets the header carrying the token; the default is Authorization with a Bearer prefix
func WithHeader(name string) JWTOption {
	return func(o *jwtOptions) {
		o.header = name
	}
}

// WithClaims sets the registered claims put in every token
func WithClaims(issuer, subject string, audience ...string) JWTOption {
	return func(o *jwtOptions) {
		o.issuer = issuer
		o.subject = subject
		o.audience = audience
	}
}

// WithTTL sets the token lifetime
func WithTTL(ttl time.Duration) JWTOption {
	return func(o *jwtOptions) {
		o.ttl = ttl
	}
}

// NewJWT creates a middleware that signs a short-lived token for every request
func NewJWT(opts ...JWTOption) transport.Middleware {
	o := &jwtOptions{
		header:        "Authorization",
		signingMethod: jwt.SigningMethodHS256,
		ttl:           time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			now := o.now()
			claims := jwt.RegisteredClaims{
				Issuer:    o.issuer,
				Subject:   o.subject,
				Audience:  o.audience,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(o.ttl)),
			}
			if req.Invocation != nil {
				claims.ID = req.Invocation.ID
			}
			token, err := GenerateToken(o.secret, claims, o.signingMethod)
			if err != nil {
				return nil, fmt.Errorf("sign request token: %w", err)
			}

			out := req.Clone()
			if o.header == "Authorization" {
				out.Header["Authorization"] = "Bearer " + token
			} else {
				out.Header[o.header] = token
			}
			return next(ctx, out)
		}
	}
}

// GenerateToken generates a JWT token
func GenerateToken(key any, claims jwt.Claims, method jwt.SigningMethod) (string, error) {
	token := jwt.NewWithClaims(method, claims)
	return token.SignedString(key)
}
