package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/go-thor/restproxy/transport"
)

// OAuth2 creates a middleware setting the Authorization header from ts.
// Wrap ts with oauth2.ReuseTokenSource to cache tokens until they expire.
func OAuth2(ts oauth2.TokenSource) transport.Middleware {
	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			token, err := ts.Token()
			if err != nil {
				return nil, fmt.Errorf("obtain oauth2 token: %w", err)
			}
			out := req.Clone()
			out.Header["Authorization"] = token.Type() + " " + token.AccessToken
			return next(ctx, out)
		}
	}
}

// APIKey creates a middleware setting a static key header
func APIKey(header, key string) transport.Middleware {
	return func(next transport.SendFunc) transport.SendFunc {
		return func(ctx context.Context, req *transport.Request) (transport.Handle, error) {
			out := req.Clone()
			out.Header[header] = key
			return next(ctx, out)
		}
	}
}
