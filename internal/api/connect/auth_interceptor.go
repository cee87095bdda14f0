// Package connect provides the Connect RPC implementation of PlayerService.
package connect

import (
	"context"
	"crypto/subtle"
	"net/http"

	"connectrpc.com/connect"
)

// APITokenHeader is the header name for the API token.
const APITokenHeader = "X-API-Token"

// AuthInterceptor rejects requests whose X-API-Token does not match.
// It guards unary calls and server streams alike.
type AuthInterceptor struct {
	token []byte
}

// NewAuthInterceptor creates an interceptor that validates the API token.
func NewAuthInterceptor(token string) *AuthInterceptor {
	return &AuthInterceptor{token: []byte(token)}
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

func (i *AuthInterceptor) check(header http.Header) error {
	token := header.Get(APITokenHeader)
	if token == "" || subtle.ConstantTimeCompare([]byte(token), i.token) != 1 {
		return connect.NewError(connect.CodeUnauthenticated, nil)
	}
	return nil
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.check(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// TokenInterceptor attaches the API token to outgoing client calls.
type TokenInterceptor struct {
	token string
}

// NewTokenInterceptor creates a client interceptor sending token.
func NewTokenInterceptor(token string) *TokenInterceptor {
	return &TokenInterceptor{token: token}
}

var _ connect.Interceptor = (*TokenInterceptor)(nil)

// WrapUnary implements connect.Interceptor.
func (i *TokenInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set(APITokenHeader, i.token)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *TokenInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(APITokenHeader, i.token)
		return conn
	}
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *TokenInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
