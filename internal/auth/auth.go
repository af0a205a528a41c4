// Package auth is the boundary to the authentication subsystem, which is
// owned elsewhere. The chat core only needs an owner identity on the
// request context.
package auth

import (
	"context"
	"net/http"
)

type Identity struct {
	UserID string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Static returns middleware that stamps every request with a fixed
// identity. Used for single-user deployments; a real resolver replaces
// it when the authentication subsystem is wired in.
func Static(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID})))
	})
}
