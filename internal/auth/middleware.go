package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

type ctxKeyIdentity struct{}

const bearerPrefix = "Bearer "

type TokenParser interface {
	ParseToken(token string) (Identity, error)
}

// Middleware resolves the caller's identity. Requests without a token run
// as the guest; a token that fails validation is rejected with onError.
func Middleware(parser TokenParser, onError func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), GuestIdentity)))
				return
			}
			if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
				onError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}
			identity, err := parser.ParseToken(header[len(bearerPrefix):])
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					log.Printf("auth token check failed: %v", err)
					onError(w, http.StatusInternalServerError, "internal error")
					return
				}
				onError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}

// FromContext returns the request identity, the guest when none was set.
func FromContext(ctx context.Context) Identity {
	identity, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	if !ok {
		return GuestIdentity
	}
	return identity
}
