package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/finwise-app/finwise/internal/platform/httpx"
)

type contextKey string

const identityKey contextKey = "auth.identity"

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Email  string
}

// ContextWithIdentity attaches the identity to the context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity set by RequireAuth, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// RequireAuth rejects requests without a valid bearer token and injects
// the verified identity into the request context.
func RequireAuth(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				httpx.RespondError(w, fmt.Errorf("%w: missing bearer token", httpx.ErrUnauthorized))
				return
			}
			claims, err := tokens.Verify(raw)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			identity := &Identity{UserID: claims.Subject, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}
