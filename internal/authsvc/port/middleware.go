package port

import (
	"context"
	"net/http"
	"strings"

	"github.com/decode-platform/auth-service/internal/authsvc/app"
	"github.com/decode-platform/auth-service/internal/domain"
)

// ctxKey is the unexported context key type for request-scoped values.
type ctxKey int

const identityKey ctxKey = iota

// identityFrom returns the authenticated principal stored by requireAccess.
// Handlers behind the guard can rely on it being present.
func identityFrom(ctx context.Context) (*app.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*app.Identity)
	return id, ok
}

// bearerToken extracts the Bearer token from the Authorization header.
// Returns "" when the header is absent or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// requireAccess guards an endpoint with a Bearer access token. The token is
// validated against its bound session; the resolved identity rides the
// request context.
func (rt *Router) requireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			respondError(w, r, rt.logger, domain.ErrUnauthorized)
			return
		}
		identity, err := rt.sessions.ValidateAccess(r.Context(), tok)
		if err != nil {
			respondError(w, r, rt.logger, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	}
}

// requireService guards an endpoint with a Bearer service token from the
// wallet sibling. No identity is attached; the request body carries the
// subject.
func (rt *Router) requireService(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			respondError(w, r, rt.logger, domain.ErrUnauthorized)
			return
		}
		if _, err := rt.wallet.Verify(tok); err != nil {
			respondError(w, r, rt.logger, err)
			return
		}
		next(w, r)
	}
}
