package httpapi

import (
	"errors"
	"net/http"

	"mercata.dev/internal/auth"
	"mercata.dev/internal/obs"
)

const authHeader = "Authorization"

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/v1/auth/refresh",
	"/v1/password-reset/request",
	"/v1/password-reset/confirm",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the caller's credential before any route handler runs.
// Requests to public paths pass through untouched; everything else must
// carry a verifiable Authorization header.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.svc == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := a.svc.Authenticate(r.Context(), r.Header.Get(authHeader))
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
				obs.CountAuthDecision("authn", "unauthenticated")
				writeError(w, r, http.StatusUnauthorized, "Invalid Token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		obs.CountAuthDecision("authn", "ok")
		ctx := auth.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// guard enforces a permission action for the handler it protects. Actions
// are registered once at construction; guard only checks. Returns the
// identity when the caller may proceed.
func (a *API) guard(w http.ResponseWriter, r *http.Request, action string) (auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		obs.CountAuthDecision("authz", "unauthenticated")
		writeError(w, r, http.StatusUnauthorized, "Invalid Token")
		return auth.Identity{}, false
	}
	if err := auth.RequirePermission(identity, action); err != nil {
		switch {
		case errors.Is(err, auth.ErrUnauthenticated):
			obs.CountAuthDecision("authz", "unauthenticated")
			writeError(w, r, http.StatusUnauthorized, "Invalid Token")
		case errors.Is(err, auth.ErrForbidden):
			obs.CountAuthDecision("authz", "forbidden")
			writeError(w, r, http.StatusForbidden, "permission denied")
		default:
			writeError(w, r, http.StatusInternalServerError, "authorization error")
		}
		return auth.Identity{}, false
	}
	obs.CountAuthDecision("authz", "ok")
	return identity, true
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
