package httpapi

import (
	"net/http"

	"gatekit.org/internal/auth"
)

// requireRoute wraps a protected handler. The wrapped handler only executes
// after Authenticate succeeds for the named route; it receives the resolved
// principal through the request context. Any denial surfaces as a uniform
// 401 with an opaque body, regardless of the internal reason.
func (a *API) requireRoute(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.auth == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		user, err := a.auth.Authenticate(r.Context(), r.Header, route)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gatekit"`)
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := auth.ContextWithPrincipal(r.Context(), user)
		next(w, r.WithContext(ctx))
	}
}
