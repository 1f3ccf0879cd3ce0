package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("admin role required")
)

// requireUser resolves the bearer token into an auth.Identity on the request context.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Auth == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", errUnauthorized)
			return
		}
		id, err := h.deps.Auth.ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			logctx.FromOr(r.Context(), h.log).Debug("auth_rejected", observability.F("error", err))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", errUnauthorized)
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		ctx = logctx.With(ctx, logctx.FromOr(ctx, h.log).With(observability.F("user_id", id.UserID)))
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.FromContext(r.Context())
		if !id.IsAdmin() {
			writeError(w, http.StatusForbidden, "FORBIDDEN", errForbidden)
			return
		}
		next(w, r)
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
