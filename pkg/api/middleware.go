package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/alexbrdn/wingmate-api/pkg/auth"
	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

func identityFrom(ctx context.Context) auth.Identity {
	ident, _ := ctx.Value(identityKey).(auth.Identity)
	return ident
}

// authenticate verifies the Authorization bearer credential and places the
// resolved identity in the request context. It runs before any balance or
// provider access.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondWithError(w, http.StatusUnauthorized, domain.CodeUnauthenticated, "authorization header missing or invalid")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		ident, err := h.verifier.Verify(r.Context(), token)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, domain.CodeUnauthenticated, domain.MessageOf(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

// requireAdmin guards the admin routes with a shared secret. Admin routes
// are disabled entirely when no token is configured.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			respondWithError(w, http.StatusUnauthorized, domain.CodeUnauthenticated, "admin access disabled")
			return
		}

		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			respondWithError(w, http.StatusUnauthorized, domain.CodeUnauthenticated, "invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
