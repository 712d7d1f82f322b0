package http

import (
	"net/http"
	"time"

	m "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/auth"
	"github.com/dsmilne3/ai-video-analyzer/internal/schemas"
)

// RequireAuth accepts the static API token or a signed JWT. With no
// credentials configured every request is rejected.
func RequireAuth(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := a.Check(r.Header.Get("Authorization")); err != nil {
				writeJSON(w, http.StatusUnauthorized, schemas.ErrorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through zerolog.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := m.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("request_id", m.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
