package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/service"
)

// AccessTokenParam carries the session token for clients that cannot set
// headers, such as browser websockets.
const AccessTokenParam = "access_token"

// SessionRestorer resolves a session token to an authenticated session.
type SessionRestorer interface {
	Restore(ctx context.Context, token string) (*auth.Session, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Sessions SessionRestorer
}

// RequireSession authenticates the request from its session token and
// stores the session in the request context.
func RequireSession(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			sess, err := cfg.Sessions.Restore(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "invalid_session"),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
					return
				}
				cfg.Logger.Error("session restore failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session could not be verified. Please try again.")
				return
			}

			setLoggedIdentity(r.Context(), sess.Identity.ID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(r.Context(), sess)))
		})
	}
}

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the access_token query parameter.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(AccessTokenParam)
}

// writeAuthError uses the same response for every failure.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", service.MsgUnauthenticated)
}
