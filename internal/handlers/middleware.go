package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/chatify/backend/internal/logging"
)

type contextKey string

const identityContextKey contextKey = "chatify.identity"

// RequireAuth wraps a handler so it only runs for requests carrying a valid
// bearer token. The proven identity is stored on the request context.
func RequireAuth(sessions SessionManager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := bearerToken(r)
		if token == "" {
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}

		userID, err := sessions.Verify(ctx, token)
		if err != nil {
			logging.FromContext(ctx).Warn("rejected bearer token", "error", err)
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}

		next(w, r.WithContext(context.WithValue(ctx, identityContextKey, userID)))
	}
}

// identityFromContext returns the identity proven by RequireAuth.
func identityFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(identityContextKey).(string); ok {
		return id
	}
	return ""
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
