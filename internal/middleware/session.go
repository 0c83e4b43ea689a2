package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/audit"
	"github.com/showpls/showpls-server-go/internal/auth"
)

const sessionClaimsContextKey contextKey = "sessionClaims"

func GetSessionClaims(ctx context.Context) *auth.SessionClaims {
	if claims, ok := ctx.Value(sessionClaimsContextKey).(*auth.SessionClaims); ok {
		return claims
	}
	return nil
}

// WithSessionClaims returns a context carrying the given claims. Exported for
// handler tests.
func WithSessionClaims(ctx context.Context, claims *auth.SessionClaims) context.Context {
	return context.WithValue(ctx, sessionClaimsContextKey, claims)
}

// SessionMiddleware verifies the bearer session token issued at login.
type SessionMiddleware struct {
	issuer *auth.TokenIssuer
}

func NewSessionMiddleware(issuer *auth.TokenIssuer) *SessionMiddleware {
	return &SessionMiddleware{issuer: issuer}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		claims, err := m.issuer.Verify(token)
		if err != nil {
			log.Warn().Err(err).Msg("session middleware: token rejected")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeError(w, err)
			return
		}

		ctx := WithSessionClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
