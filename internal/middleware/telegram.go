package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/model"
	"github.com/showpls/showpls-server-go/internal/telegram"
)

type contextKey string

const telegramUserContextKey contextKey = "telegramUser"

// InitDataHeader carries the raw Telegram WebApp credential blob.
const InitDataHeader = "X-Telegram-Init-Data"

// initDataParam is the query or form-body fallback field used by older
// mini-app clients.
const initDataParam = "__twaInitData"

func GetTelegramUser(ctx context.Context) *model.TelegramUser {
	if user, ok := ctx.Value(telegramUserContextKey).(*model.TelegramUser); ok {
		return user
	}
	return nil
}

// WithTelegramUser returns a context carrying the given claims. Exported for
// handler tests.
func WithTelegramUser(ctx context.Context, user *model.TelegramUser) context.Context {
	return context.WithValue(ctx, telegramUserContextKey, user)
}

// TelegramAuthMiddleware verifies initData on session-bootstrap requests and
// injects the identity claims into the request context.
type TelegramAuthMiddleware struct {
	verifier *telegram.Verifier
}

func NewTelegramAuthMiddleware(verifier *telegram.Verifier) *TelegramAuthMiddleware {
	if verifier.Insecure() {
		log.Warn().Msg("telegram auth middleware: signature verification bypassed (ALLOW_INSECURE_AUTH)")
	}
	return &TelegramAuthMiddleware{verifier: verifier}
}

func (m *TelegramAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" {
			// FormValue covers both the query string and a form-encoded body;
			// JSON bodies are left untouched for the handler.
			raw = r.FormValue(initDataParam)
		}
		if raw == "" && !m.verifier.Insecure() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing init data",
			})
			return
		}

		initData, err := m.verifier.Verify(raw)
		if err != nil {
			log.Warn().Err(err).Msg("telegram auth middleware: init data rejected")
			writeError(w, err)
			return
		}
		if initData.User == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Init data carries no user identity",
			})
			return
		}

		ctx := WithTelegramUser(r.Context(), initData.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
