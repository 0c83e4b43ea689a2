package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/audit"
	"github.com/showpls/showpls-server-go/internal/auth"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/middleware"
)

// AuthHandler exchanges verified Telegram initData for a session token.
// The Telegram auth middleware has already validated the credential blob by
// the time Login runs.
type AuthHandler struct {
	issuer     *auth.TokenIssuer
	sessionTTL time.Duration
}

func NewAuthHandler(issuer *auth.TokenIssuer, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{issuer: issuer, sessionTTL: sessionTTL}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetTelegramUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		writeError(w, apperrors.Internal("Failed to create session"))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: strconv.FormatInt(user.ID, 10),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(h.sessionTTL.Seconds()),
		"user": map[string]any{
			"id":        user.ID,
			"username":  user.Username,
			"firstName": user.FirstName,
		},
	})
}
