package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/showpls/showpls-server-go/internal/audit"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/middleware"
	"github.com/showpls/showpls-server-go/internal/service"
)

// EscrowHandler exposes the two money-moving endpoints. Both are mounted
// behind the session, rate limit and idempotency middlewares; see the route
// wiring in cmd/server.
type EscrowHandler struct {
	escrowService *service.EscrowService
}

func NewEscrowHandler(escrowService *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService}
}

func (h *EscrowHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetSessionClaims(r.Context())
	if claims == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return
	}

	orderID := chi.URLParam(r, "orderID")
	preparation, err := h.escrowService.PrepareFunding(r.Context(), orderID, claims.UserID())
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventFundingPrepared,
		UserID:  strconv.FormatInt(claims.UserID(), 10),
		OrderID: orderID,
	})

	writeJSON(w, http.StatusOK, preparation)
}

type verifyFundingRequest struct {
	TxHash string `json:"txHash"`
}

func (h *EscrowHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetSessionClaims(r.Context())
	if claims == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return
	}

	var req verifyFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	orderID := chi.URLParam(r, "orderID")
	result, err := h.escrowService.VerifyFunding(r.Context(), orderID, claims.UserID(), req.TxHash)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventFundingVerified,
		UserID:  strconv.FormatInt(claims.UserID(), 10),
		OrderID: orderID,
		Details: map[string]interface{}{"txHash": req.TxHash},
	})

	writeJSON(w, http.StatusOK, result)
}
