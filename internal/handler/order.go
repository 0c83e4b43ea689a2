package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/middleware"
	"github.com/showpls/showpls-server-go/internal/model"
	"github.com/showpls/showpls-server-go/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type createOrderRequest struct {
	ContentType string      `json:"contentType"`
	Title       string      `json:"title"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Budget      json.Number `json:"budget"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetSessionClaims(r.Context())
	if claims == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid JSON body"))
		return
	}

	order, err := h.orderService.Create(r.Context(), claims.UserID(), service.CreateOrderInput{
		ContentType: model.ContentType(req.ContentType),
		Title:       req.Title,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Budget:      req.Budget.String(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Take(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetSessionClaims(r.Context())
	if claims == nil {
		writeError(w, apperrors.Unauthorized("Not authenticated"))
		return
	}

	order, err := h.orderService.Take(r.Context(), chi.URLParam(r, "orderID"), claims.UserID())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
