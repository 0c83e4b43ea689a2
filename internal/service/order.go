package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/model"
	"github.com/showpls/showpls-server-go/internal/repository"
	"github.com/showpls/showpls-server-go/internal/ton"
)

type CreateOrderInput struct {
	ContentType model.ContentType
	Title       string
	Latitude    float64
	Longitude   float64
	Budget      string // decimal TON
}

type OrderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

func (s *OrderService) Create(ctx context.Context, requesterID int64, input CreateOrderInput) (*model.Order, error) {
	if !input.ContentType.Valid() {
		return nil, apperrors.InvalidInput("contentType", "must be photo, video or live")
	}
	if input.Title == "" {
		return nil, apperrors.MissingRequired("title")
	}
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return nil, apperrors.InvalidInput("location", "coordinates out of range")
	}

	budgetNano, err := ton.ToNano(input.Budget)
	if err != nil {
		return nil, err
	}
	if !ton.MeetsMinimum(budgetNano) {
		return nil, apperrors.InvalidAmount(fmt.Sprintf("budget must be at least %s TON", ton.FormatNano(ton.MinOrderNano)))
	}

	order, err := s.orderRepo.Create(ctx, model.CreateOrderParams{
		RequesterID: requesterID,
		ContentType: input.ContentType,
		Title:       input.Title,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		BudgetNano:  budgetNano,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("create order: %w", err))
	}

	log.Info().
		Str("orderId", order.ID).
		Int64("requesterId", requesterID).
		Int64("budgetNano", budgetNano).
		Msg("order created")

	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, apperrors.NotFound("Order")
	}
	return order, nil
}

// Take assigns the calling provider to a funded order.
func (s *OrderService) Take(ctx context.Context, orderID string, providerID int64) (*model.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RequesterID == providerID {
		return nil, apperrors.Forbidden("Requester cannot take their own order")
	}
	if order.ProviderID != nil {
		return nil, apperrors.Conflict("Order already has a provider")
	}
	if order.Status != model.OrderStatusFunded {
		return nil, apperrors.Conflict(fmt.Sprintf("Order cannot be taken in status %s", order.Status))
	}

	assigned, err := s.orderRepo.AssignProvider(ctx, orderID, providerID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("assign provider: %w", err))
	}
	if !assigned {
		return nil, apperrors.Conflict("Order was taken by another provider")
	}

	log.Info().
		Str("orderId", orderID).
		Int64("providerId", providerID).
		Msg("order taken")

	return s.Get(ctx, orderID)
}
