package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/chain"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/model"
	"github.com/showpls/showpls-server-go/internal/repository"
	"github.com/showpls/showpls-server-go/internal/ton"
)

// FundingPreparation carries the exact amounts for the wallet transaction
// plus display strings for the mini-app UI.
type FundingPreparation struct {
	OrderID         string `json:"orderId"`
	EscrowAddress   string `json:"escrowAddress"`
	BudgetNano      int64  `json:"budgetNano"`
	PlatformFeeNano int64  `json:"platformFeeNano"`
	ProviderNano    int64  `json:"providerNano"`
	BudgetTON       string `json:"budgetTon"`
	PlatformFeeTON  string `json:"platformFeeTon"`
	ProviderTON     string `json:"providerTon"`
	FeeBps          int    `json:"feeBps"`
}

// FundingResult reports the outcome of a funding verification.
type FundingResult struct {
	OrderID string            `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
	TxHash  string            `json:"txHash"`
	Funded  bool              `json:"funded"`
}

type EscrowService struct {
	orderRepo     repository.OrderRepository
	verifier      chain.Verifier
	escrowAddress string
	feeBps        int
}

func NewEscrowService(
	orderRepo repository.OrderRepository,
	verifier chain.Verifier,
	escrowAddress string,
	feeBps int,
) *EscrowService {
	return &EscrowService{
		orderRepo:     orderRepo,
		verifier:      verifier,
		escrowAddress: escrowAddress,
		feeBps:        feeBps,
	}
}

// PrepareFunding computes the exact escrow amounts for an order and moves it
// to pending_funding. Only the requester may fund an order.
func (s *EscrowService) PrepareFunding(ctx context.Context, orderID string, userID int64) (*FundingPreparation, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, apperrors.NotFound("Order")
	}
	if order.RequesterID != userID {
		return nil, apperrors.Forbidden("Only the requester can fund an order")
	}

	switch order.Status {
	case model.OrderStatusCreated:
		if _, err := s.orderRepo.UpdateStatus(ctx, orderID, model.OrderStatusCreated, model.OrderStatusPendingFunding); err != nil {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("update order status: %w", err))
		}
	case model.OrderStatusPendingFunding:
		// repeat preparation is fine; amounts are a pure function of the budget
	default:
		return nil, apperrors.Conflict(fmt.Sprintf("Order cannot be funded in status %s", order.Status))
	}

	fees, err := ton.ComputeFees(order.BudgetNano, s.feeBps)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("orderId", orderID).
		Int64("budgetNano", fees.BudgetNano).
		Int64("platformFeeNano", fees.PlatformFeeNano).
		Msg("funding prepared")

	return &FundingPreparation{
		OrderID:         order.ID,
		EscrowAddress:   s.escrowAddress,
		BudgetNano:      fees.BudgetNano,
		PlatformFeeNano: fees.PlatformFeeNano,
		ProviderNano:    fees.ProviderNano,
		BudgetTON:       fees.BudgetTON(),
		PlatformFeeTON:  fees.PlatformFeeTON(),
		ProviderTON:     fees.ProviderTON(),
		FeeBps:          s.feeBps,
	}, nil
}

// VerifyFunding confirms the escrow deposit for an order and marks it funded.
// Handlers always invoke this under the idempotency gate; re-verification of
// an already funded order reports success rather than a conflict so that a
// replay after record expiry stays harmless.
func (s *EscrowService) VerifyFunding(ctx context.Context, orderID string, userID int64, txHash string) (*FundingResult, error) {
	if txHash == "" {
		return nil, apperrors.MissingRequired("txHash")
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, apperrors.NotFound("Order")
	}
	if order.RequesterID != userID {
		return nil, apperrors.Forbidden("Only the requester can verify funding")
	}

	if order.Status == model.OrderStatusFunded {
		return &FundingResult{
			OrderID: order.ID,
			Status:  order.Status,
			TxHash:  txHash,
			Funded:  true,
		}, nil
	}
	if order.Status != model.OrderStatusPendingFunding {
		return nil, apperrors.Conflict(fmt.Sprintf("Order cannot be verified in status %s", order.Status))
	}

	ok, err := s.verifier.VerifyDeposit(ctx, chain.Deposit{
		OrderID:      order.ID,
		ExpectedNano: order.BudgetNano,
		TxHash:       txHash,
	})
	if err != nil {
		return nil, apperrors.External("chain verifier", err)
	}
	if !ok {
		return nil, apperrors.ValidationError("Deposit does not match the expected escrow amount")
	}

	updated, err := s.orderRepo.SetFunded(ctx, order.ID, txHash)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("mark funded: %w", err))
	}
	if !updated {
		// Another verification won the status race; confirm and report funded.
		current, err := s.orderRepo.FindByID(ctx, order.ID)
		if err != nil || current == nil || current.Status != model.OrderStatusFunded {
			return nil, apperrors.Conflict("Order state changed during verification")
		}
	}

	log.Info().
		Str("orderId", order.ID).
		Str("txHash", txHash).
		Msg("escrow funding verified")

	return &FundingResult{
		OrderID: order.ID,
		Status:  model.OrderStatusFunded,
		TxHash:  txHash,
		Funded:  true,
	}, nil
}
