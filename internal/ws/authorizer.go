package ws

import (
	"context"
	"fmt"

	"github.com/showpls/showpls-server-go/internal/auth"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/repository"
)

// Binding is the verified (user, order) pair a connection is scoped to.
type Binding struct {
	UserID   int64
	Username string
	OrderID  string
}

// Authorizer admits a connection only when the bearer of a valid session
// token is a party to the targeted order.
type Authorizer struct {
	issuer    *auth.TokenIssuer
	orderRepo repository.OrderRepository
}

func NewAuthorizer(issuer *auth.TokenIssuer, orderRepo repository.OrderRepository) *Authorizer {
	return &Authorizer{issuer: issuer, orderRepo: orderRepo}
}

// Authorize verifies the token and the bearer's membership on the order.
// The returned binding is fixed for the connection's lifetime.
func (a *Authorizer) Authorize(ctx context.Context, token, orderID string) (*Binding, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("Missing token")
	}
	if orderID == "" {
		return nil, apperrors.MissingRequired("orderId")
	}

	claims, err := a.issuer.Verify(token)
	if err != nil {
		return nil, err
	}

	order, err := a.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("find order: %w", err))
	}
	if order == nil {
		return nil, apperrors.NotFound("Order")
	}

	userID := claims.UserID()
	if !order.IsParty(userID) {
		return nil, apperrors.Forbidden("Not a party to this order")
	}

	return &Binding{
		UserID:   userID,
		Username: claims.Username,
		OrderID:  order.ID,
	}, nil
}
