package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showpls/showpls-server-go/internal/auth"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/model"
)

type mockOrderRepo struct {
	orders  map[string]*model.Order
	findErr error
}

func newMockOrderRepo(orders ...*model.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]*model.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.orders[id], nil
}

func (m *mockOrderRepo) Create(ctx context.Context, params model.CreateOrderParams) (*model.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockOrderRepo) AssignProvider(ctx context.Context, id string, providerID int64) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockOrderRepo) SetFunded(ctx context.Context, id string, txHash string) (bool, error) {
	return false, errors.New("not implemented")
}

func testOrder() *model.Order {
	providerID := int64(7)
	return &model.Order{
		ID:          "ord-123",
		RequesterID: 42,
		ProviderID:  &providerID,
		Status:      model.OrderStatusInProgress,
	}
}

func TestAuthorize(t *testing.T) {
	issuer := auth.NewTokenIssuer("authorizer-unit-test-secret-0123456789", time.Hour)

	tokenFor := func(t *testing.T, id int64, username string) string {
		t.Helper()
		token, err := issuer.Issue(&model.TelegramUser{ID: id, Username: username})
		require.NoError(t, err)
		return token
	}

	t.Run("admits the requester", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		binding, err := a.Authorize(context.Background(), tokenFor(t, 42, "alice_p"), "ord-123")
		require.NoError(t, err)
		assert.Equal(t, int64(42), binding.UserID)
		assert.Equal(t, "alice_p", binding.Username)
		assert.Equal(t, "ord-123", binding.OrderID)
	})

	t.Run("admits the provider", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		binding, err := a.Authorize(context.Background(), tokenFor(t, 7, "bob_cam"), "ord-123")
		require.NoError(t, err)
		assert.Equal(t, int64(7), binding.UserID)
	})

	t.Run("rejects a stranger with a valid token", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		_, err := a.Authorize(context.Background(), tokenFor(t, 999, "mallory"), "ord-123")
		assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
	})

	t.Run("rejects missing token", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		_, err := a.Authorize(context.Background(), "", "ord-123")
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("rejects missing order id", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		_, err := a.Authorize(context.Background(), tokenFor(t, 42, "alice_p"), "")
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo(testOrder()))

		_, err := a.Authorize(context.Background(), "not-a-jwt", "ord-123")
		assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
	})

	t.Run("rejects unknown order", func(t *testing.T) {
		a := NewAuthorizer(issuer, newMockOrderRepo())

		_, err := a.Authorize(context.Background(), tokenFor(t, 42, "alice_p"), "ord-missing")
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("maps repository failures to store unavailable", func(t *testing.T) {
		repo := newMockOrderRepo(testOrder())
		repo.findErr = errors.New("connection refused")
		a := NewAuthorizer(issuer, repo)

		_, err := a.Authorize(context.Background(), tokenFor(t, 42, "alice_p"), "ord-123")
		assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.GetCode(err))
	})
}
