package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/showpls/showpls-server-go/internal/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
	Create(ctx context.Context, params model.CreateOrderParams) (*model.Order, error)
	// UpdateStatus moves the order between lifecycle states. The WHERE clause
	// repeats the expected current status so a lost race updates nothing.
	UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error)
	AssignProvider(ctx context.Context, id string, providerID int64) (bool, error)
	SetFunded(ctx context.Context, id string, txHash string) (bool, error)
}

type orderRepo struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.GetContext(ctx, &order, `
		SELECT * FROM orders WHERE id = $1
	`, id)
	return HandleNotFound(&order, err)
}

func (r *orderRepo) Create(ctx context.Context, params model.CreateOrderParams) (*model.Order, error) {
	var order model.Order
	err := r.db.GetContext(ctx, &order, `
		INSERT INTO orders (id, requester_id, status, content_type, title, latitude, longitude, budget_nano)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, uuid.NewString(), params.RequesterID, model.OrderStatusCreated, params.ContentType,
		params.Title, params.Latitude, params.Longitude, params.BudgetNano)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from, to model.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *orderRepo) AssignProvider(ctx context.Context, id string, providerID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			provider_id = $2,
			status = $3,
			updated_at = $4
		WHERE id = $1 AND provider_id IS NULL AND status = $5
	`, id, providerID, model.OrderStatusInProgress, time.Now(), model.OrderStatusFunded)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

func (r *orderRepo) SetFunded(ctx context.Context, id string, txHash string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $2,
			escrow_tx = $3,
			updated_at = $4
		WHERE id = $1 AND status = $5
	`, id, model.OrderStatusFunded, txHash, time.Now(), model.OrderStatusPendingFunding)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}
