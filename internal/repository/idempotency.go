package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/showpls/showpls-server-go/internal/model"
)

// ErrDuplicateKey is returned by Insert when another writer already claimed
// the key. The caller falls back to reading the winner's record.
var ErrDuplicateKey = errors.New("idempotency key already exists")

type IdempotencyRepository interface {
	FindByKey(ctx context.Context, key uuid.UUID) (*model.IdempotentRequest, error)
	// Insert persists a record for a fresh key. Inserts are append-only;
	// a concurrent writer losing the race gets ErrDuplicateKey.
	Insert(ctx context.Context, key uuid.UUID, operation string, response json.RawMessage) error
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

type idempotencyRepo struct {
	db *sqlx.DB
}

func NewIdempotencyRepository(db *sqlx.DB) IdempotencyRepository {
	return &idempotencyRepo{db: db}
}

func (r *idempotencyRepo) FindByKey(ctx context.Context, key uuid.UUID) (*model.IdempotentRequest, error) {
	var record model.IdempotentRequest
	err := r.db.GetContext(ctx, &record, `
		SELECT key, operation, response, created_at
		FROM idempotent_requests
		WHERE key = $1
	`, key)
	return HandleNotFound(&record, err)
}

func (r *idempotencyRepo) Insert(ctx context.Context, key uuid.UUID, operation string, response json.RawMessage) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotent_requests (key, operation, response, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO NOTHING
	`, key, operation, string(response))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuplicateKey
	}
	return nil
}

func (r *idempotencyRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM idempotent_requests
		WHERE created_at < $1
	`, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
