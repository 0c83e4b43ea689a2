package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdempotentRequest stores the first successful response for a given key.
// Rows are append-only; the unique key constraint is the arbiter when
// concurrent requests race on a fresh key.
type IdempotentRequest struct {
	Key       uuid.UUID       `db:"key" json:"key"`
	Operation string          `db:"operation" json:"operation"`
	Response  json.RawMessage `db:"response" json:"response"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
