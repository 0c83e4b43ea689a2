package model

import "time"

type Order struct {
	ID          string      `db:"id" json:"id"`
	RequesterID int64       `db:"requester_id" json:"requesterId"`
	ProviderID  *int64      `db:"provider_id" json:"providerId,omitempty"`
	Status      OrderStatus `db:"status" json:"status"`
	ContentType ContentType `db:"content_type" json:"contentType"`
	Title       string      `db:"title" json:"title"`
	Latitude    float64     `db:"latitude" json:"latitude"`
	Longitude   float64     `db:"longitude" json:"longitude"`
	BudgetNano  int64       `db:"budget_nano" json:"budgetNano"`
	EscrowTx    *string     `db:"escrow_tx" json:"escrowTx,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsParty reports whether the given user is the requester or the assigned provider.
func (o *Order) IsParty(userID int64) bool {
	if o.RequesterID == userID {
		return true
	}
	return o.ProviderID != nil && *o.ProviderID == userID
}

type CreateOrderParams struct {
	RequesterID int64
	ContentType ContentType
	Title       string
	Latitude    float64
	Longitude   float64
	BudgetNano  int64
}
