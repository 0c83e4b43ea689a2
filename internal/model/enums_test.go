package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusCreated, OrderStatusPendingFunding},
		{OrderStatusCreated, OrderStatusCancelled},
		{OrderStatusPendingFunding, OrderStatusFunded},
		{OrderStatusFunded, OrderStatusInProgress},
		{OrderStatusInProgress, OrderStatusDelivered},
		{OrderStatusDelivered, OrderStatusCompleted},
		{OrderStatusDelivered, OrderStatusDisputed},
		{OrderStatusDisputed, OrderStatusCancelled},
	}
	for _, tt := range allowed {
		assert.True(t, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}

	forbidden := []struct{ from, to OrderStatus }{
		{OrderStatusCreated, OrderStatusFunded},     // cannot skip funding
		{OrderStatusFunded, OrderStatusCreated},     // no going back
		{OrderStatusCompleted, OrderStatusDisputed}, // terminal
		{OrderStatusCancelled, OrderStatusCreated},  // terminal
		{OrderStatusPendingFunding, OrderStatusInProgress},
	}
	for _, tt := range forbidden {
		assert.False(t, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestContentTypeValid(t *testing.T) {
	for _, ct := range []ContentType{ContentTypePhoto, ContentTypeVideo, ContentTypeLive} {
		assert.True(t, ct.Valid(), string(ct))
	}
	for _, ct := range []ContentType{"", "hologram", "PHOTO"} {
		assert.False(t, ct.Valid(), string(ct))
	}
}

func TestOrderIsParty(t *testing.T) {
	providerID := int64(7)
	order := &Order{RequesterID: 42, ProviderID: &providerID}

	assert.True(t, order.IsParty(42))
	assert.True(t, order.IsParty(7))
	assert.False(t, order.IsParty(99))

	unassigned := &Order{RequesterID: 42}
	assert.True(t, unassigned.IsParty(42))
	assert.False(t, unassigned.IsParty(7))
}
