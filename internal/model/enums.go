package model

type OrderStatus string

const (
	OrderStatusCreated        OrderStatus = "created"
	OrderStatusPendingFunding OrderStatus = "pending_funding"
	OrderStatusFunded         OrderStatus = "funded"
	OrderStatusInProgress     OrderStatus = "in_progress"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusDisputed       OrderStatus = "disputed"
)

// orderTransitions lists the allowed forward edges of the order lifecycle.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:        {OrderStatusPendingFunding, OrderStatusCancelled},
	OrderStatusPendingFunding: {OrderStatusFunded, OrderStatusCancelled},
	OrderStatusFunded:         {OrderStatusInProgress, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusInProgress:     {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDelivered:      {OrderStatusCompleted, OrderStatusDisputed},
	OrderStatusDisputed:       {OrderStatusCompleted, OrderStatusCancelled},
}

// CanTransition reports whether moving from s to next is a legal lifecycle edge.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ContentType string

const (
	ContentTypePhoto ContentType = "photo"
	ContentTypeVideo ContentType = "video"
	ContentTypeLive  ContentType = "live"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypePhoto, ContentTypeVideo, ContentTypeLive:
		return true
	}
	return false
}
