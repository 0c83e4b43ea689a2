package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	redisclient "github.com/showpls/showpls-server-go/internal/redis"
)

// Event is a frame relayed to chat participants.
type Event struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// envelope rides the redis channel so the sender exclusion survives fan-out
// across instances.
type envelope struct {
	Event         Event `json:"event"`
	ExcludeUserID int64 `json:"excludeUserId,omitempty"`
}

// Client is one authenticated connection bound to an order. The binding is
// immutable for the connection's lifetime.
type Client struct {
	UserID  int64
	OrderID string
	Events  chan Event
	Done    chan struct{}
}

// orderSub is the hub's per-order state: the set of open connections plus
// the cancel for that order's redis subscription. The subscription lives
// exactly as long as the client set is non-empty, so an order never has
// more than one subscriber goroutine on its channel.
type orderSub struct {
	clients map[*Client]bool
	cancel  context.CancelFunc
}

// Hub fans chat events out to every open connection bound to an order.
// Delivery is at-most-once per open connection; there is no buffering for
// disconnected recipients.
type Hub struct {
	redis  *redisclient.Client
	orders map[string]*orderSub
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(redisClient *redisclient.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		redis:  redisClient,
		orders: make(map[string]*orderSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Hub) Subscribe(orderID string, userID int64) *Client {
	client := &Client{
		UserID:  userID,
		OrderID: orderID,
		Events:  make(chan Event, 64),
		Done:    make(chan struct{}),
	}

	h.mu.Lock()
	sub, ok := h.orders[orderID]
	if !ok {
		subCtx, cancel := context.WithCancel(h.ctx)
		sub = &orderSub{
			clients: make(map[*Client]bool),
			cancel:  cancel,
		}
		h.orders[orderID] = sub
		go h.subscribeToRedis(subCtx, orderID)
	}
	sub.clients[client] = true
	clientCount := len(sub.clients)
	h.mu.Unlock()

	log.Info().
		Str("orderId", orderID).
		Int64("userId", userID).
		Int("clientCount", clientCount).
		Msg("chat client subscribed")

	return client
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.orders[client.OrderID]
	if !ok {
		return
	}
	if _, ok := sub.clients[client]; !ok {
		return
	}

	delete(sub.clients, client)
	close(client.Done)

	if len(sub.clients) == 0 {
		// Last client gone: tear down this order's redis subscription so a
		// later resubscribe starts exactly one fresh goroutine.
		sub.cancel()
		delete(h.orders, client.OrderID)
	}

	log.Info().
		Str("orderId", client.OrderID).
		Int64("userId", client.UserID).
		Int("clientCount", len(sub.clients)).
		Msg("chat client unsubscribed")
}

// Publish delivers an event to every connection on the order, optionally
// excluding the sender (excludeUserID 0 excludes nobody).
func (h *Hub) Publish(ctx context.Context, orderID string, event Event, excludeUserID int64) error {
	data, err := json.Marshal(envelope{Event: event, ExcludeUserID: excludeUserID})
	if err != nil {
		return err
	}

	channel := redisclient.OrderChannel(orderID)
	return h.redis.Publish(ctx, channel, data).Err()
}

func (h *Hub) subscribeToRedis(ctx context.Context, orderID string) {
	channel := redisclient.OrderChannel(orderID)
	pubsub := h.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal chat envelope")
				continue
			}

			h.broadcast(orderID, env)
		}
	}
}

func (h *Hub) broadcast(orderID string, env envelope) {
	h.mu.RLock()
	sub, ok := h.orders[orderID]
	var clients []*Client
	if ok {
		clients = make([]*Client, 0, len(sub.clients))
		for client := range sub.clients {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if env.ExcludeUserID != 0 && client.UserID == env.ExcludeUserID {
			continue
		}
		select {
		case client.Events <- env.Event:
		default:
			log.Warn().
				Str("orderId", orderID).
				Int64("userId", client.UserID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.orders {
		for client := range sub.clients {
			close(client.Done)
		}
	}
	h.orders = make(map[string]*orderSub)
}

func (h *Hub) ClientCount(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.orders[orderID]; ok {
		return len(sub.clients)
	}
	return 0
}

// subscriptionCount reports how many per-order redis subscriptions are live.
func (h *Hub) subscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.orders)
}
