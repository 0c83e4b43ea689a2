package ws

import (
	"runtime"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/showpls/showpls-server-go/internal/redis"
)

// newTestHub wires the hub to an unreachable redis so the pub/sub goroutines
// spin harmlessly; fan-out is exercised through broadcast directly.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	client := &redisclient.Client{Client: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})}
	h := NewHub(client)
	t.Cleanup(h.Close)
	return h
}

func drain(c *Client) []Event {
	var events []Event
	for {
		select {
		case ev := <-c.Events:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestHubBroadcastReachesOrderParticipants(t *testing.T) {
	h := newTestHub(t)

	requester := h.Subscribe("ord-1", 42)
	provider := h.Subscribe("ord-1", 7)
	bystander := h.Subscribe("ord-2", 99)

	h.broadcast("ord-1", envelope{Event: Event{Type: "message", Message: "hello"}})

	for _, c := range []*Client{requester, provider} {
		events := drain(c)
		require.Len(t, events, 1)
		assert.Equal(t, "message", events[0].Type)
		assert.Equal(t, "hello", events[0].Message)
	}
	assert.Empty(t, drain(bystander), "other orders must not receive the event")
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	h := newTestHub(t)

	sender := h.Subscribe("ord-1", 42)
	receiver := h.Subscribe("ord-1", 7)

	h.broadcast("ord-1", envelope{
		Event:         Event{Type: "typing"},
		ExcludeUserID: 42,
	})

	assert.Empty(t, drain(sender), "sender must not receive its own event")
	assert.Len(t, drain(receiver), 1)
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	h := newTestHub(t)

	slow := h.Subscribe("ord-1", 42)

	// one past the channel capacity; the overflow is dropped, not blocked on
	for i := 0; i < cap(slow.Events)+1; i++ {
		h.broadcast("ord-1", envelope{Event: Event{Type: "message"}})
	}

	assert.Len(t, drain(slow), cap(slow.Events))
}

func TestHubSubscribeUnsubscribeLifecycle(t *testing.T) {
	h := newTestHub(t)

	first := h.Subscribe("ord-1", 42)
	second := h.Subscribe("ord-1", 7)
	assert.Equal(t, 2, h.ClientCount("ord-1"))

	h.Unsubscribe(first)
	assert.Equal(t, 1, h.ClientCount("ord-1"))

	select {
	case <-first.Done:
	default:
		t.Fatal("Done must be closed on unsubscribe")
	}

	// events after unsubscribe go only to remaining clients
	h.broadcast("ord-1", envelope{Event: Event{Type: "message"}})
	assert.Empty(t, drain(first))
	assert.Len(t, drain(second), 1)

	h.Unsubscribe(second)
	assert.Equal(t, 0, h.ClientCount("ord-1"))
}

func TestHubTearsDownSubscriptionWithLastClient(t *testing.T) {
	h := newTestHub(t)

	first := h.Subscribe("ord-1", 42)
	second := h.Subscribe("ord-1", 7)
	assert.Equal(t, 1, h.subscriptionCount(), "one order, one subscription")

	h.Unsubscribe(first)
	assert.Equal(t, 1, h.subscriptionCount(), "subscription outlives the first client")

	h.Unsubscribe(second)
	assert.Equal(t, 0, h.subscriptionCount(), "last client out tears the subscription down")

	// a resubscribe gets exactly one fresh subscription, so a published
	// envelope can never fan out to the same connection twice
	again := h.Subscribe("ord-1", 42)
	defer h.Unsubscribe(again)
	assert.Equal(t, 1, h.subscriptionCount())

	h.broadcast("ord-1", envelope{Event: Event{Type: "message"}})
	assert.Len(t, drain(again), 1)
}

func TestHubSubscribeCyclesDoNotLeakGoroutines(t *testing.T) {
	h := newTestHub(t)

	// prime one cycle so lazily started runtime helpers are counted
	h.Unsubscribe(h.Subscribe("ord-1", 42))

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		client := h.Subscribe("ord-1", 42)
		h.Unsubscribe(client)
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 20*time.Millisecond,
		"subscriber goroutines must exit when their order has no clients")
	assert.Equal(t, 0, h.subscriptionCount())
}
