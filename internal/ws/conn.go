package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/audit"
	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/service"
)

// Connection lifecycle states.
const (
	stateConnecting int32 = iota
	stateAuthenticated
	stateActive
	stateIdle
	stateClosed
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	idleAfter      = 2 * time.Minute
	maxMessageSize = 16 * 1024
)

// inboundFrame is what a chat participant may send.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server upgrades chat connections, gates them through the Authorizer and
// relays frames through the Hub.
type Server struct {
	authorizer *Authorizer
	hub        *Hub
	limiter    *service.RateLimiter
	msgLimit   int

	upgrader websocket.Upgrader
}

func NewServer(authorizer *Authorizer, hub *Hub, limiter *service.RateLimiter, msgLimitPerMin int) *Server {
	return &Server{
		authorizer: authorizer,
		hub:        hub,
		limiter:    limiter,
		msgLimit:   msgLimitPerMin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The session token is the access control; the mini-app runs
			// inside Telegram's webview with varying origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	orderID := r.URL.Query().Get("orderId")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	state := stateConnecting

	binding, err := s.authorizer.Authorize(r.Context(), token, orderID)
	if err != nil {
		log.Warn().Err(err).Str("orderId", orderID).Msg("websocket connection rejected")
		audit.LogFromRequest(r, audit.Event{Type: audit.EventSocketRejected, OrderID: orderID})
		closeWithPolicyViolation(conn, err)
		return
	}
	state = stateAuthenticated

	client := s.hub.Subscribe(binding.OrderID, binding.UserID)
	defer s.hub.Unsubscribe(client)

	session := &connSession{
		server:  s,
		ctx:     r.Context(),
		conn:    conn,
		client:  client,
		binding: binding,
		state:   state,
	}
	session.run()
}

// closeWithPolicyViolation sends close code 1008 and drops the connection,
// never leaving it open unauthenticated.
func closeWithPolicyViolation(conn *websocket.Conn, err error) {
	reason := "unauthorized"
	if appErr, ok := apperrors.AsAppError(err); ok {
		reason = string(appErr.Code)
	}
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline,
	)
	conn.Close()
}

type connSession struct {
	server  *Server
	ctx     context.Context
	conn    *websocket.Conn
	client  *Client
	binding *Binding
	state   int32

	lastActivity atomic.Int64
}

func (cs *connSession) run() {
	cs.setState(stateActive)
	cs.lastActivity.Store(time.Now().UnixNano())

	go cs.writePump()
	cs.readPump()
}

func (cs *connSession) setState(state int32) {
	atomic.StoreInt32(&cs.state, state)
}

// touch records inbound traffic, flipping an idle connection back to active.
func (cs *connSession) touch() {
	cs.lastActivity.Store(time.Now().UnixNano())
	cs.setState(stateActive)
}

func (cs *connSession) readPump() {
	defer func() {
		cs.setState(stateClosed)
		cs.conn.Close()
	}()

	cs.conn.SetReadLimit(maxMessageSize)
	cs.conn.SetReadDeadline(time.Now().Add(pongWait))
	cs.conn.SetPongHandler(func(string) error {
		cs.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := cs.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("orderId", cs.binding.OrderID).Msg("websocket read error")
			}
			return
		}

		cs.touch()
		cs.handleFrame(payload)
	}
}

func (cs *connSession) handleFrame(payload []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil || frame.Type == "" {
		// Malformed bodies get a typed error reply, not a close.
		cs.sendError("Malformed message")
		return
	}

	limiterKey := "chat:" + strconv.FormatInt(cs.binding.UserID, 10)
	allowed, _, _ := cs.server.limiter.Check(cs.ctx, limiterKey, cs.server.msgLimit, time.Minute)
	if !allowed {
		cs.sendError("Rate limit exceeded")
		return
	}

	switch frame.Type {
	case "message", "typing", "location":
		err := cs.server.hub.Publish(cs.ctx, cs.binding.OrderID, Event{
			Type: frame.Type,
			Data: frame.Data,
		}, cs.binding.UserID)
		if err != nil {
			log.Error().Err(err).Str("orderId", cs.binding.OrderID).Msg("failed to publish chat event")
			cs.sendError("Delivery failed")
		}
	default:
		cs.sendError("Unknown message type")
	}
}

func (cs *connSession) sendError(message string) {
	select {
	case cs.client.Events <- Event{Type: "error", Message: message}:
	default:
	}
}

func (cs *connSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	idleTicker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		idleTicker.Stop()
		cs.conn.Close()
	}()

	for {
		select {
		case event, ok := <-cs.client.Events:
			cs.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cs.conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				return
			}
			if err := cs.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			cs.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cs.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-idleTicker.C:
			last := time.Unix(0, cs.lastActivity.Load())
			if time.Since(last) > idleAfter && atomic.LoadInt32(&cs.state) == stateActive {
				cs.setState(stateIdle)
			}

		case <-cs.client.Done:
			return
		}
	}
}
