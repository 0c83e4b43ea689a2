package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showpls/showpls-server-go/internal/middleware"
	"github.com/showpls/showpls-server-go/internal/ws"
)

// RouterDeps bundles everything the API router mounts.
type RouterDeps struct {
	TelegramAuth *middleware.TelegramAuthMiddleware
	Session      *middleware.SessionMiddleware
	RateLimit    *middleware.RateLimitMiddleware
	Idempotency  *middleware.IdempotencyMiddleware

	Auth   *AuthHandler
	Orders *OrderHandler
	Escrow *EscrowHandler
	Chat   *ws.Server
}

// GuardedRoutes enumerates every money-moving route. Each of these must sit
// behind the idempotency gate; a test asserts the enumeration against the
// mounted router so a misconfigured gate fails CI instead of shipping.
var GuardedRoutes = []string{
	"POST /v1/orders/{orderID}/escrow/prepare",
	"POST /v1/orders/{orderID}/escrow/verify",
}

// NewRouter mounts the /v1 API surface.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.TelegramAuth.Handler)
			r.Post("/auth/telegram", deps.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Session.Handler)
			r.Use(deps.RateLimit.Handler)

			r.Post("/orders", deps.Orders.Create)
			r.Get("/orders/{orderID}", deps.Orders.Get)
			r.Post("/orders/{orderID}/take", deps.Orders.Take)

			r.Group(func(r chi.Router) {
				r.Use(deps.Idempotency.Handler)
				r.Post("/orders/{orderID}/escrow/prepare", deps.Escrow.Prepare)
				r.Post("/orders/{orderID}/escrow/verify", deps.Escrow.Verify)
			})
		})

		// The socket authorizes itself from query params; session middleware
		// would reject the browser's upgrade request before the token check.
		r.Get("/orders/{orderID}/chat", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			if q.Get("orderId") == "" {
				q.Set("orderId", chi.URLParam(req, "orderID"))
				req.URL.RawQuery = q.Encode()
			}
			deps.Chat.ServeHTTP(w, req)
		})
	})

	return r
}
