package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/auth"
	"github.com/showpls/showpls-server-go/internal/chain"
	"github.com/showpls/showpls-server-go/internal/config"
	"github.com/showpls/showpls-server-go/internal/database"
	"github.com/showpls/showpls-server-go/internal/handler"
	"github.com/showpls/showpls-server-go/internal/jobs"
	"github.com/showpls/showpls-server-go/internal/middleware"
	"github.com/showpls/showpls-server-go/internal/redis"
	"github.com/showpls/showpls-server-go/internal/repository"
	"github.com/showpls/showpls-server-go/internal/service"
	"github.com/showpls/showpls-server-go/internal/telegram"
	"github.com/showpls/showpls-server-go/internal/ws"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != "" || os.Getenv("ENVIRONMENT") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	idempotencyRepo := repository.NewIdempotencyRepository(db.DB)
	orderRepo := repository.NewOrderRepository(db.DB)

	var verifier *telegram.Verifier
	if cfg.AllowInsecureAuth && !isProduction {
		verifier = telegram.NewInsecureVerifier()
	} else {
		verifier = telegram.NewVerifier(cfg.TelegramBotToken, cfg.InitDataMaxAge())
	}

	tokenIssuer := auth.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL())
	rateLimiter := service.NewRateLimiter(redisClient.Client)
	idempotencyService := service.NewIdempotencyService(idempotencyRepo)
	orderService := service.NewOrderService(orderRepo)
	escrowService := service.NewEscrowService(
		orderRepo, chain.AcceptingVerifier{}, cfg.EscrowWalletAddress, cfg.PlatformFeeBps,
	)

	hub := ws.NewHub(redisClient)
	defer hub.Close()
	chatServer := ws.NewServer(
		ws.NewAuthorizer(tokenIssuer, orderRepo), hub, rateLimiter, cfg.ChatRateLimitPerMin,
	)

	api := handler.NewRouter(handler.RouterDeps{
		TelegramAuth: middleware.NewTelegramAuthMiddleware(verifier),
		Session:      middleware.NewSessionMiddleware(tokenIssuer),
		RateLimit:    middleware.NewRateLimitMiddleware(rateLimiter, config.DefaultRateLimitPerMin),
		Idempotency:  middleware.NewIdempotencyMiddleware(idempotencyService),
		Auth:         handler.NewAuthHandler(tokenIssuer, cfg.SessionTTL()),
		Orders:       handler.NewOrderHandler(orderService),
		Escrow:       handler.NewEscrowHandler(escrowService),
		Chat:         chatServer,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Mount("/", api)

	cleanupJob := jobs.NewCleanupJob(idempotencyRepo, cfg.IdempotencyRetention(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays zero: websocket connections outlive any
		// reasonable response deadline.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
