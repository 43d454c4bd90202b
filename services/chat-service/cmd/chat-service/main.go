package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendapet/agendapet/libs/config"
	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/gateway"
	"github.com/agendapet/agendapet/libs/httpx"
	"github.com/agendapet/agendapet/libs/kafkax"
	"github.com/agendapet/agendapet/libs/outbox"
	otelx "github.com/agendapet/agendapet/libs/otel"
	"github.com/agendapet/agendapet/libs/runtime"
	"github.com/agendapet/agendapet/services/chat-service/internal/engine"
	"github.com/agendapet/agendapet/services/chat-service/internal/memory"
	"github.com/agendapet/agendapet/services/chat-service/internal/modelclient"
	"github.com/agendapet/agendapet/services/chat-service/internal/storage"
	"github.com/agendapet/agendapet/services/chat-service/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "chat-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("SHOP_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		logger.Error("invalid timezone, falling back to UTC", "err", err)
		loc = time.UTC
	}

	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	profiles := storage.NewProfileStore(pool)
	appointments := storage.NewAppointmentStore(pool, outboxRepo)
	conversations := memory.NewStore(pool)
	model := modelclient.New(
		config.String("MODEL_API_URL", ""),
		config.String("MODEL_API_KEY", ""),
		config.String("MODEL_NAME", ""),
	)
	sender := gateway.NewClient(
		config.String("GATEWAY_API_URL", ""),
		config.String("GATEWAY_API_KEY", ""),
	)

	chatEngine := engine.New(profiles, appointments, conversations, model, sender, logger, loc)
	webhookHandler := webhook.NewHandler(chatEngine, profiles, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/webhook", webhookHandler.Handle)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(60 * time.Second),
	}
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("WEBHOOK_RATE_LIMIT", 120), time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		limiter := httpx.NewRateLimiter(config.Int("WEBHOOK_RATE_LIMIT", 120), time.Minute)
		middlewares = append(middlewares, limiter.Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "chat")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
