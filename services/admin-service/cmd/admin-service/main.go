package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendapet/agendapet/libs/config"
	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/httpx"
	"github.com/agendapet/agendapet/libs/kafkax"
	"github.com/agendapet/agendapet/libs/outbox"
	otelx "github.com/agendapet/agendapet/libs/otel"
	"github.com/agendapet/agendapet/libs/runtime"
	"github.com/agendapet/agendapet/services/admin-service/internal/handlers"
	"github.com/agendapet/agendapet/services/admin-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "admin-service")
	port, err := config.Port("PORT", "8083")
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

	outboxRepo := outbox.NewRepository()
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	store := storage.NewStore(pool, outboxRepo)
	handler := handlers.NewHandler(store, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOW_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowedHeaders: []string{"Content-Type", "X-Tenant-Id"},
			MaxAge:         10 * time.Minute,
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "admin")

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
