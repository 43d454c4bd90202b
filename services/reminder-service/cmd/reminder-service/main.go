package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendapet/agendapet/libs/config"
	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/gateway"
	"github.com/agendapet/agendapet/libs/httpx"
	"github.com/agendapet/agendapet/libs/kafkax"
	"github.com/agendapet/agendapet/libs/outbox"
	otelx "github.com/agendapet/agendapet/libs/otel"
	"github.com/agendapet/agendapet/libs/runtime"
	"github.com/agendapet/agendapet/services/reminder-service/internal/storage"
	"github.com/agendapet/agendapet/services/reminder-service/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8082")
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

	store := storage.NewStore(pool, outboxRepo)
	profiles := storage.NewProfileStore(pool)
	sender := gateway.NewClient(
		config.String("GATEWAY_API_URL", ""),
		config.String("GATEWAY_API_KEY", ""),
	)
	sweeper := sweep.NewSweeper(store, profiles, sender, logger, loc)

	interval := config.DurationSeconds("REMINDER_SWEEP_INTERVAL_SECONDS", 5*time.Minute)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := sweeper.Sweep(ctx); err != nil {
					logger.Error("reminder sweep failed", "err", err)
				}
			}
		}
	}()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sent, err := sweeper.Sweep(r.Context())
		if err != nil {
			logger.Error("manual sweep failed", "err", err)
			http.Error(w, "sweep failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int{"sent": sent})
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "reminder")

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
