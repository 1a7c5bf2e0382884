// Command server runs the vaxcov dataset service: ingest of country-year
// immunization source files and query endpoints over the cleaned records.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaxcov/internal/audit"
	"vaxcov/internal/dataset/handler"
	"vaxcov/internal/dataset/ingest"
	"vaxcov/internal/dataset/metrics"
	"vaxcov/internal/dataset/service"
	"vaxcov/internal/dataset/store"
	jwttoken "vaxcov/internal/jwt_token"
	"vaxcov/internal/platform/config"
	"vaxcov/internal/platform/httpserver"
	"vaxcov/internal/platform/logger"
	authmw "vaxcov/internal/platform/middleware"
	redisclient "vaxcov/internal/platform/redis"
	"vaxcov/pkg/platform/middleware/requesttime"
)

func main() {
	cfg := config.Load()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Dataset.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	auditStore := audit.NewPostgresStore(db)
	if err := auditStore.EnsureSchema(ctx); err != nil {
		return err
	}

	redis, err := redisclient.New(cfg.Redis)
	if err != nil {
		return err
	}

	datasetMetrics := metrics.New()

	var records store.RecordStore = pg
	if redis != nil {
		defer redis.Close()
		records = store.NewCached(pg, redis.Client, cfg.Dataset.CacheTTL, log, datasetMetrics)
		log.Info("record cache enabled", "ttl", cfg.Dataset.CacheTTL)
	}

	sinks := []audit.Sink{auditStore}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := kafka.Close(closeCtx); err != nil {
				log.Error("kafka close failed", "error", err)
			}
		}()
		sinks = append(sinks, kafka)
		log.Info("audit kafka sink enabled", "topic", cfg.Kafka.Topic)
	}

	sampler := audit.NewSampler(cfg.Kafka.OpsSampleRate)
	publisher := audit.NewPublisher(sampler, sinks...)
	worker := audit.NewWorker(publisher, 4096, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	svc := service.New(
		datasetStore{RecordStore: records, JobStore: pg},
		ingest.New(cfg.Dataset.IngestWorkers),
		service.WithLogger(log),
		service.WithMetrics(datasetMetrics),
		service.WithAuditTrail(worker),
		service.WithEventLog(auditStore),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	requireAuth := authmw.RequireIngestAuth(
		jwttoken.NewJWTServiceAdapter(jwtService),
		cfg.Server.IngestKeyHash,
		log,
	)

	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(authmw.RequestID)
	router.Use(requesttime.Middleware)

	handler.New(svc, log).Register(router, requireAuth)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redis))

	srv := httpserver.New(cfg.Server.Addr, router)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	}()

	log.Info("starting vaxcov", "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// datasetStore composes the cached record path with the Postgres job path
// into the single store the service expects.
type datasetStore struct {
	store.RecordStore
	store.JobStore
}

func healthz(db *sql.DB, redis *redisclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if redis != nil {
			if err := redis.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
