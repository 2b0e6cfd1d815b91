// Command server runs the patient record service: token issuance, the auth
// gate, and the patient lifecycle API with its billing and event side effects.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	authhandler "careflow/internal/auth/handler"
	authservice "careflow/internal/auth/service"
	"careflow/internal/auth/store/user"
	"careflow/internal/billing"
	"careflow/internal/events"
	"careflow/internal/jwttoken"
	outboxmem "careflow/internal/outbox/store/memory"
	outboxpg "careflow/internal/outbox/store/postgres"
	outboxworker "careflow/internal/outbox/worker"
	patienthandler "careflow/internal/patient/handler"
	patientservice "careflow/internal/patient/service"
	patientstore "careflow/internal/patient/store"
	"careflow/internal/platform/config"
	"careflow/internal/platform/database"
	"careflow/internal/platform/health"
	"careflow/internal/platform/httpserver"
	"careflow/internal/platform/kafka/producer"
	"careflow/internal/platform/logger"
	"careflow/internal/platform/metrics"
	"careflow/internal/platform/middleware"
	"careflow/migrations"
)

// kafkaProducer is what main needs from either the real or the noop producer.
type kafkaProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
	Close() error
	Healthy(ctx context.Context) bool
}

func main() {
	log := logger.New()

	cfg := config.FromEnv()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	// Storage. Without DATABASE_URL the service runs on in-memory stores,
	// which is only acceptable for local development.
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	var (
		users         authservice.UserStore
		seedStore     user.Store
		patients      patientservice.Store
		outboxStore   outboxBackend
		outboxCounter interface {
			CountPending(ctx context.Context) (int64, error)
		}
	)
	if pool != nil {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.Migrate(migrateCtx, pool.DB(), migrations.FS); err != nil {
			return err
		}
		pgUsers := user.NewPostgres(pool.DB())
		users, seedStore = pgUsers, pgUsers
		patients = patientstore.NewPostgres(pool.DB())
		pgOutbox := outboxpg.New(pool.DB())
		outboxStore, outboxCounter = pgOutbox, pgOutbox
		log.Info("using postgres storage")
	} else {
		memUsers := user.NewMemory()
		users, seedStore = memUsers, memUsers
		patients = patientstore.NewMemory()
		memOutbox := outboxmem.New()
		outboxStore, outboxCounter = memOutbox, memOutbox
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	if err := user.EnsureSeedUser(ctx, seedStore, cfg.SeedUserEmail, cfg.SeedUserPassword, log); err != nil {
		return err
	}

	// Messaging. Without brokers events are dropped with a log line; the
	// patient API itself keeps working.
	var prod kafkaProducer
	if cfg.KafkaBrokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.KafkaBrokers,
			Retries:         3,
			DeliveryTimeout: cfg.PublishTimeout,
		}, log)
		if err != nil {
			return err
		}
		prod = p
	} else {
		log.Warn("KAFKA_BROKERS not set, events will not be published")
		prod = producer.NewNoopProducer(log)
	}
	defer prod.Close()

	// Credential authority and auth gate.
	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenTTL)
	validator := jwttoken.NewValidatorAdapter(tokens)
	authSvc := authservice.New(users, tokens, log, m)
	authHandler := authhandler.New(authSvc, validator, log, m)

	// Patient lifecycle orchestration.
	billingClient := billing.NewClient(cfg.BillingURL, cfg.BillingTimeout)
	publisher := events.NewPublisher(prod, cfg.EventTopic, cfg.PublishTimeout, log)
	patientSvc := patientservice.New(patients, billingClient, publisher, outboxStore, log, m)
	patientHandler := patienthandler.New(patientSvc, validator, log)

	// Outbox retry worker drains events whose direct publish failed.
	worker := outboxworker.New(outboxStore, prod,
		outboxworker.WithTopic(cfg.EventTopic),
		outboxworker.WithPollInterval(cfg.OutboxPollInterval),
		outboxworker.WithBatchSize(cfg.OutboxBatchSize),
		outboxworker.WithLogger(log),
		outboxworker.WithMetrics(m),
	)
	worker.Start()

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", pool.Health)
	}
	healthHandler.RegisterCheck("kafka", func(ctx context.Context) error {
		if !prod.Healthy(ctx) {
			return errors.New("kafka unreachable")
		}
		return nil
	})
	healthHandler.RegisterCheck("outbox", func(ctx context.Context) error {
		if _, err := outboxCounter.CountPending(ctx); err != nil {
			return err
		}
		return nil
	})

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	authHandler.Register(r)
	patientHandler.Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := worker.Stop(shutdownCtx); err != nil {
			log.Error("outbox worker shutdown failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// outboxBackend unifies the memory and postgres outbox stores for wiring.
type outboxBackend interface {
	outboxworker.Store
	patientservice.OutboxStore
}
