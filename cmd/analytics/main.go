// Command analytics consumes patient events and serves aggregate counts.
// Processing is idempotent: redelivered events never inflate the stats.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"careflow/internal/analytics"
	"careflow/internal/analytics/dedup"
	"careflow/internal/platform/config"
	"careflow/internal/platform/health"
	"careflow/internal/platform/httpserver"
	"careflow/internal/platform/kafka/consumer"
	"careflow/internal/platform/logger"
	"careflow/internal/platform/metrics"
	"careflow/internal/platform/middleware"
	"careflow/internal/platform/redis"
	"careflow/pkg/httputil"
)

func main() {
	log := logger.New()

	cfg := config.FromEnv()
	if err := cfg.ValidateAnalytics(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("analytics exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()
	stats := analytics.NewStats()

	// Dedup store. Redis keeps idempotence across restarts and instances;
	// the in-process fallback is for local development only.
	var tracker dedup.Tracker
	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		tracker = dedup.NewRedis(redisClient, dedup.DefaultTTL)
		defer redisClient.Close()
		log.Info("using redis deduplication")
	} else {
		tracker = dedup.NewMemory()
		log.Warn("REDIS_URL not set, deduplication is in-process only")
	}

	if err := ensureTopic(ctx, cfg.KafkaBrokers, cfg.EventTopic); err != nil {
		return err
	}

	handler := analytics.NewHandler(tracker, stats, log, m)
	cons, err := consumer.New(consumer.Config{
		Brokers: cfg.KafkaBrokers,
		GroupID: cfg.KafkaGroupID,
		Topics:  []string{cfg.EventTopic},
	}, handler, log)
	if err != nil {
		return err
	}
	cons.Start()
	log.Info("consuming", "topic", cfg.EventTopic, "group", cfg.KafkaGroupID)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("kafka", func(ctx context.Context) error {
		if !cons.Healthy(ctx) {
			return errors.New("kafka unreachable")
		}
		return nil
	})
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", redisClient.Health)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, stats.Snapshot())
	})

	srv := httpserver.New(cfg.AnalyticsAddr, r)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("stats endpoint listening", "addr", cfg.AnalyticsAddr)
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

		if err := cons.Stop(shutdownCtx); err != nil {
			log.Error("consumer shutdown failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ensureTopic creates the events topic when it does not exist yet so a fresh
// environment comes up without manual broker setup.
func ensureTopic(ctx context.Context, brokers, topic string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(strings.Split(brokers, ",")...))
	if err != nil {
		return err
	}
	defer client.Close()

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 3, 1, nil, topic)
	if err != nil {
		return err
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return res.Err
		}
	}
	return nil
}
