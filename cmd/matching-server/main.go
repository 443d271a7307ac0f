// cmd/matching-server/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scholarswipe/internal/common/aws"
	"scholarswipe/internal/common/config"
	"scholarswipe/internal/common/database"
	"scholarswipe/internal/common/logger"
	"scholarswipe/internal/common/observability"
	"scholarswipe/internal/loader"
	"scholarswipe/internal/matching"
	"scholarswipe/internal/notify"
	"scholarswipe/internal/search"
	"scholarswipe/internal/server"
	"scholarswipe/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// healthChecker pings each backing store for /healthz.
type healthChecker struct {
	pg    *database.PostgresClient
	redis *database.RedisClient
	es    *database.ElasticsearchClient
}

func (h *healthChecker) Check(ctx context.Context) map[string]string {
	checks := map[string]string{
		"postgres":      "ok",
		"redis":         "ok",
		"elasticsearch": "ok",
	}
	if err := h.pg.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
	}
	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
	}
	if err := h.es.Ping(); err != nil {
		checks["elasticsearch"] = err.Error()
	}
	return checks
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting matching server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init AWS clients (only if a channel is enabled) ---
	var sesClient notify.SESService
	var snsClient notify.SNSService
	if cfg.Notifications.AWS.SES.Enabled {
		c, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		sesClient = c
		zapLog.Info("SES client initialized")
	}
	if cfg.Notifications.AWS.SNS.Enabled {
		c, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		snsClient = c
		zapLog.Info("SNS client initialized")
	}

	// --- Select scoring strategy ---
	var estimator matching.Estimator
	var reasoner matching.ReasonGenerator
	switch cfg.Matching.Strategy {
	case matching.StrategyLLM:
		llmClient := matching.NewLLMClient(cfg.Matching.LLM, log)
		estimator = matching.NewLLMEstimator(llmClient, log)
		reasoner = matching.NewLLMReasoner(llmClient, log)
	default:
		cascade := matching.NewCascadeEstimator(log)
		estimator = cascade
		reasoner = cascade
	}
	zapLog.Info("Scoring strategy selected", zap.String("strategy", estimator.Name()))

	// --- Wire domain services ---
	catalog := loader.New(pg.DB, rdb.Client,
		time.Duration(cfg.Matching.ProfileCacheTTL)*time.Second, log)

	sessionStore := session.NewStore(rdb.Client,
		time.Duration(cfg.Session.TTL)*time.Second, log)
	sessionService := session.NewService(sessionStore)

	orchestrator := matching.NewOrchestrator(estimator, reasoner,
		time.Duration(cfg.Matching.ItemTimeout)*time.Millisecond, log).
		WithObservability(obs)
	matchService := matching.NewService(catalog, orchestrator, sessionStore, log)

	searchService := search.NewService(esClient.Client, cfg.Database.Elasticsearch, cfg.Search, log)
	feedbackService := notify.NewService(cfg.Notifications, pg.DB, sesClient, snsClient, log)

	srv := server.New(cfg, server.Deps{
		Matches:  matchService,
		Sessions: sessionService,
		Search:   searchService,
		Feedback: feedbackService,
		Health:   &healthChecker{pg: pg, redis: rdb, es: esClient},
	}, log)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")

	if err := srv.Shutdown(); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Matching server stopped gracefully")
}
