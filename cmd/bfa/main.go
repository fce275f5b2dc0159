package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/config"
	"github.com/boddenberg/family-rewards-bfa-go/internal/handler"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/boltstore"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/cache"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/supabase"
	"github.com/boddenberg/family-rewards-bfa-go/internal/port"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("event_cache_ttl", cfg.EventCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("behavior_window_weeks", cfg.BehaviorWindowWeeks),
		zap.Bool("webhook_secret_set", cfg.WebhookAuthToken != ""),
	)
	if cfg.WebhookAuthToken == "" {
		logger.Warn("REVENUECAT_WEBHOOK_AUTH_TOKEN not set, webhook calls will be answered 500")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "family-rewards-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	seenEvents := cache.New[bool](cfg.EventCacheTTL)
	defer seenEvents.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	// --- Stores ---
	var (
		subs          port.SubscriptionStore
		ledger        port.EventLedger
		rewardsStore  port.RewardsStore
		exportStore   port.ExportStore
		healthChecks  = map[string]port.HealthChecker{}
		supabaseReady = cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != ""
	)

	if supabaseReady {
		logger.Info("using Supabase PostgREST", zap.String("supabase_url", cfg.SupabaseURL))
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			logger,
		)
		subs, ledger = client, client
		rewardsStore, exportStore = client, client
		healthChecks["supabase"] = client
	} else {
		logger.Warn("Supabase not configured, earnings and export routes unavailable")
	}

	switch cfg.StoreBackend {
	case config.BackendBolt:
		bolt, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			logger.Fatal("failed to open bolt store", zap.String("path", cfg.BoltPath), zap.Error(err))
		}
		defer bolt.Close()
		logger.Info("webhook state stored in bolt", zap.String("path", cfg.BoltPath))
		subs, ledger = bolt, bolt
		healthChecks["bolt"] = bolt
	case config.BackendSupabase:
		if !supabaseReady {
			logger.Warn("webhook: Supabase backend selected but not configured, webhook route unavailable")
		}
	default:
		logger.Fatal("unknown STORE_BACKEND", zap.String("store_backend", cfg.StoreBackend))
	}

	// --- Services ---
	var webhookSvc handler.WebhookProcessor
	if subs != nil && ledger != nil {
		webhookSvc = service.NewWebhookService(subs, ledger, seenEvents, metrics, logger)
	}

	var exportSvc *service.ExportService
	if exportStore != nil {
		exportSvc = service.NewExportService(exportStore, cfg.MaxConcurrency, metrics, logger)
	}

	rewardsSvc := service.NewRewardsService(rewardsStore, cfg.BehaviorWindowWeeks, metrics, logger)

	var verifier handler.TokenVerifier
	if cfg.SupabaseJWTSecret != "" {
		verifier = service.NewTokenVerifier(cfg.SupabaseJWTSecret)
	} else {
		logger.Warn("SUPABASE_JWT_SECRET not set, authenticated routes unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Webhook:       webhookSvc,
		WebhookSecret: cfg.WebhookAuthToken,
		Rewards:       rewardsSvc,
		Export:        exportSvc,
		Verifier:      verifier,
		Health:        healthChecks,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
