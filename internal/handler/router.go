package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/family-rewards-bfa-go/internal/domain"
	"github.com/boddenberg/family-rewards-bfa-go/internal/infra/observability"
	"github.com/boddenberg/family-rewards-bfa-go/internal/port"
	"github.com/boddenberg/family-rewards-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles what the router serves. Nil Rewards or Export leave their
// routes answering 503; a nil Webhook still checks method and secret, then
// answers 500.
type Services struct {
	Webhook       WebhookProcessor
	WebhookSecret string
	Rewards       *service.RewardsService
	Export        *service.ExportService
	Verifier      TokenVerifier
	// Health is probed by /healthz, keyed by dependency name.
	Health map[string]port.HealthChecker
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Billing webhook (shared secret, any method reaches the handler)
		// POST /v1/webhooks/revenuecat
		// =============================================
		r.HandleFunc("/webhooks/revenuecat", webhookHandler(svc.Webhook, svc.WebhookSecret, logger))

		// =============================================
		// Caller-authenticated API
		// =============================================
		r.Group(func(r chi.Router) {
			if svc.Verifier == nil {
				r.Use(func(http.Handler) http.Handler { return unavailableHandler("auth", logger) })
			} else {
				r.Use(JWTAuthMiddleware(svc.Verifier, logger))
			}

			if svc.Rewards != nil {
				r.Post("/rewards/allocation", allocationHandler(svc.Rewards, logger))
				r.Post("/rewards/allocation/legacy", legacyAllocationHandler(svc.Rewards, logger))
				r.Post("/rewards/grades/normalize", normalizeGradesHandler(svc.Rewards, logger))
				r.Post("/rewards/behavior/bonus", behaviorBonusHandler(svc.Rewards, logger))
				r.Get("/students/{studentId}/earnings", earningsHandler(svc.Rewards, logger))
			} else {
				unavailable := unavailableHandler("rewards", logger)
				r.Post("/rewards/allocation", unavailable)
				r.Post("/rewards/allocation/legacy", unavailable)
				r.Post("/rewards/grades/normalize", unavailable)
				r.Post("/rewards/behavior/bonus", unavailable)
				r.Get("/students/{studentId}/earnings", unavailable)
			}

			if svc.Export != nil {
				r.Get("/users/{userId}/export", exportHandler(svc.Export, logger))
			} else {
				r.Get("/users/{userId}/export", unavailableHandler("export", logger))
			}
		})
	})

	return r
}

func unavailableHandler(feature string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handleServiceError(w, &domain.ErrUnavailable{Feature: feature}, logger)
	}
}

func healthzHandler(checks map[string]port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		for name, checker := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			start := time.Now()
			err := checker.Ping(ctx)
			cancel()

			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: dependency check failed", zap.String("dependency", name), zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: name, Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
