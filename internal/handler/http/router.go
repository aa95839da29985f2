package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Agamista0/ava-support-backend/pkg/health"
	"github.com/Agamista0/ava-support-backend/pkg/middleware"

	"github.com/Agamista0/ava-support-backend/internal/config"
	"github.com/Agamista0/ava-support-backend/internal/domain"
	"github.com/Agamista0/ava-support-backend/internal/service"
)

const serviceName = "ava-support-backend"

const timeFormat = time.RFC3339

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	cfg *config.Config,
	authManager *service.AuthManager,
	credits *service.CreditService,
	support *service.SupportService,
	subs *service.SubscriptionService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Environment:    cfg.Environment,
	}))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to the auth manager.
	tokenValidator := func(ctx context.Context, token string) (*middleware.Claims, error) {
		claims, err := authManager.ValidateAccess(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:    claims.Subject,
			Role:      claims.Role,
			SessionID: claims.SessionID,
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		}, nil
	}

	// Auth endpoints
	authHandler := NewAuthHandler(authManager, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public endpoints are rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateBurst, logger))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	// Session management (auth required)
	sessionHandler := NewSessionHandler(authManager, logger)
	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/", sessionHandler.List)
		r.Delete("/{id}", sessionHandler.Revoke)
	})

	// Support requests and credits (auth required)
	supportHandler := NewSupportHandler(support, credits, logger)
	r.Route("/api/v1/support", func(r chi.Router) {
		r.Use(middleware.Auth(tokenValidator))

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Post("/requests", supportHandler.CreateRequest)
			r.Post("/credits/consume", supportHandler.Consume)
		})

		// Multipart upload, so no JSON content-type enforcement.
		r.Post("/transcriptions", supportHandler.Transcribe)

		r.Get("/credits", supportHandler.Balance)
		r.Get("/credits/usage", supportHandler.Usage)

		// Support staff only.
		r.With(middleware.RequireRole(string(domain.RoleSupport))).
			Get("/users/{id}/credits", supportHandler.UserBalance)
	})

	// Billing: plan catalog is public, subscription management requires auth.
	subscriptionHandler := NewSubscriptionHandler(subs, logger)
	r.Get("/api/v1/billing/plans", subscriptionHandler.Plans)
	r.Route("/api/v1/billing/subscription", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/", subscriptionHandler.Subscribe)
		r.Get("/", subscriptionHandler.Current)
		r.Delete("/", subscriptionHandler.Cancel)
	})

	// Payment webhook. Signed raw body, no JSON middleware.
	webhookHandler := NewWebhookHandler(subs, cfg.WebhookSecret, logger)
	r.Post("/webhook/payments", webhookHandler.HandlePayment)

	return r
}
