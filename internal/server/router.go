// Package server builds the HTTP router for the admin API and the WhatsApp
// webhook.
package server

import (
	"net/http"

	"github.com/chamahub/backend/internal/app"
	"github.com/chamahub/backend/internal/handler"
	appMiddleware "github.com/chamahub/backend/internal/middleware"
	"github.com/chamahub/backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router is the HTTP entry point. Close stops the rate limiter janitors.
type Router struct {
	http.Handler
	limiters []*appMiddleware.RateLimiter
}

// Close releases background resources held by the router.
func (rt *Router) Close() {
	for _, l := range rt.limiters {
		l.Stop()
	}
}

// New builds the router over the application components.
func New(a *app.App) *Router {
	cfg := a.Config

	signingToken := ""
	if cfg.Twilio.ValidateSignature {
		signingToken = cfg.Twilio.AuthToken
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(a.Auth)
	healthHandler := handler.NewHealthHandler(a.Ledger, a.HealthDeps())
	plansHandler := handler.NewPlansHandler()
	webhookHandler := handler.NewWebhookHandler(a.Bot, signingToken, cfg.Twilio.PublicBaseURL)
	memberHandler := handler.NewMemberHandler(a.Ledger)
	paymentHandler := handler.NewPaymentHandler(a.Ledger)
	subscriptionHandler := handler.NewSubscriptionHandler(a.Ledger)
	reportHandler := handler.NewReportHandler(a.Reports)
	jobHandler := handler.NewJobHandler(a.Scheduler)
	messageHandler := handler.NewMessageHandler(a.Sweeps)
	activityHandler := ws.NewActivityHandler(a.Activity, a.Auth)

	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.RequestID)
	r.Use(appMiddleware.Logger)
	r.Use(a.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	loginRL := appMiddleware.StrictRateLimiter()
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	r.Get("/api/plans", plansHandler.List)
	r.Get("/api/plans/{id}", plansHandler.Get)
	r.Post("/webhooks/whatsapp", webhookHandler.HandleWhatsApp)

	r.Group(func(r chi.Router) {
		r.Use(loginRL.Middleware())
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(a.Auth))

		r.Get("/api/auth/me", authHandler.Me)

		r.Get("/api/members", memberHandler.List)
		r.Post("/api/members", memberHandler.Create)
		r.Get("/api/members/{phone}/verify", memberHandler.Verify)
		r.Get("/api/members/{phone}", memberHandler.Get)
		r.Patch("/api/members/{phone}", memberHandler.Update)
		r.Delete("/api/members/{phone}", memberHandler.Delete)

		r.Get("/api/payments/summary", paymentHandler.Summary)
		r.Get("/api/payments", paymentHandler.List)
		r.Post("/api/payments", paymentHandler.Create)
		r.Get("/api/dashboard", paymentHandler.Dashboard)

		r.Get("/api/subscriptions", subscriptionHandler.List)
		r.Post("/api/subscriptions", subscriptionHandler.Create)
		r.Get("/api/subscriptions/{phone}", subscriptionHandler.Get)

		r.Post("/api/reports", reportHandler.Generate)
		r.Get("/api/reports/{filename}", reportHandler.Download)

		r.Get("/api/jobs", jobHandler.List)
		r.Post("/api/jobs/{name}/run", jobHandler.Run)

		r.Post("/api/messages/broadcast", messageHandler.Broadcast)
	})

	// Activity feed (auth via query param)
	r.HandleFunc("/api/activity", activityHandler.Handle)

	return &Router{Handler: r, limiters: []*appMiddleware.RateLimiter{globalRL, loginRL}}
}
