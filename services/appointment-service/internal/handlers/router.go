package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/homelube/libs/auth"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
)

type RouterDeps struct {
	Service *lifecycle.Service
	Logger  *slog.Logger

	// Operator routes need a bearer token with the admin role.
	Verifier auth.Verifier
	// WebhookSecret enables HMAC signatures on provider webhooks when set.
	WebhookSecret string
	// BookingLimiter throttles public booking requests and WebhookLimiter the
	// provider callbacks. Each draws from its own budget; both are optional.
	BookingLimiter func(http.Handler) http.Handler
	WebhookLimiter func(http.Handler) http.Handler
	MaxBodyBytes   int64
}

// NewRouter wires the public booking flow, provider webhooks and operator
// tools under /api.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	booking := orPassThrough(deps.BookingLimiter)
	webhook := orPassThrough(deps.WebhookLimiter)
	signed := auth.RequireSignature(deps.WebhookSecret, deps.MaxBodyBytes)
	operator := []func(http.Handler) http.Handler{
		auth.RequireBearer(deps.Verifier),
		auth.RequireRole("admin"),
	}

	appts := NewAppointmentHandler(deps.Service, logger)
	texts := NewSmsHandler(deps.Service, logger)

	r := chi.NewRouter()
	r.Route("/api/oil-changes", func(r chi.Router) {
		r.With(booking).Post("/", appts.Create)
		r.With(webhook, signed).Post("/calendar-response/{trackingID}", appts.CalendarResponse)
		r.Get("/confirm/{trackingID}", appts.Confirm)
		r.Get("/status/{trackingID}", appts.Status)

		r.Group(func(r chi.Router) {
			r.Use(operator...)
			r.Get("/verify-email-config", appts.VerifyEmailConfig)
			r.Post("/{trackingID}/send-confirmation", appts.SendConfirmation)
		})
	})
	r.Route("/api/sms", func(r chi.Router) {
		r.With(webhook, signed).Post("/webhook", texts.Webhook)
		r.With(operator...).Post("/test", texts.Test)
	})
	return r
}

func orPassThrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
