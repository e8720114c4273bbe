package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/payrush/reconciler/internal/reconcile"
	"github.com/payrush/reconciler/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	engine *reconcile.Engine,
	invoiceRepo *repository.InvoiceRepo,
	paymentRepo *repository.PaymentRepo,
	webhookSecret string,
) http.Handler {
	h := &Handlers{
		engine:        engine,
		invoiceRepo:   invoiceRepo,
		paymentRepo:   paymentRepo,
		webhookSecret: webhookSecret,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		// Reconciliation triggers.
		r.Post("/payments/verify", h.VerifyPayment)
		r.Post("/webhooks/flutterwave", h.HandleWebhook)
		r.Get("/webhooks/flutterwave", h.WebhookHealth)

		// Read surface.
		r.Get("/invoices", h.ListInvoices)
		r.Get("/invoices/{id}", h.GetInvoice)
		r.Get("/payments", h.ListPayments)
		r.Get("/dashboard", h.GetDashboard)
	})

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
