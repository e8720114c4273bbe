package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/metrics"
	"github.com/payrush/reconciler/internal/reconcile"
	"github.com/payrush/reconciler/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	engine        *reconcile.Engine
	invoiceRepo   *repository.InvoiceRepo
	paymentRepo   *repository.PaymentRepo
	webhookSecret string
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- VerifyPayment ---

type verifyRequest struct {
	// transaction_id arrives as a number from the checkout callback and as a
	// string from retries, so accept both.
	TransactionID json.Number `json:"transaction_id"`
	InvoiceID     string      `json:"invoice_id"`
}

// VerifyPayment is the synchronous reconciliation trigger called from the
// paying customer's browser after checkout.
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Reconcile(r.Context(), req.TransactionID.String(), req.InvoiceID)
	if err != nil {
		status, outcome := classifyReconcileError(err)
		metrics.ReconciliationsTotal.WithLabelValues("verify", outcome).Inc()

		if status >= 500 {
			log.Printf("[api] verify failed: %v", err)
		}

		var already *domain.AlreadyProcessedError
		if errors.As(err, &already) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":      "payment already processed",
				"payment_id": already.PaymentID,
				"reference":  already.Reference,
			})
			return
		}

		writeError(w, status, err.Error())
		return
	}

	metrics.ReconciliationsTotal.WithLabelValues("verify", "applied").Inc()
	writeJSON(w, http.StatusOK, result)
}

// classifyReconcileError maps engine errors onto HTTP status codes and a
// metric outcome label.
func classifyReconcileError(err error) (int, string) {
	var (
		notSuccessful *domain.NotSuccessfulError
		amount        *domain.AmountMismatchError
		curr          *domain.CurrencyMismatchError
		rejected      *domain.GatewayRejectedError
		already       *domain.AlreadyProcessedError
		notPayable    *domain.InvoiceNotPayableError
	)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &notSuccessful):
		return http.StatusBadRequest, "not_successful"
	case errors.As(err, &amount):
		return http.StatusBadRequest, "amount_mismatch"
	case errors.As(err, &curr):
		return http.StatusBadRequest, "currency_mismatch"
	case errors.As(err, &rejected):
		return http.StatusBadRequest, "gateway_rejected"
	case errors.Is(err, domain.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found"
	case errors.As(err, &already):
		return http.StatusConflict, "already_processed"
	case errors.As(err, &notPayable):
		return http.StatusConflict, "invoice_not_payable"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusInternalServerError, "gateway_unavailable"
	case errors.Is(err, domain.ErrGatewayProtocol):
		return http.StatusInternalServerError, "gateway_protocol"
	default:
		return http.StatusInternalServerError, "persistence_failed"
	}
}

// --- GetInvoice ---

func (h *Handlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	inv, err := h.invoiceRepo.GetByID(id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payments, err := h.paymentRepo.GetByInvoiceID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoice":  inv,
		"payments": payments,
	})
}

// --- ListInvoices ---

func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.InvoiceFilter{
		Status:   q.Get("status"),
		Currency: q.Get("currency"),
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	invoices, total, err := h.invoiceRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoices": invoices,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// --- ListPayments ---

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PaymentFilter{
		InvoiceID: q.Get("invoice_id"),
		Status:    q.Get("status"),
		Currency:  q.Get("currency"),
		Provider:  q.Get("provider"),
		From:      parseTime(q.Get("from")),
		To:        parseTime(q.Get("to")),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	payments, total, err := h.paymentRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payments": payments,
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.invoiceRepo.GetDashboardStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	paymentCount, err := h.paymentRepo.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	volumes, err := h.paymentRepo.GetVolumeByCurrency()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"invoices":           stats,
		"payments":           map[string]int{"total": paymentCount},
		"volume_by_currency": volumes,
	})
}

// --- Healthz ---

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.invoiceRepo.Count(); err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("storage unavailable: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
