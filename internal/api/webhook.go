package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/metrics"
	"github.com/payrush/reconciler/internal/webhook"
)

// HandleWebhook receives Flutterwave's asynchronous charge notifications.
// The signature gate runs before anything else and fails closed. Actionable
// events go through the same reconciliation engine as the verify endpoint;
// expected conditions are acknowledged with 200 so the provider does not
// retry a delivery that can never succeed.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !webhook.ValidSignature(r.Header.Get(webhook.SignatureHeader), h.webhookSecret) {
		metrics.WebhookEventsTotal.WithLabelValues("bad_signature").Inc()
		writeError(w, http.StatusUnauthorized, domain.ErrSignatureInvalid.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	env, err := webhook.ParseEnvelope(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if env.Event != webhook.EventChargeCompleted || env.Data.Status != "successful" {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	invoiceID, err := env.InvoiceID()
	if err != nil {
		// Not a PayRush reference. Acknowledge so the provider stops retrying,
		// but keep a trace for manual reconciliation.
		log.Printf("[webhook] WARNING: cannot resolve invoice for tx_ref=%q: %v", env.Data.TxRef, err)
		metrics.WebhookEventsTotal.WithLabelValues("unresolvable").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	result, err := h.engine.Reconcile(r.Context(), env.Data.IDString(), invoiceID)
	if err != nil {
		_, outcome := classifyReconcileError(err)
		metrics.ReconciliationsTotal.WithLabelValues("webhook", outcome).Inc()
		metrics.WebhookEventsTotal.WithLabelValues(outcome).Inc()

		var already *domain.AlreadyProcessedError
		if errors.As(err, &already) {
			// Redelivery of an event we already applied.
			writeJSON(w, http.StatusOK, map[string]string{
				"status":     "already_processed",
				"payment_id": already.PaymentID,
			})
			return
		}

		if gatewayOrStorageFailure(err) {
			// Transient on our side; a 500 makes the provider redeliver later.
			log.Printf("[webhook] ERROR: reconcile tx_ref=%q invoice=%s: %v", env.Data.TxRef, invoiceID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		// Terminal conditions (mismatch, missing invoice, not payable): a retry
		// can never succeed, so acknowledge and leave it to manual review.
		log.Printf("[webhook] WARNING: rejected tx_ref=%q invoice=%s: %v", env.Data.TxRef, invoiceID, err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "reason": outcome})
		return
	}

	metrics.ReconciliationsTotal.WithLabelValues("webhook", "applied").Inc()
	metrics.WebhookEventsTotal.WithLabelValues("applied").Inc()
	log.Printf("[webhook] Applied payment %s for invoice %s (tx_ref=%s)",
		result.PaymentID, result.InvoiceID, result.Reference)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "processed",
		"payment_id": result.PaymentID,
	})
}

func gatewayOrStorageFailure(err error) bool {
	var rejected *domain.GatewayRejectedError
	if errors.As(err, &rejected) {
		return false
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, domain.ErrGatewayProtocol) {
		return true
	}
	status, _ := classifyReconcileError(err)
	return status >= 500
}

// WebhookHealth answers the provider's GET probe on the webhook path.
func (h *Handlers) WebhookHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": string(domain.ProviderFlutterwave),
	})
}
