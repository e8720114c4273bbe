// Package webhook parses and authenticates inbound Flutterwave webhook
// deliveries before they reach the reconciliation engine.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeader is the header Flutterwave sets on every webhook delivery.
const SignatureHeader = "verif-hash"

// EventChargeCompleted is the only event this service acts on.
const EventChargeCompleted = "charge.completed"

// referencePrefix is the legacy PayRush transaction reference convention:
// PAYRUSH_<invoiceID>_<timestamp>.
const referencePrefix = "PAYRUSH"

// Envelope is the provider-defined event wrapper.
type Envelope struct {
	Event string `json:"event"`
	Data  Data   `json:"data"`
	Meta  Meta   `json:"meta"`
}

type Data struct {
	ID          int64       `json:"id"`
	TxRef       string      `json:"tx_ref"`
	FlwRef      string      `json:"flw_ref"`
	Status      string      `json:"status"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	PaymentType string      `json:"payment_type"`
	Customer    struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
}

// IDString renders the provider's numeric transaction id the way the verify
// endpoint expects it.
func (d Data) IDString() string {
	return strconv.FormatInt(d.ID, 10)
}

// Meta carries explicit correlation fields. New checkouts set invoice_id here
// so the reference convention no longer has to be parsed.
type Meta struct {
	InvoiceID string `json:"invoice_id"`
}

// ValidSignature checks the delivery's signature header against the shared
// webhook secret in constant time. Deliveries without a valid signature must
// be rejected before any parsing.
func ValidSignature(header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(secret)) == 1
}

// ParseEnvelope decodes a webhook body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("webhook envelope has no event field")
	}
	return &env, nil
}

// InvoiceID resolves the invoice this delivery concerns. The explicit
// meta.invoice_id field wins; older checkouts are covered by the
// PAYRUSH_<invoiceID>_<timestamp> reference convention.
func (e *Envelope) InvoiceID() (string, error) {
	if e.Meta.InvoiceID != "" {
		return e.Meta.InvoiceID, nil
	}
	return InvoiceIDFromReference(e.Data.TxRef)
}

// InvoiceIDFromReference recovers the invoice id from a legacy transaction
// reference of the form PAYRUSH_<invoiceID>_<timestamp>.
func InvoiceIDFromReference(txRef string) (string, error) {
	parts := strings.Split(txRef, "_")
	if len(parts) < 3 || parts[0] != referencePrefix || parts[1] == "" {
		return "", fmt.Errorf("transaction reference %q does not carry an invoice id", txRef)
	}
	// Invoice ids may themselves contain underscores; the timestamp is the
	// final segment.
	return strings.Join(parts[1:len(parts)-1], "_"), nil
}
