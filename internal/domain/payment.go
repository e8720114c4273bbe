package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

// PaymentSuccessful is the single canonical status for reconciled payments.
// Both the verification and webhook paths map into it.
const PaymentSuccessful PaymentStatus = "successful"

type Provider string

const ProviderFlutterwave Provider = "flutterwave"

// Payment is durable evidence that one provider transaction was reconciled
// against an invoice. Reference carries the provider's transaction reference
// and is the idempotency key: at most one payment exists per reference.
type Payment struct {
	ID            string          `json:"id"`
	InvoiceID     string          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        PaymentStatus   `json:"status"`
	Reference     string          `json:"reference"`
	Provider      Provider        `json:"provider"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
