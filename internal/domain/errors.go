package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the reconciliation workflow. Handlers map these onto
// HTTP status codes in one place.
var (
	ErrInvalidRequest     = errors.New("transaction_id and invoice_id are required")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayProtocol    = errors.New("payment gateway returned a malformed response")
	ErrSignatureInvalid   = errors.New("webhook signature invalid")
)

// GatewayRejectedError is returned when the provider answers with a
// structured error body (non-2xx with a message).
type GatewayRejectedError struct {
	Message string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("gateway rejected verification: %s", e.Message)
}

// NotSuccessfulError carries the remote transaction status observed when it
// was anything other than the provider's "successful" sentinel.
type NotSuccessfulError struct {
	Status string
}

func (e *NotSuccessfulError) Error() string {
	return fmt.Sprintf("payment was not successful: transaction status %q", e.Status)
}

// AmountMismatchError carries both amounts so callers can render an
// actionable message. The invoice is never updated on mismatch.
type AmountMismatchError struct {
	InvoiceAmount     decimal.Decimal
	TransactionAmount decimal.Decimal
	Currency          string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: invoice expects %s %s, transaction paid %s",
		e.InvoiceAmount, e.Currency, e.TransactionAmount)
}

type CurrencyMismatchError struct {
	InvoiceCurrency     string
	TransactionCurrency string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: invoice is in %s, transaction in %s",
		e.InvoiceCurrency, e.TransactionCurrency)
}

// AlreadyProcessedError reports the id of the payment that already holds the
// reference. It is an expected condition, not a failure.
type AlreadyProcessedError struct {
	PaymentID string
	Reference string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("payment already processed: reference %s recorded as payment %s",
		e.Reference, e.PaymentID)
}

// InvoiceNotPayableError is returned when the invoice's status does not admit
// a transition to paid. Re-paying an already-paid invoice reports a conflict
// rather than silently succeeding.
type InvoiceNotPayableError struct {
	InvoiceID string
	Status    InvoiceStatus
}

func (e *InvoiceNotPayableError) Error() string {
	return fmt.Sprintf("invoice %s cannot be marked paid from status %q", e.InvoiceID, e.Status)
}
