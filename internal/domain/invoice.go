package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// CanMarkPaid reports whether an invoice in this status may transition to
// paid. Paid and cancelled are terminal for the reconciliation workflow; an
// overdue invoice can still be settled.
func (s InvoiceStatus) CanMarkPaid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceOverdue:
		return true
	default:
		return false
	}
}

// Invoice is a billable record addressed to a customer. Amount and currency
// are immutable once created; only status changes after creation.
type Invoice struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        InvoiceStatus   `json:"status"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  string          `json:"customer_name"`
	CreatedAt     time.Time       `json:"created_at"`
}
