// Package reconcile decides whether a claimed payment is valid and, if so,
// applies it exactly once. Both the verification endpoint and the webhook
// receiver are thin adapters over the one engine here.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrush/reconciler/internal/currency"
	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/gateway"
	"github.com/payrush/reconciler/internal/repository"
)

// GatewayVerifier retrieves the authoritative status of a transaction from
// the payment provider.
type GatewayVerifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
}

// InvoiceStore is the engine's read/write view of invoices.
type InvoiceStore interface {
	GetByID(id string) (*domain.Invoice, error)
	UpdateStatus(id string, status domain.InvoiceStatus) error
}

// PaymentStore is the engine's view of the payment ledger. ApplyPayment must
// record the payment and advance its invoice to paid atomically, and must
// return repository.ErrDuplicateReference when the reference is already held.
type PaymentStore interface {
	GetByReference(reference string) (*domain.Payment, error)
	ApplyPayment(p *domain.Payment) error
}

// Result confirms a completed reconciliation.
type Result struct {
	PaymentID     string               `json:"payment_id"`
	TransactionID int64                `json:"transaction_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Currency      string               `json:"currency"`
	Status        domain.PaymentStatus `json:"status"`
	Reference     string               `json:"reference"`
	InvoiceID     string               `json:"invoice_id"`
	InvoiceStatus domain.InvoiceStatus `json:"invoice_status"`
}

// Engine validates claimed payments against the gateway's record and applies
// each at most once.
type Engine struct {
	gateway  GatewayVerifier
	invoices InvoiceStore
	payments PaymentStore
}

func NewEngine(gw GatewayVerifier, invoices InvoiceStore, payments PaymentStore) *Engine {
	return &Engine{
		gateway:  gw,
		invoices: invoices,
		payments: payments,
	}
}

// Reconcile runs the verification algorithm in strict order, short-circuiting
// on the first failure. On success exactly one payment record exists for the
// transaction's reference and the invoice is paid, no matter how many times
// or how concurrently it is called.
func (e *Engine) Reconcile(ctx context.Context, transactionID, invoiceID string) (*Result, error) {
	if transactionID == "" || invoiceID == "" {
		return nil, domain.ErrInvalidRequest
	}

	txn, err := e.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("verify transaction %s: %w", transactionID, err)
	}

	if txn.Status != gateway.StatusSuccessful {
		return nil, &domain.NotSuccessfulError{Status: txn.Status}
	}

	inv, err := e.invoices.GetByID(invoiceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}

	if txn.Currency != inv.Currency {
		return nil, &domain.CurrencyMismatchError{
			InvoiceCurrency:     inv.Currency,
			TransactionCurrency: txn.Currency,
		}
	}

	// Amounts must match exactly. Equal compares by value, so 100 and
	// 100.00 are the same amount while a sub-minor-unit delta like 99.999
	// against 100.00 is not and is rejected.
	if !inv.Amount.Equal(txn.Amount) {
		return nil, &domain.AmountMismatchError{
			InvoiceAmount:     inv.Amount,
			TransactionAmount: txn.Amount,
			Currency:          inv.Currency,
		}
	}

	// Store the amount in the currency's canonical minor-unit form.
	amount := currency.Normalize(inv.Amount, inv.Currency)

	if existing, err := e.payments.GetByReference(txn.TxRef); err == nil {
		return nil, &domain.AlreadyProcessedError{PaymentID: existing.ID, Reference: txn.TxRef}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check reference %s: %w", txn.TxRef, err)
	}

	if !inv.Status.CanMarkPaid() {
		return nil, &domain.InvoiceNotPayableError{InvoiceID: inv.ID, Status: inv.Status}
	}

	payment := &domain.Payment{
		ID:            uuid.NewString(),
		InvoiceID:     inv.ID,
		Amount:        amount,
		Currency:      inv.Currency,
		Status:        domain.PaymentSuccessful,
		Reference:     txn.TxRef,
		Provider:      domain.ProviderFlutterwave,
		PaymentMethod: txn.PaymentType,
		CustomerEmail: txn.Customer.Email,
		CustomerName:  txn.Customer.Name,
		CreatedAt:     time.Now().UTC(),
	}

	if err := e.payments.ApplyPayment(payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			// A concurrent reconciliation won the insert. Report its payment.
			if existing, lookupErr := e.payments.GetByReference(txn.TxRef); lookupErr == nil {
				return nil, &domain.AlreadyProcessedError{PaymentID: existing.ID, Reference: txn.TxRef}
			}
			return nil, &domain.AlreadyProcessedError{Reference: txn.TxRef}
		}
		return nil, fmt.Errorf("apply payment for invoice %s: %w", inv.ID, err)
	}

	log.Printf("[reconcile] Applied payment %s: invoice=%s reference=%s amount=%s %s",
		payment.ID, inv.ID, txn.TxRef, amount, inv.Currency)

	return &Result{
		PaymentID:     payment.ID,
		TransactionID: txn.ID,
		Amount:        amount,
		Currency:      inv.Currency,
		Status:        domain.PaymentSuccessful,
		Reference:     txn.TxRef,
		InvoiceID:     inv.ID,
		InvoiceStatus: domain.InvoicePaid,
	}, nil
}
