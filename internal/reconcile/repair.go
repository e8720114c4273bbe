package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/metrics"
)

// RepairStore exposes the ledger query the sweep needs.
type RepairStore interface {
	UnpaidInvoiceIDsWithPayments() ([]string, error)
}

// Sweeper completes partially-applied reconciliations: invoices holding a
// successful payment that never reached the paid status. These rows cannot be
// produced by the atomic apply path, but legacy data and operator edits can
// still leave them behind, and they represent money received without the
// invoice reflecting it.
type Sweeper struct {
	Payments RepairStore
	Invoices InvoiceStore
	Interval time.Duration
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce finds and repairs divergent invoices, returning how many were
// repaired.
func (s *Sweeper) SweepOnce() int {
	ids, err := s.Payments.UnpaidInvoiceIDsWithPayments()
	if err != nil {
		log.Printf("[repair] ERROR: query divergent invoices: %v", err)
		return 0
	}

	repaired := 0
	for _, id := range ids {
		// High severity: a payment was recorded but the invoice never advanced.
		log.Printf("[repair] ALERT: invoice %s has a successful payment but is not paid; repairing", id)

		if err := s.Invoices.UpdateStatus(id, domain.InvoicePaid); err != nil {
			log.Printf("[repair] ERROR: mark invoice %s paid: %v", id, err)
			continue
		}
		metrics.RepairedInvoicesTotal.Inc()
		repaired++
	}

	if repaired > 0 {
		log.Printf("[repair] Repaired %d invoice(s)", repaired)
	}
	return repaired
}
