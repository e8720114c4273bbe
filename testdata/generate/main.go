// Command generate writes a deterministic invoices.json seed file into
// testdata/. The server loads it on first start when the database is empty.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/payrush/reconciler/internal/domain"
)

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	startDate := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	type group struct {
		currency string
		count    int
		min, max int // whole currency units
	}

	groups := []group{
		{"USD", 20, 50, 2500},
		{"NGN", 25, 20000, 900000},
		{"KES", 15, 5000, 120000},
		{"GBP", 10, 40, 1800},
	}

	statuses := []domain.InvoiceStatus{
		domain.InvoiceDraft, domain.InvoiceSent, domain.InvoiceSent,
		domain.InvoiceSent, domain.InvoiceOverdue,
	}

	names := []string{
		"Adaeze Okafor", "Brian Mwangi", "Chiara Rossi", "Daniel Mensah",
		"Esther Wanjiru", "Femi Adeyemi", "Grace Njeri", "Hassan Diallo",
	}

	var invoices []domain.Invoice
	for _, g := range groups {
		for i := 0; i < g.count; i++ {
			name := names[rng.Intn(len(names))]
			units := g.min + rng.Intn(g.max-g.min)
			cents := rng.Intn(100)
			amount := decimal.NewFromInt(int64(units)).
				Add(decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)))

			createdAt := startDate.AddDate(0, 0, rng.Intn(14)).
				Add(time.Duration(rng.Intn(24)) * time.Hour)

			invoices = append(invoices, domain.Invoice{
				ID:            uuid.NewString(),
				Amount:        amount.Round(2),
				Currency:      g.currency,
				Status:        statuses[rng.Intn(len(statuses))],
				CustomerEmail: fmt.Sprintf("customer%03d@example.com", len(invoices)+1),
				CustomerName:  name,
				CreatedAt:     createdAt,
			})
		}
	}

	out := filepath.Join(baseDir, "invoices.json")
	data, err := json.MarshalIndent(invoices, "", "  ")
	if err != nil {
		log.Fatalf("marshal invoices: %v", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", out, err)
	}
	log.Printf("Wrote %d invoices to %s", len(invoices), out)
}

func findTestdataDir() string {
	candidates := []string{"testdata", filepath.Join("..", "..", "testdata"), "."}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "."
}
