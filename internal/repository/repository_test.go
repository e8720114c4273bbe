package repository

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrush/reconciler/internal/domain"
)

func setupTestDB(t *testing.T) (*InvoiceRepo, *PaymentRepo) {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInvoiceRepo(db), NewPaymentRepo(db)
}

func testInvoice(status domain.InvoiceStatus) domain.Invoice {
	return domain.Invoice{
		ID:            uuid.NewString(),
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "USD",
		Status:        status,
		CustomerEmail: "jane@example.com",
		CustomerName:  "Jane Doe",
		CreatedAt:     time.Now().UTC(),
	}
}

func testPayment(invoiceID, reference string) *domain.Payment {
	return &domain.Payment{
		ID:            uuid.NewString(),
		InvoiceID:     invoiceID,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      "USD",
		Status:        domain.PaymentSuccessful,
		Reference:     reference,
		Provider:      domain.ProviderFlutterwave,
		PaymentMethod: "card",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInvoiceRepo_GetByID(t *testing.T) {
	invoices, _ := setupTestDB(t)

	inv := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&inv))

	got, err := invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
	assert.True(t, got.Amount.Equal(inv.Amount), "amount %s != %s", got.Amount, inv.Amount)
	assert.Equal(t, domain.InvoiceSent, got.Status)
}

func TestInvoiceRepo_GetByID_NotFound(t *testing.T) {
	invoices, _ := setupTestDB(t)

	_, err := invoices.GetByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoiceRepo_BulkInsertIsIdempotent(t *testing.T) {
	invoices, _ := setupTestDB(t)

	batch := []domain.Invoice{testInvoice(domain.InvoiceSent), testInvoice(domain.InvoiceDraft)}

	n, err := invoices.BulkInsert(batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = invoices.BulkInsert(batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "re-inserting the same batch should insert nothing")
}

func TestPaymentRepo_ApplyPayment(t *testing.T) {
	invoices, payments := setupTestDB(t)

	inv := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&inv))

	require.NoError(t, payments.ApplyPayment(testPayment(inv.ID, "PAYRUSH_a_1")))

	got, err := invoices.GetByID(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, got.Status)

	p, err := payments.GetByReference("PAYRUSH_a_1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, p.InvoiceID)
}

func TestPaymentRepo_ApplyPayment_DuplicateReference(t *testing.T) {
	invoices, payments := setupTestDB(t)

	first := testInvoice(domain.InvoiceSent)
	second := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&first))
	require.NoError(t, invoices.Insert(&second))

	require.NoError(t, payments.ApplyPayment(testPayment(first.ID, "REF-1")))

	err := payments.ApplyPayment(testPayment(second.ID, "REF-1"))
	assert.ErrorIs(t, err, ErrDuplicateReference)

	// The second invoice must be untouched.
	got, err := invoices.GetByID(second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSent, got.Status)
}

func TestPaymentRepo_ApplyPayment_RollsBackWhenInvoiceNotPayable(t *testing.T) {
	invoices, payments := setupTestDB(t)

	inv := testInvoice(domain.InvoiceCancelled)
	require.NoError(t, invoices.Insert(&inv))

	err := payments.ApplyPayment(testPayment(inv.ID, "REF-2"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateReference)

	// The payment insert must have been rolled back with the failed update.
	_, err = payments.GetByReference("REF-2")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := payments.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPaymentRepo_GetByReference_NotFound(t *testing.T) {
	_, payments := setupTestDB(t)

	_, err := payments.GetByReference("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRepo_UnpaidInvoiceIDsWithPayments(t *testing.T) {
	invoices, payments := setupTestDB(t)

	// A cleanly applied reconciliation: not divergent.
	clean := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&clean))
	require.NoError(t, payments.ApplyPayment(testPayment(clean.ID, "REF-CLEAN")))

	// A divergent row: payment recorded but invoice reverted to sent.
	divergent := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&divergent))
	require.NoError(t, payments.ApplyPayment(testPayment(divergent.ID, "REF-DIV")))
	require.NoError(t, invoices.UpdateStatus(divergent.ID, domain.InvoiceSent))

	ids, err := payments.UnpaidInvoiceIDsWithPayments()
	require.NoError(t, err)
	assert.Equal(t, []string{divergent.ID}, ids)
}

func TestPaymentRepo_GetVolumeByCurrencySumsExactly(t *testing.T) {
	invoices, payments := setupTestDB(t)

	// 0.10 three times is the classic float drift case (0.30000000000000004).
	for i, amt := range []string{"0.10", "0.10", "0.10"} {
		inv := testInvoice(domain.InvoiceSent)
		require.NoError(t, invoices.Insert(&inv))
		p := testPayment(inv.ID, fmt.Sprintf("REF-USD-%d", i))
		p.Amount = decimal.RequireFromString(amt)
		require.NoError(t, payments.ApplyPayment(p))
	}
	inv := testInvoice(domain.InvoiceSent)
	inv.Currency = "NGN"
	require.NoError(t, invoices.Insert(&inv))
	p := testPayment(inv.ID, "REF-NGN-0")
	p.Currency = "NGN"
	p.Amount = decimal.RequireFromString("50.50")
	require.NoError(t, payments.ApplyPayment(p))

	volumes, err := payments.GetVolumeByCurrency()
	require.NoError(t, err)
	require.Len(t, volumes, 2)

	assert.Equal(t, "NGN", volumes[0].Currency)
	assert.Equal(t, 1, volumes[0].Count)
	assert.True(t, volumes[0].Volume.Equal(decimal.RequireFromString("50.50")),
		"NGN volume %s != 50.50", volumes[0].Volume)

	assert.Equal(t, "USD", volumes[1].Currency)
	assert.Equal(t, 3, volumes[1].Count)
	assert.True(t, volumes[1].Volume.Equal(decimal.RequireFromString("0.30")),
		"USD volume %s != 0.30", volumes[1].Volume)
}

func TestPaymentRepo_ListFiltersByInvoice(t *testing.T) {
	invoices, payments := setupTestDB(t)

	a := testInvoice(domain.InvoiceSent)
	b := testInvoice(domain.InvoiceSent)
	require.NoError(t, invoices.Insert(&a))
	require.NoError(t, invoices.Insert(&b))
	require.NoError(t, payments.ApplyPayment(testPayment(a.ID, "REF-A")))
	require.NoError(t, payments.ApplyPayment(testPayment(b.ID, "REF-B")))

	got, total, err := payments.List(PaymentFilter{InvoiceID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "REF-A", got[0].Reference)
}
