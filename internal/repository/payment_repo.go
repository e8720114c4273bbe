package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrush/reconciler/internal/domain"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) GetByReference(reference string) (*domain.Payment, error) {
	row := r.db.QueryRow(
		`SELECT id, invoice_id, amount, currency, status, reference, provider,
			payment_method, customer_email, customer_name, created_at
		FROM payments WHERE reference = ?`, reference,
	)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by reference: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) GetByInvoiceID(invoiceID string) ([]domain.Payment, error) {
	rows, err := r.db.Query(
		`SELECT id, invoice_id, amount, currency, status, reference, provider,
			payment_method, customer_email, customer_name, created_at
		FROM payments WHERE invoice_id = ? ORDER BY created_at`, invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments for invoice: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// ApplyPayment records a payment and advances its invoice to paid in one
// transaction, so a recorded payment can never be committed without the
// invoice transition. A second payment with the same reference fails the
// unique index and is reported as ErrDuplicateReference; an invoice that is
// no longer in a payable status rolls the whole apply back.
func (r *PaymentRepo) ApplyPayment(p *domain.Payment) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.Exec(
		`INSERT INTO payments
		(id, invoice_id, amount, currency, status, reference, provider,
		 payment_method, customer_email, customer_name, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.InvoiceID, p.Amount.String(), p.Currency, string(p.Status),
		p.Reference, string(p.Provider), p.PaymentMethod,
		p.CustomerEmail, p.CustomerName, p.CreatedAt.Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	res, err := sqlTx.Exec(
		`UPDATE invoices SET status = ? WHERE id = ? AND status IN (?,?,?)`,
		string(domain.InvoicePaid), p.InvoiceID,
		string(domain.InvoiceDraft), string(domain.InvoiceSent), string(domain.InvoiceOverdue),
	)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return fmt.Errorf("mark invoice paid: invoice %s not in a payable status", p.InvoiceID)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PaymentRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM payments").Scan(&count)
	return count, err
}

type PaymentFilter struct {
	InvoiceID string
	Status    string
	Currency  string
	Provider  string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

func (r *PaymentRepo) List(f PaymentFilter) ([]domain.Payment, int, error) {
	where, args := buildPaymentWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	query := `SELECT id, invoice_id, amount, currency, status, reference, provider,
		payment_method, customer_email, customer_name, created_at
		FROM payments` + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// UnpaidInvoiceIDsWithPayments returns invoices that hold a successful payment
// but never reached the paid status. These are partially-applied
// reconciliations (webhook best-effort failures, legacy rows) that the repair
// sweep completes.
func (r *PaymentRepo) UnpaidInvoiceIDsWithPayments() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT p.invoice_id
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE p.status = ? AND i.status NOT IN (?,?)
	`, string(domain.PaymentSuccessful), string(domain.InvoicePaid), string(domain.InvoiceCancelled))
	if err != nil {
		return nil, fmt.Errorf("query unrepaired invoices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type CurrencyVolume struct {
	Currency string          `json:"currency"`
	Count    int             `json:"count"`
	Volume   decimal.Decimal `json:"volume"`
}

// GetVolumeByCurrency totals payment volume per currency. Amounts are stored
// as decimal text, so they are summed in Go rather than in SQL to keep the
// totals out of floating point.
func (r *PaymentRepo) GetVolumeByCurrency() ([]CurrencyVolume, error) {
	rows, err := r.db.Query(`SELECT currency, amount FROM payments ORDER BY currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CurrencyVolume
	for rows.Next() {
		var code, amount string
		if err := rows.Scan(&code, &amount); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		if n := len(result); n > 0 && result[n-1].Currency == code {
			result[n-1].Count++
			result[n-1].Volume = result[n-1].Volume.Add(value)
			continue
		}
		result = append(result, CurrencyVolume{Currency: code, Count: 1, Volume: value})
	}
	return result, rows.Err()
}

// --- helpers ---

func buildPaymentWhere(f PaymentFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.InvoiceID != "" {
		clauses = append(clauses, "invoice_id = ?")
		args = append(args, f.InvoiceID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.Provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.To.Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectPayments(rows *sql.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(scan func(...any) error) (*domain.Payment, error) {
	var p domain.Payment
	var amount, status, provider, createdAt string

	if err := scan(&p.ID, &p.InvoiceID, &amount, &p.Currency, &status,
		&p.Reference, &provider, &p.PaymentMethod,
		&p.CustomerEmail, &p.CustomerName, &createdAt); err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	p.Amount = amt
	p.Status = domain.PaymentStatus(status)
	p.Provider = domain.Provider(provider)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &p, nil
}
