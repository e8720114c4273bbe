package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrush/reconciler/internal/domain"
)

type InvoiceRepo struct {
	db *sql.DB
}

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

func (r *InvoiceRepo) Insert(inv *domain.Invoice) error {
	_, err := r.db.Exec(
		`INSERT INTO invoices
		(id, amount, currency, status, customer_email, customer_name, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		inv.ID, inv.Amount.String(), inv.Currency, string(inv.Status),
		inv.CustomerEmail, inv.CustomerName, inv.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) BulkInsert(invs []domain.Invoice) (int, error) {
	inserted := 0
	sqlTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.Prepare(
		`INSERT OR IGNORE INTO invoices
		(id, amount, currency, status, customer_email, customer_name, created_at)
		VALUES (?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range invs {
		inv := &invs[i]
		res, err := stmt.Exec(
			inv.ID, inv.Amount.String(), inv.Currency, string(inv.Status),
			inv.CustomerEmail, inv.CustomerName, inv.CreatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *InvoiceRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM invoices").Scan(&count)
	return count, err
}

func (r *InvoiceRepo) GetByID(id string) (*domain.Invoice, error) {
	row := r.db.QueryRow(
		`SELECT id, amount, currency, status, customer_email, customer_name, created_at
		FROM invoices WHERE id = ?`, id,
	)
	inv, err := scanInvoice(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}

// UpdateStatus advances an invoice's status outside a reconciliation apply.
// The repair sweep uses it to complete partially-applied transitions.
func (r *InvoiceRepo) UpdateStatus(id string, status domain.InvoiceStatus) error {
	res, err := r.db.Exec("UPDATE invoices SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}

type InvoiceFilter struct {
	Status   string
	Currency string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

func (r *InvoiceRepo) List(f InvoiceFilter) ([]domain.Invoice, int, error) {
	where, args := buildInvoiceWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	query := `SELECT id, amount, currency, status, customer_email, customer_name, created_at
		FROM invoices` + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var invs []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		invs = append(invs, *inv)
	}
	return invs, total, rows.Err()
}

// DashboardStats holds aggregate invoice statistics.
type DashboardStats struct {
	Total   int `json:"total"`
	Draft   int `json:"draft"`
	Sent    int `json:"sent"`
	Paid    int `json:"paid"`
	Overdue int `json:"overdue"`
}

func (r *InvoiceRepo) GetDashboardStats() (*DashboardStats, error) {
	s := &DashboardStats{}
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='draft' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='paid' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='overdue' THEN 1 ELSE 0 END), 0)
		FROM invoices
	`).Scan(&s.Total, &s.Draft, &s.Sent, &s.Paid, &s.Overdue)
	return s, err
}

// --- helpers ---

func buildInvoiceWhere(f InvoiceFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
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

func scanInvoice(scan func(...any) error) (*domain.Invoice, error) {
	var inv domain.Invoice
	var amount, status, createdAt string

	if err := scan(&inv.ID, &amount, &inv.Currency, &status,
		&inv.CustomerEmail, &inv.CustomerName, &createdAt); err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	inv.Amount = amt
	inv.Status = domain.InvoiceStatus(status)
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &inv, nil
}
