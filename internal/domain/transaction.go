package domain

import "github.com/shopspring/decimal"

// Customer identifies the paying customer as reported by the provider.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Transaction is the normalized remote transaction returned by a gateway
// verify lookup. It is never persisted directly; the reconciliation engine
// maps it into a Payment.
type Transaction struct {
	ID          int64           `json:"id"`
	TxRef       string          `json:"tx_ref"`
	FlwRef      string          `json:"flw_ref"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PaymentType string          `json:"payment_type"`
	Customer    Customer        `json:"customer"`
}
