package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrush/reconciler/internal/domain"
	"github.com/payrush/reconciler/internal/metrics"
)

// StatusSuccessful is the provider's sentinel for a completed charge.
const StatusSuccessful = "successful"

// Client performs authenticated lookups against the Flutterwave API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a gateway client. The timeout bounds every verify call so
// an unresponsive provider cannot hold a request handler open indefinitely.
func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type verifyEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID          int64       `json:"id"`
		TxRef       string      `json:"tx_ref"`
		FlwRef      string      `json:"flw_ref"`
		Status      string      `json:"status"`
		Amount      json.Number `json:"amount"`
		Currency    string      `json:"currency"`
		PaymentType string      `json:"payment_type"`
		Customer    struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"customer"`
	} `json:"data"`
}

// VerifyTransaction retrieves the authoritative status of a transaction by
// its provider-assigned id. The secret key is sent as a bearer credential and
// is never logged.
func (c *Client) VerifyTransaction(ctx context.Context, transactionID string) (tx *domain.Transaction, err error) {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
		metrics.GatewayRequestsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	url := fmt.Sprintf("%s/transactions/%s/verify", c.baseURL, transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: provider returned HTTP %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var env verifyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", domain.ErrGatewayProtocol, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status != "success" {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, &domain.GatewayRejectedError{Message: msg}
	}

	amount, err := decimal.NewFromString(env.Data.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable amount %q", domain.ErrGatewayProtocol, env.Data.Amount)
	}

	return &domain.Transaction{
		ID:          env.Data.ID,
		TxRef:       env.Data.TxRef,
		FlwRef:      env.Data.FlwRef,
		Status:      env.Data.Status,
		Amount:      amount,
		Currency:    env.Data.Currency,
		PaymentType: env.Data.PaymentType,
		Customer: domain.Customer{
			Email: env.Data.Customer.Email,
			Name:  env.Data.Customer.Name,
		},
	}, nil
}

func resultLabel(err error) string {
	var rejected *domain.GatewayRejectedError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrGatewayProtocol):
		return "protocol_error"
	case errors.As(err, &rejected):
		return "rejected"
	default:
		return "error"
	}
}
