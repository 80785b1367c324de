// Package flutterwave implements the Payments contract against the
// Flutterwave v3 REST API: hosted payment pages keyed by a per-order
// transaction reference, verified by the same reference.
package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/pkg/commerce"
)

// txRefPrefix is prepended to order ids to form the gateway reference.
const txRefPrefix = "sharpshop_"

const defaultTimeout = 15 * time.Second

// OrderAmounts resolves the amount to charge for an order. The sqlite
// store satisfies this.
type OrderAmounts interface {
	OrderAmount(ctx context.Context, orderID string) (float64, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://api.flutterwave.com/v3.
	BaseURL string

	// SecretKey authenticates requests as a Bearer token.
	SecretKey string

	// RedirectURL is where the hosted page sends the customer after payment.
	RedirectURL string

	// Currency defaults to NGN.
	Currency string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	Amounts OrderAmounts
	Logger  zerolog.Logger
}

// Client implements commerce.Payments.
type Client struct {
	baseURL     string
	secretKey   string
	redirectURL string
	currency    string
	httpClient  *http.Client
	amounts     OrderAmounts
	logger      zerolog.Logger
}

// New creates a payments client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("flutterwave: base URL is required")
	}
	if opts.SecretKey == "" {
		return nil, fmt.Errorf("flutterwave: secret key is required")
	}
	if opts.Amounts == nil {
		return nil, fmt.Errorf("flutterwave: order amounts source is required")
	}
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:     opts.BaseURL,
		secretKey:   opts.SecretKey,
		redirectURL: opts.RedirectURL,
		currency:    opts.Currency,
		httpClient:  opts.HTTPClient,
		amounts:     opts.Amounts,
		logger:      opts.Logger,
	}, nil
}

// TxRef returns the gateway transaction reference for an order.
func TxRef(orderID string) string {
	return txRefPrefix + orderID
}

type paymentRequest struct {
	TxRef       string  `json:"tx_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	RedirectURL string  `json:"redirect_url,omitempty"`
}

type paymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// CreateLink creates a hosted payment page for the order and returns its URL.
func (c *Client) CreateLink(ctx context.Context, orderID string) (string, error) {
	amount, err := c.amounts.OrderAmount(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve order amount: %w", err)
	}

	payload := paymentRequest{
		TxRef:       TxRef(orderID),
		Amount:      amount,
		Currency:    c.currency,
		RedirectURL: c.redirectURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read payment response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("order_id", orderID).
			Msg("Payment link creation rejected")
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var parsed paymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode payment response: %w", err)
	}
	if parsed.Status != "success" || parsed.Data.Link == "" {
		return "", fmt.Errorf("payment gateway declined: %s", parsed.Message)
	}

	c.logger.Info().Str("order_id", orderID).Msg("Payment link created")

	return parsed.Data.Link, nil
}

type verifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		Status string  `json:"status"`
		Amount float64 `json:"amount"`
	} `json:"data"`
}

// CheckStatus verifies the order's transaction by reference. Pending is
// returned for any non-successful verification; transport failures map to
// PaymentError so callers can distinguish "unpaid" from "unknown".
func (c *Client) CheckStatus(ctx context.Context, orderID string) (commerce.PaymentStatus, error) {
	endpoint := fmt.Sprintf("%s/transactions/verify_by_reference?tx_ref=%s",
		c.baseURL, url.QueryEscape(TxRef(orderID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return commerce.PaymentError, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return commerce.PaymentError, fmt.Errorf("payment verification failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return commerce.PaymentError, fmt.Errorf("failed to read verification response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The gateway 404s references it has never seen; treat as unpaid.
		if resp.StatusCode == http.StatusNotFound {
			return commerce.PaymentPending, nil
		}
		return commerce.PaymentError, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return commerce.PaymentError, fmt.Errorf("failed to decode verification response: %w", err)
	}

	if parsed.Status == "success" && parsed.Data.Status == "successful" {
		return commerce.PaymentPaid, nil
	}
	return commerce.PaymentPending, nil
}
