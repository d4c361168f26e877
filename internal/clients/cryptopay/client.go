// Package cryptopay is the crypto-invoice provider client: invoices for
// inbound payments, payouts for withdrawals, and webhook verification.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"starpay/internal/pkg/config"

	"github.com/shopspring/decimal"
)

// Invoice statuses. paid and paid_over settle an order; cancel, fail and
// system_fail are terminal without settlement.
const (
	StatusPaid       = "paid"
	StatusPaidOver   = "paid_over"
	StatusCancel     = "cancel"
	StatusFail       = "fail"
	StatusSystemFail = "system_fail"
)

// IsPaidStatus reports whether an invoice status settles the order.
func IsPaidStatus(status string) bool {
	switch strings.ToLower(status) {
	case StatusPaid, StatusPaidOver:
		return true
	}
	return false
}

// IsTerminalFailure reports whether polling should stop without settlement.
func IsTerminalFailure(status string) bool {
	switch strings.ToLower(status) {
	case StatusCancel, StatusFail, StatusSystemFail:
		return true
	}
	return false
}

// Invoice is the subset of the provider's invoice object the order payload
// records.
type Invoice struct {
	UUID          string `json:"uuid"`
	URL           string `json:"url"`
	Address       string `json:"address"`
	PayerCurrency string `json:"payer_currency"`
	Network       string `json:"network"`
	Status        string `json:"status"`
	TxID          string `json:"txid"`
	IsFinal       bool   `json:"is_final"`
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	merchantID  string
	paymentKey  string
	payoutKey   string
	callbackURL string
	lifetime    int
}

func NewClient(cfg config.CryptoPayConfig) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		merchantID:  cfg.MerchantID,
		paymentKey:  cfg.PaymentKey,
		payoutKey:   cfg.PayoutKey,
		callbackURL: cfg.CallbackURL,
		lifetime:    cfg.InvoiceLifetime,
	}
}

// CreateInvoice opens an invoice for orderRef. The provider converts the
// fiat amount into the payer's crypto currency on its side.
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, orderRef string) (*Invoice, error) {
	payload := map[string]interface{}{
		"amount":   amount.StringFixed(2),
		"currency": currency,
		"order_id": orderRef,
	}
	if c.callbackURL != "" {
		payload["url_callback"] = c.callbackURL
	}
	if c.lifetime > 0 {
		payload["lifetime"] = c.lifetime
	}

	var resp struct {
		State  int     `json:"state"`
		Result Invoice `json:"result"`
	}
	if err := c.postSigned(ctx, "/v1/payment", payload, c.paymentKey, &resp); err != nil {
		return nil, err
	}
	if resp.State != 0 {
		return nil, fmt.Errorf("cryptopay: create invoice failed, state=%d", resp.State)
	}
	return &resp.Result, nil
}

// GetInvoice returns invoice status by our order reference.
func (c *Client) GetInvoice(ctx context.Context, orderRef string) (*Invoice, error) {
	payload := map[string]interface{}{"order_id": orderRef}

	var resp struct {
		State  int     `json:"state"`
		Result Invoice `json:"result"`
	}
	if err := c.postSigned(ctx, "/v1/payment/info", payload, c.paymentKey, &resp); err != nil {
		return nil, err
	}
	if resp.State != 0 {
		return nil, fmt.Errorf("cryptopay: payment info failed, state=%d", resp.State)
	}
	return &resp.Result, nil
}

// Payout is the provider's payout object.
type Payout struct {
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
	TxID    string `json:"txid"`
	IsFinal bool   `json:"is_final"`
}

// CreatePayout submits an outbound payout and returns the provider reference.
func (c *Client) CreatePayout(ctx context.Context, orderRef, address string, amount decimal.Decimal, currency string) (*Payout, error) {
	payload := map[string]interface{}{
		"amount":   amount.String(),
		"currency": currency,
		"order_id": orderRef,
		"address":  address,
	}

	var resp struct {
		State  int    `json:"state"`
		Result Payout `json:"result"`
	}
	if err := c.postSigned(ctx, "/v1/payout", payload, c.payoutKey, &resp); err != nil {
		return nil, err
	}
	if resp.State != 0 {
		return nil, fmt.Errorf("cryptopay: create payout failed, state=%d", resp.State)
	}
	return &resp.Result, nil
}

// GetPayout returns payout status by our reference.
func (c *Client) GetPayout(ctx context.Context, orderRef string) (*Payout, error) {
	payload := map[string]interface{}{"order_id": orderRef}

	var resp struct {
		State  int    `json:"state"`
		Result Payout `json:"result"`
	}
	if err := c.postSigned(ctx, "/v1/payout/info", payload, c.payoutKey, &resp); err != nil {
		return nil, err
	}
	if resp.State != 0 {
		return nil, fmt.Errorf("cryptopay: payout info failed, state=%d", resp.State)
	}
	return &resp.Result, nil
}

func (c *Client) postSigned(ctx context.Context, path string, payload interface{}, key string, dest interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	sign, err := Sign(payload, key)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.merchantID)
	req.Header.Set("sign", sign)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("cryptopay: %s returned %d", path, resp.StatusCode)
	}
	return json.Unmarshal(raw, dest)
}
