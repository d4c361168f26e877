// Package gateway is the bank-transfer (SBP) gateway client.
package gateway

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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses as the gateway reports them.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCanceled  = "CANCELED"
	StatusFailed    = "FAILED"
	StatusExpired   = "EXPIRED"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	merchantID string
	secret     string
	methodSBP  int
	returnURL  string
	failedURL  string
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		secret:     cfg.Secret,
		methodSBP:  cfg.MethodSBP,
		returnURL:  cfg.ReturnURL,
		failedURL:  cfg.FailedURL,
	}
}

// CreateInvoice registers a payment and returns our transaction id plus the
// redirect URL the payer opens. The id is minted client-side so the order
// record can reference it even if the response is lost.
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, description, payload string) (string, string, error) {
	txID := uuid.New().String()
	body := map[string]interface{}{
		"paymentMethod": c.methodSBP,
		"id":            txID,
		"paymentDetails": map[string]interface{}{
			"amount":   amount.IntPart(),
			"currency": currency,
		},
		"description": description,
		"return":      c.returnURL,
		"failedUrl":   c.failedURL,
		"payload":     payload,
	}

	var resp struct {
		Redirect string `json:"redirect"`
		Status   string `json:"status"`
	}
	if err := c.postJSON(ctx, "/transaction/process", body, &resp); err != nil {
		return "", "", err
	}
	return txID, resp.Redirect, nil
}

// GetStatus returns the gateway's current status for a transaction.
func (c *Client) GetStatus(ctx context.Context, txID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/"+txID, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return strings.ToUpper(resp.Status), nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	return c.do(req, dest)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MerchantId", c.merchantID)
	req.Header.Set("X-Secret", c.secret)
}

func (c *Client) do(req *http.Request, dest interface{}) error {
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
		return fmt.Errorf("gateway: %s returned %d", req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(raw, dest)
}
