// Package delivery is the fulfillment provider client. It delivers the
// purchased good (currency units, subscription months, coin top-ups) and
// quotes the house's unit cost for the pricing refresher.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"starpay/internal/pkg/config"
	"starpay/pkg/cache"

	"github.com/shopspring/decimal"
)

const tokenCacheKey = "delivery:auth_token"

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	phone      string
	walletVer  string
	mnemonics  []string
	tokens     cache.CacheService
	tokenTTL   time.Duration
}

// NewClient builds the client. Auth tokens are cached in the shared cache
// service so every process instance reuses one credential.
func NewClient(cfg config.DeliveryConfig, tokens cache.CacheService) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		phone:      cfg.Phone,
		walletVer:  cfg.WalletVersion,
		mnemonics:  cfg.MnemonicWords(),
		tokens:     tokens,
		tokenTTL:   time.Duration(cfg.TokenTTLHours) * time.Hour,
	}
}

// Deliver dispatches one delivery. kind selects the provider operation,
// quantity is units, months or whole coins depending on kind. The raw
// response is returned for the order's audit payload.
func (c *Client) Deliver(ctx context.Context, kind, recipient string, quantity int64) (map[string]interface{}, error) {
	var path string
	body := map[string]interface{}{"username": recipient}
	switch kind {
	case "stars":
		path = "/v1/order/stars"
		body["quantity"] = quantity
	case "premium":
		path = "/v1/order/premium"
		body["months"] = quantity
	case "ton":
		path = "/v1/order/ton"
		body["amount"] = quantity
	default:
		return nil, fmt.Errorf("delivery: unknown item kind %q", kind)
	}

	var result map[string]interface{}
	if err := c.postAuthed(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UnitCost quotes the provider's current per-unit cost in coin.
func (c *Client) UnitCost(ctx context.Context, kind string) (decimal.Decimal, error) {
	var resp struct {
		Price json.Number `json:"price"`
	}
	if err := c.postAuthed(ctx, "/v1/misc/price/"+kind, map[string]interface{}{}, &resp); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(resp.Price.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("delivery: malformed price for %s: %w", kind, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("delivery: non-positive price for %s", kind)
	}
	return price, nil
}

// bearer returns a cached auth token, authenticating once on miss. A 401 on
// a later call invalidates the cached token so the next attempt re-auths.
func (c *Client) bearer(ctx context.Context) (string, error) {
	var token string
	if err := c.tokens.Get(ctx, tokenCacheKey, &token); err == nil && token != "" {
		return token, nil
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		return "", err
	}

	payload := map[string]interface{}{
		"api_key":      c.apiKey,
		"phone_number": c.phone,
		"version":      c.walletVer,
		"mnemonics":    c.mnemonics,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/v1/authenticate", payload, nil, &resp); err != nil {
		return "", fmt.Errorf("delivery: authenticate failed: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("delivery: authenticate response without token")
	}

	if err := c.tokens.Set(ctx, tokenCacheKey, resp.Token, c.tokenTTL); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) postAuthed(ctx context.Context, path string, body interface{}, dest interface{}) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	headers := map[string]string{"Authorization": "JWT " + token}
	err = c.postJSON(ctx, path, body, headers, dest)
	if err != nil && strings.Contains(err.Error(), "401") {
		// Stale token; drop it and retry once with a fresh credential.
		_ = c.tokens.Delete(ctx, tokenCacheKey)
		token, aerr := c.bearer(ctx)
		if aerr != nil {
			return aerr
		}
		headers["Authorization"] = "JWT " + token
		err = c.postJSON(ctx, path, body, headers, dest)
	}
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, headers map[string]string, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

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
		return fmt.Errorf("delivery: %s returned %d", path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
