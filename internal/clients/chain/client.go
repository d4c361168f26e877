// Package chain is the on-chain provider client: it lists recent incoming
// transfers to the receiving wallet and submits outgoing payouts.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"starpay/internal/pkg/config"

	"github.com/shopspring/decimal"
)

// Transfer is one incoming on-chain transfer as seen by a confirmation
// strategy: the attached comment is matched against the order memo.
type Transfer struct {
	Hash    string
	Amount  decimal.Decimal
	Comment string
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	mnemonics  []string
}

func NewClient(cfg config.ChainConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		mnemonics:  cfg.MnemonicWords(),
	}
}

var nanoUnit = decimal.New(1, 9) // 1e9 nano units per coin

// ListRecentTransfers returns the newest incoming transfers to address.
func (c *Client) ListRecentTransfers(ctx context.Context, address string) ([]Transfer, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("limit", "50")

	var resp struct {
		OK     bool `json:"ok"`
		Result []struct {
			TransactionID struct {
				Hash string `json:"hash"`
			} `json:"transaction_id"`
			InMsg struct {
				Value   string `json:"value"`
				Message string `json:"message"`
			} `json:"in_msg"`
		} `json:"result"`
	}
	if err := c.getJSON(ctx, "/getTransactions", params, &resp); err != nil {
		return nil, err
	}

	transfers := make([]Transfer, 0, len(resp.Result))
	for _, tx := range resp.Result {
		amount := parseNanoAmount(tx.InMsg.Value)
		transfers = append(transfers, Transfer{
			Hash:    tx.TransactionID.Hash,
			Amount:  amount,
			Comment: strings.TrimSpace(tx.InMsg.Message),
		})
	}
	return transfers, nil
}

// SendTransfer submits an outgoing payout and returns the transaction hash.
func (c *Client) SendTransfer(ctx context.Context, address string, amount decimal.Decimal, comment string) (string, error) {
	if len(c.mnemonics) == 0 {
		return "", fmt.Errorf("chain: wallet mnemonics not configured")
	}

	body := map[string]interface{}{
		"destination": address,
		"amount":      amount.Mul(nanoUnit).IntPart(),
		"comment":     comment,
		"mnemonics":   c.mnemonics,
	}

	var resp struct {
		OK     bool `json:"ok"`
		Result struct {
			Hash string `json:"hash"`
		} `json:"result"`
		Error string `json:"error"`
	}
	if err := c.postJSON(ctx, "/sendTransfer", body, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.Result.Hash == "" {
		return "", fmt.Errorf("chain: transfer rejected: %s", resp.Error)
	}
	return resp.Result.Hash, nil
}

// parseNanoAmount converts a nano-denominated string into coin units at
// 9-decimal precision. Malformed values count as zero rather than failing
// the whole poll tick.
func parseNanoAmount(value string) decimal.Decimal {
	nano, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return nano.DivRound(nanoUnit, 9)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.do(req, dest)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.do(req, dest)
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
		return fmt.Errorf("chain: %s returned %d", req.URL.Path, resp.StatusCode)
	}
	return json.Unmarshal(raw, dest)
}
