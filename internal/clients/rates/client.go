// Package rates is the exchange-rate source: coin spot prices against USD
// and fiat cross rates. Referral accrual uses it for the two-hop conversion
// of fiat-settled margins into the coin ledger currency.
package rates

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

const (
	coinID       = "the-open-network"
	CurrencyCoin = "TON"
	CurrencyUSD  = "USD"
)

type Client struct {
	httpClient *http.Client
	spotURL    string
	fiatURL    string
}

func NewClient(cfg config.RatesConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		spotURL:    cfg.SpotURL,
		fiatURL:    cfg.FiatURL,
	}
}

// Rate returns how many units of `to` one unit of `from` buys. Supported
// pairs are coin<->USD (spot source) and fiat->USD (fiat source); anything
// else is a configuration error.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	switch {
	case from == CurrencyCoin && to == CurrencyUSD:
		return c.coinSpotUSD(ctx)
	case from == CurrencyUSD && to == CurrencyCoin:
		spot, err := c.coinSpotUSD(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).DivRound(spot, 12), nil
	case to == CurrencyUSD:
		return c.fiatToUSD(ctx, from)
	}
	return decimal.Zero, fmt.Errorf("rates: unsupported pair %s/%s", from, to)
}

func (c *Client) coinSpotUSD(ctx context.Context) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("ids", coinID)
	params.Set("vs_currencies", "usd")

	var resp map[string]map[string]json.Number
	if err := c.getJSON(ctx, c.spotURL+"?"+params.Encode(), &resp); err != nil {
		return decimal.Zero, err
	}

	raw, ok := resp[coinID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("rates: spot response missing %s price", coinID)
	}
	return decimal.NewFromString(raw.String())
}

func (c *Client) fiatToUSD(ctx context.Context, from string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", "USD")
	params.Set("amount", "1")

	var resp struct {
		Result json.Number `json:"result"`
	}
	if err := c.getJSON(ctx, c.fiatURL+"?"+params.Encode(), &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Result.String())
}

func (c *Client) getJSON(ctx context.Context, fullURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
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
		return fmt.Errorf("rates: %s returned %d", req.URL.Host, resp.StatusCode)
	}
	return json.Unmarshal(raw, dest)
}
