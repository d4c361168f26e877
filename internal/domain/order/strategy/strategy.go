// Package strategy holds one payment-confirmation strategy per rail. A
// strategy opens the payment and watches it until settlement, terminal
// failure or timeout; settlement itself stays in the order service so every
// rail shares the same idempotent transition.
package strategy

import (
	"context"

	"starpay/internal/domain/order/model"

	"github.com/shopspring/decimal"
)

// Instructions tell the payer how to complete the payment. Which fields are
// set depends on the rail: address+memo for on-chain, a redirect for the
// gateway rails.
type Instructions struct {
	Address       string          `json:"address,omitempty"`
	Memo          string          `json:"memo,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	RedirectURL   string          `json:"redirectUrl,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
}

type ConfirmStrategy interface {
	// Begin opens the payment on the rail and returns payer instructions.
	Begin(ctx context.Context, order *model.Order) (*Instructions, error)
	// Await watches the payment until it settles, fails terminally or ctx
	// ends. ok reports settlement; the proof map is merged into the order's
	// gateway payload. Transient provider errors are absorbed, not returned.
	Await(ctx context.Context, order *model.Order, instr *Instructions) (proof map[string]interface{}, ok bool, err error)
}
