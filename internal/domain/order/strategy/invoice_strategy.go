package strategy

import (
	"context"
	"time"

	"starpay/internal/clients/cryptopay"
	"starpay/internal/domain/order/model"
	"starpay/internal/pkg/config"
	"starpay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CryptoInvoicer is the slice of the crypto-invoice provider the strategy
// needs.
type CryptoInvoicer interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, orderRef string) (*cryptopay.Invoice, error)
	GetInvoice(ctx context.Context, orderRef string) (*cryptopay.Invoice, error)
}

// InvoiceStrategy confirms crypto-invoice payments. The provider also posts
// a signed webhook; polling and the webhook race safely because settlement
// is idempotent.
type InvoiceStrategy struct {
	client       CryptoInvoicer
	pollInterval time.Duration
	timeout      time.Duration
}

func NewInvoiceStrategy(client CryptoInvoicer, confirm config.ConfirmConfig) *InvoiceStrategy {
	return &InvoiceStrategy{
		client:       client,
		pollInterval: confirm.PollInterval(),
		timeout:      confirm.Timeout(),
	}
}

func (s *InvoiceStrategy) Begin(ctx context.Context, order *model.Order) (*Instructions, error) {
	invoice, err := s.client.CreateInvoice(ctx, order.Price, order.Currency, order.ID)
	if err != nil {
		return nil, err
	}
	return &Instructions{
		Amount:        order.Price,
		Address:       invoice.Address,
		RedirectURL:   invoice.URL,
		TransactionID: invoice.UUID,
	}, nil
}

func (s *InvoiceStrategy) Await(ctx context.Context, order *model.Order, instr *Instructions) (map[string]interface{}, bool, error) {
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-deadline.C:
			return nil, false, nil
		case <-ticker.C:
			invoice, err := s.client.GetInvoice(ctx, order.ID)
			if err != nil {
				logger.Log.Warn("invoice confirm: status poll failed",
					zap.String("order_id", order.ID), zap.Error(err))
				continue
			}

			switch {
			case cryptopay.IsPaidStatus(invoice.Status):
				return map[string]interface{}{
					"rail":           model.RailInvoice,
					"invoice_uuid":   invoice.UUID,
					"status":         invoice.Status,
					"txid":           invoice.TxID,
					"payer_currency": invoice.PayerCurrency,
					"network":        invoice.Network,
				}, true, nil
			case cryptopay.IsTerminalFailure(invoice.Status):
				return nil, false, nil
			}
		}
	}
}
