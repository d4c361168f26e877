package strategy

import (
	"context"
	"fmt"
	"time"

	"starpay/internal/clients/gateway"
	"starpay/internal/domain/order/model"
	"starpay/internal/pkg/config"
	"starpay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GatewayInvoicer is the slice of the bank gateway the strategy needs.
type GatewayInvoicer interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, description, payload string) (txID, redirectURL string, err error)
	GetStatus(ctx context.Context, txID string) (string, error)
}

// GatewayStrategy confirms bank-transfer payments by polling the gateway's
// transaction status.
type GatewayStrategy struct {
	client       GatewayInvoicer
	pollInterval time.Duration
	timeout      time.Duration
}

func NewGatewayStrategy(client GatewayInvoicer, confirm config.ConfirmConfig) *GatewayStrategy {
	return &GatewayStrategy{
		client:       client,
		pollInterval: confirm.PollInterval(),
		timeout:      confirm.Timeout(),
	}
}

func (s *GatewayStrategy) Begin(ctx context.Context, order *model.Order) (*Instructions, error) {
	description := fmt.Sprintf("%s x%d", order.ItemKind, order.Quantity)
	txID, redirect, err := s.client.CreateInvoice(ctx, order.Price, order.Currency, description, order.ID)
	if err != nil {
		return nil, err
	}
	return &Instructions{
		Amount:        order.Price,
		RedirectURL:   redirect,
		TransactionID: txID,
	}, nil
}

func (s *GatewayStrategy) Await(ctx context.Context, order *model.Order, instr *Instructions) (map[string]interface{}, bool, error) {
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
			status, err := s.client.GetStatus(ctx, instr.TransactionID)
			if err != nil {
				logger.Log.Warn("gateway confirm: status poll failed",
					zap.String("order_id", order.ID), zap.Error(err))
				continue
			}

			switch status {
			case gateway.StatusConfirmed:
				return map[string]interface{}{
					"rail":           model.RailGateway,
					"transaction_id": instr.TransactionID,
					"status":         status,
				}, true, nil
			case gateway.StatusCanceled, gateway.StatusFailed, gateway.StatusExpired:
				return nil, false, nil
			}
		}
	}
}
