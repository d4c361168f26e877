package strategy

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"starpay/internal/clients/chain"
	"starpay/internal/domain/order/model"
	"starpay/internal/pkg/config"
	"starpay/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferLister lists recent incoming transfers to the receiving wallet.
type TransferLister interface {
	ListRecentTransfers(ctx context.Context, address string) ([]chain.Transfer, error)
}

// ChainStrategy confirms on-chain payments by polling the wallet's incoming
// transfers for one carrying the order's memo and at least the full amount.
type ChainStrategy struct {
	lister       TransferLister
	wallet       string
	memoPrefix   string
	pollInterval time.Duration
	timeout      time.Duration
}

func NewChainStrategy(lister TransferLister, wallet config.WalletConfig, confirm config.ConfirmConfig) *ChainStrategy {
	return &ChainStrategy{
		lister:       lister,
		wallet:       wallet.Address,
		memoPrefix:   wallet.MemoPrefix,
		pollInterval: confirm.PollInterval(),
		timeout:      confirm.Timeout(),
	}
}

// PaymentMemo derives the transfer comment that ties a payment to an order.
// It must be stable: the payer copies it once and the poller matches it for
// the order's whole lifetime.
func PaymentMemo(prefix, orderID, userID string) string {
	sum := md5.Sum([]byte(prefix + orderID + userID))
	return hex.EncodeToString(sum[:])
}

func (s *ChainStrategy) Begin(ctx context.Context, order *model.Order) (*Instructions, error) {
	return &Instructions{
		Address: s.wallet,
		Memo:    PaymentMemo(s.memoPrefix, order.ID, order.UserID),
		Amount:  order.Price,
	}, nil
}

func (s *ChainStrategy) Await(ctx context.Context, order *model.Order, instr *Instructions) (map[string]interface{}, bool, error) {
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
			transfers, err := s.lister.ListRecentTransfers(ctx, s.wallet)
			if err != nil {
				// Provider hiccups must not kill the watch; the payment
				// window is long and the next tick retries.
				logger.Log.Warn("chain confirm: poll failed",
					zap.String("order_id", order.ID), zap.Error(err))
				continue
			}

			if tx, ok := matchTransfer(transfers, instr.Memo, instr.Amount); ok {
				return map[string]interface{}{
					"rail":        model.RailChain,
					"tx_hash":     tx.Hash,
					"paid_amount": tx.Amount.String(),
					"memo":        instr.Memo,
				}, true, nil
			}
		}
	}
}

// matchTransfer finds a transfer whose comment equals the memo and whose
// amount covers the price. Underpayments never settle.
func matchTransfer(transfers []chain.Transfer, memo string, amount decimal.Decimal) (chain.Transfer, bool) {
	for _, tx := range transfers {
		if tx.Comment == memo && tx.Amount.GreaterThanOrEqual(amount) {
			return tx, true
		}
	}
	return chain.Transfer{}, false
}
