package service

import (
	"context"
	"strings"

	"starpay/internal/clients/chain"
	"starpay/internal/clients/cryptopay"
	"starpay/internal/domain/withdrawal/model"

	"github.com/shopspring/decimal"
)

// Submission is what a payout provider reports right after submit.
type Submission struct {
	ProviderRef string
	Status      string
	Payload     map[string]interface{}
}

// PayoutProvider abstracts where the coins actually go out. The on-chain
// provider settles synchronously; the invoice provider settles later and is
// polled by the reconciler.
type PayoutProvider interface {
	Submit(ctx context.Context, ref, address string, amount decimal.Decimal) (*Submission, error)
	// Check returns the mapped status and whether it is final.
	Check(ctx context.Context, ref string) (status string, final bool, err error)
}

// ChainPayoutProvider sends payouts straight from the house wallet.
type ChainPayoutProvider struct {
	client *chain.Client
}

func NewChainPayoutProvider(client *chain.Client) *ChainPayoutProvider {
	return &ChainPayoutProvider{client: client}
}

func (p *ChainPayoutProvider) Submit(ctx context.Context, ref, address string, amount decimal.Decimal) (*Submission, error) {
	hash, err := p.client.SendTransfer(ctx, address, amount, ref)
	if err != nil {
		return nil, err
	}
	return &Submission{
		ProviderRef: hash,
		Status:      model.StatusSent,
		Payload:     map[string]interface{}{"tx_hash": hash},
	}, nil
}

func (p *ChainPayoutProvider) Check(ctx context.Context, ref string) (string, bool, error) {
	// An accepted transfer is final; there is nothing to poll.
	return model.StatusSent, true, nil
}

// CryptoPayoutProvider routes payouts through the crypto-invoice provider.
type CryptoPayoutProvider struct {
	client   *cryptopay.Client
	currency string
}

func NewCryptoPayoutProvider(client *cryptopay.Client, currency string) *CryptoPayoutProvider {
	return &CryptoPayoutProvider{client: client, currency: currency}
}

func (p *CryptoPayoutProvider) Submit(ctx context.Context, ref, address string, amount decimal.Decimal) (*Submission, error) {
	payout, err := p.client.CreatePayout(ctx, ref, address, amount, p.currency)
	if err != nil {
		return nil, err
	}

	status := model.StatusProcessing
	if payout.IsFinal {
		status = mapPayoutStatus(payout.Status)
	}
	return &Submission{
		ProviderRef: payout.UUID,
		Status:      status,
		Payload: map[string]interface{}{
			"payout_uuid": payout.UUID,
			"status":      payout.Status,
		},
	}, nil
}

func (p *CryptoPayoutProvider) Check(ctx context.Context, ref string) (string, bool, error) {
	payout, err := p.client.GetPayout(ctx, ref)
	if err != nil {
		return "", false, err
	}
	if !payout.IsFinal {
		return model.StatusProcessing, false, nil
	}
	return mapPayoutStatus(payout.Status), true, nil
}

func mapPayoutStatus(providerStatus string) string {
	switch strings.ToLower(providerStatus) {
	case cryptopay.StatusPaid, cryptopay.StatusPaidOver:
		return model.StatusSent
	case cryptopay.StatusCancel:
		return model.StatusCanceled
	default:
		return model.StatusFailed
	}
}
