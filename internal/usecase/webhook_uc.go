package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/ports/adapter"
	"video-monetization/internal/domain/ports/repository"
	"video-monetization/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookResult says what a delivery did, for logs and metrics.
type WebhookResult string

const (
	WebhookApplied   WebhookResult = "applied"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
	WebhookUnknown   WebhookResult = "unknown_reference"
	WebhookMismatch  WebhookResult = "provider_mismatch"
)

type WebhookUseCase interface {
	// Handle verifies and applies one provider notification. Redeliveries and
	// events for already terminal records are no-ops. An invalid signature
	// returns domain.ErrInvalidSignature before any state is read.
	Handle(ctx context.Context, providerKey string, header http.Header, body []byte) (WebhookResult, error)
}

type webhookUC struct {
	router    *GatewayRouter
	txs       repository.TransactionRepository
	purchases PurchaseUseCase
	payouts   PayoutUseCase
	log       *zerolog.Logger
}

func NewWebhookUseCase(router *GatewayRouter, txs repository.TransactionRepository, purchases PurchaseUseCase, payouts PayoutUseCase, logger *zerolog.Logger) *webhookUC {
	return &webhookUC{router: router, txs: txs, purchases: purchases, payouts: payouts, log: logger}
}

func (u *webhookUC) Handle(ctx context.Context, providerKey string, header http.Header, body []byte) (res WebhookResult, err error) {
	defer func() {
		label := string(res)
		if err != nil {
			label = "error"
			if errors.Is(err, domain.ErrInvalidSignature) {
				label = "invalid_signature"
			}
		}
		metrics.IncWebhook(providerKey, label)
	}()

	provider, err := u.router.ByKey(providerKey)
	if err != nil {
		return "", err
	}
	evt, err := provider.ParseWebhook(ctx, header, body)
	if err != nil {
		return "", err
	}
	log := u.log.With().Str("provider", providerKey).Str("event", evt.Raw).Logger()

	switch evt.Type {
	case adapter.EventChargeSucceeded, adapter.EventChargeFailed:
		return u.handleCharge(ctx, providerKey, evt, &log)
	case adapter.EventTransferSucceeded, adapter.EventTransferFailed, adapter.EventTransferReversed:
		return u.handleTransfer(ctx, providerKey, evt, &log)
	default:
		log.Debug().Msg("webhook event ignored")
		return WebhookIgnored, nil
	}
}

func (u *webhookUC) handleCharge(ctx context.Context, providerKey string, evt adapter.WebhookEvent, log *zerolog.Logger) (WebhookResult, error) {
	if evt.Reference == "" {
		log.Warn().Msg("charge event without reference")
		return WebhookIgnored, nil
	}
	t, err := u.txs.FindByReference(ctx, repository.NoTX, evt.Reference)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if t == nil {
		log.Info().Str("reference", evt.Reference).Msg("charge event for unknown reference")
		return WebhookUnknown, nil
	}
	// The transaction is bound to the provider it was created with; an event
	// from any other provider must not move it.
	if t.Provider != providerKey {
		log.Warn().
			Str("reference", evt.Reference).
			Str("pinned_provider", t.Provider).
			Msg("charge event from a provider the transaction is not pinned to")
		return WebhookMismatch, nil
	}

	if evt.Type == adapter.EventChargeFailed {
		applied, err := u.purchases.ConfirmFailure(ctx, t)
		if err != nil {
			return "", err
		}
		return appliedResult(applied), nil
	}
	_, applied, err := u.purchases.ConfirmSuccess(ctx, t, evt.Amount, evt.ProviderTransactionID)
	if err != nil {
		return "", err
	}
	return appliedResult(applied), nil
}

func (u *webhookUC) handleTransfer(ctx context.Context, providerKey string, evt adapter.WebhookEvent, log *zerolog.Logger) (WebhookResult, error) {
	status := adapter.TransferSucceeded
	switch evt.Type {
	case adapter.EventTransferFailed:
		status = adapter.TransferFailed
	case adapter.EventTransferReversed:
		status = adapter.TransferReversed
	}
	p, applied, err := u.payouts.ApplyTransferOutcome(ctx, providerKey, evt.TransferRef, evt.PayoutID, status, evt.Message)
	if err != nil {
		return "", err
	}
	if p == nil {
		log.Info().Str("transfer_ref", evt.TransferRef).Str("payout_id", evt.PayoutID).Msg("transfer event for unknown payout")
		return WebhookUnknown, nil
	}
	return appliedResult(applied), nil
}

func appliedResult(applied bool) WebhookResult {
	if applied {
		return WebhookApplied
	}
	return WebhookDuplicate
}
