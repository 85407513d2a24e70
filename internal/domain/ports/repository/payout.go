package repository

import (
	"context"

	"video-monetization/internal/domain/model"
)

type PayoutRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payout) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payout, error)
	FindByProviderRef(ctx context.Context, tx Tx, providerRef string) (*model.Payout, error)
	List(ctx context.Context, tx Tx, f model.PayoutFilter) ([]*model.Payout, error)

	// Transition applies tr only if the stored status is one of tr.From.
	Transition(ctx context.Context, tx Tx, id string, tr model.PayoutTransition) (bool, error)
	// SetProviderRef records the transfer reference whatever the status, unless
	// one is already stored.
	SetProviderRef(ctx context.Context, tx Tx, id, providerRef string) (bool, error)

	// SumReserved totals payouts in pending, processing and completed states.
	SumReserved(ctx context.Context, tx Tx, creatorID string) (int64, error)
	// LockCreator serializes payout creation for one creator until tx ends.
	LockCreator(ctx context.Context, tx Tx, creatorID string) error
}
