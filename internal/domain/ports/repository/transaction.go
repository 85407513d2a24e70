package repository

import (
	"context"
	"time"

	"video-monetization/internal/domain/model"
)

// TransactionRepository persists purchase transactions.
// Every status change is a single conditional statement so that concurrent
// confirmations cannot both apply.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Transaction, error)
	SetCheckoutRef(ctx context.Context, tx Tx, id, checkoutRef string) error

	// MarkSuccessfulIfPending applies the settlement only while status is pending.
	// It reports false when another caller already settled the row.
	MarkSuccessfulIfPending(ctx context.Context, tx Tx, id string, s model.Settlement) (bool, error)
	MarkFailedIfPending(ctx context.Context, tx Tx, id string) (bool, error)
	MarkRefundedIfSuccessful(ctx context.Context, tx Tx, id string) (bool, error)

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	// SumCreatorEarnings totals creator earnings over successful transactions.
	SumCreatorEarnings(ctx context.Context, tx Tx, creatorID string) (int64, error)
}
