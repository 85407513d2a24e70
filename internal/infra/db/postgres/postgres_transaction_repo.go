package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionCols = `id, reference, provider_ref, checkout_ref, buyer_id, creator_id, product_kind, product_id,
  product_title, product_slug, gross_amount, commission, creator_earnings, currency, status, provider,
  amount_mismatch, created_at, updated_at, paid_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var kind string
	if err := row.Scan(&t.ID, &t.Reference, &t.ProviderRef, &t.CheckoutRef, &t.BuyerID, &t.CreatorID, &kind, &t.Product.ID,
		&t.ProductTitle, &t.ProductSlug, &t.GrossAmount, &t.Commission, &t.CreatorEarnings, &t.Currency, &t.Status, &t.Provider,
		&t.AmountMismatch, &t.CreatedAt, &t.UpdatedAt, &t.PaidAt); err != nil {
		return nil, err
	}
	t.Product.Kind = model.ProductKind(kind)
	return t, nil
}

// Save inserts a new transaction. References are unique; a clash returns
// domain.ErrAlreadyExists.
func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, reference, provider_ref, checkout_ref, buyer_id, creator_id, product_kind, product_id,
  product_title, product_slug, gross_amount, commission, creator_earnings, currency, status, provider,
  amount_mismatch, created_at, updated_at, paid_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Reference, t.ProviderRef, t.CheckoutRef, t.BuyerID, t.CreatorID,
		string(t.Product.Kind), t.Product.ID, t.ProductTitle, t.ProductSlug, t.GrossAmount, t.Commission, t.CreatorEarnings,
		t.Currency, string(t.Status), t.Provider, t.AmountMismatch, t.CreatedAt, t.UpdatedAt, t.PaidAt)
	return writeErr(err)
}

func (r *transactionRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Transaction, error) {
	q := `SELECT ` + transactionCols + ` FROM transactions WHERE ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return t, nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *transactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	return r.findOne(ctx, tx, "reference=$1", reference)
}

func (r *transactionRepo) SetCheckoutRef(ctx context.Context, tx repository.Tx, id, checkoutRef string) error {
	const q = `UPDATE transactions SET checkout_ref=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, checkoutRef)
	if err != nil {
		return writeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkSuccessfulIfPending writes the settlement in the same statement that
// checks the status, so only one concurrent confirmation can apply.
func (r *transactionRepo) MarkSuccessfulIfPending(ctx context.Context, tx repository.Tx, id string, s model.Settlement) (bool, error) {
	const q = `
UPDATE transactions
   SET status = 'successful',
       gross_amount = $2,
       commission = $3,
       creator_earnings = $4,
       amount_mismatch = $5,
       provider_ref = NULLIF($6, ''),
       paid_at = $7,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, s.Gross, s.Commission, s.CreatorEarnings, s.AmountMismatch, s.ProviderRef, s.PaidAt)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) swapStatus(ctx context.Context, tx repository.Tx, id string, from, to model.TransactionStatus) (bool, error) {
	const q = `UPDATE transactions SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *transactionRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.swapStatus(ctx, tx, id, model.TransactionStatusPending, model.TransactionStatusFailed)
}

func (r *transactionRepo) MarkRefundedIfSuccessful(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.swapStatus(ctx, tx, id, model.TransactionStatusSuccessful, model.TransactionStatusRefunded)
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + transactionCols + ` FROM transactions WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

func (r *transactionRepo) SumCreatorEarnings(ctx context.Context, tx repository.Tx, creatorID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(creator_earnings),0)::BIGINT FROM transactions WHERE creator_id=$1 AND status='successful';`
	row, err := pickRow(ctx, r.pool, tx, q, creatorID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
