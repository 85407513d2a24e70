package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

var _ repository.PayoutRepository = (*payoutRepo)(nil)

type payoutRepo struct{ pool *pgxpool.Pool }

func NewPayoutRepo(pool *pgxpool.Pool) *payoutRepo {
	return &payoutRepo{pool: pool}
}

const payoutCols = `id, creator_id, amount, currency, status, mode, provider, provider_ref, processed_by, processed_at, notes, created_at, updated_at`

func scanPayout(row pgx.Row) (*model.Payout, error) {
	p := &model.Payout{}
	if err := row.Scan(&p.ID, &p.CreatorID, &p.Amount, &p.Currency, &p.Status, &p.Mode, &p.Provider, &p.ProviderRef,
		&p.ProcessedBy, &p.ProcessedAt, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *payoutRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payout) error {
	const q = `
INSERT INTO payouts (
  id, creator_id, amount, currency, status, mode, provider, provider_ref, processed_by, processed_at, notes, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.CreatorID, p.Amount, p.Currency, string(p.Status), string(p.Mode), p.Provider,
		p.ProviderRef, p.ProcessedBy, p.ProcessedAt, p.Notes, p.CreatedAt, p.UpdatedAt)
	return writeErr(err)
}

func (r *payoutRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Payout, error) {
	q := `SELECT ` + payoutCols + ` FROM payouts WHERE ` + where
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanPayout(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *payoutRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payout, error) {
	return r.findOne(ctx, tx, "id=$1", id)
}

func (r *payoutRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, providerRef string) (*model.Payout, error) {
	return r.findOne(ctx, tx, "provider_ref=$1 ORDER BY created_at DESC LIMIT 1", providerRef)
}

func (r *payoutRepo) List(ctx context.Context, tx repository.Tx, f model.PayoutFilter) ([]*model.Payout, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.CreatorID != "" {
		args = append(args, f.CreatorID)
		where = append(where, fmt.Sprintf("creator_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	q := `SELECT ` + payoutCols + ` FROM payouts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d;", len(args)-1, len(args))

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

// Transition applies tr in one conditional UPDATE and appends tr.Note to the
// audit trail.
func (r *payoutRepo) Transition(ctx context.Context, tx repository.Tx, id string, tr model.PayoutTransition) (bool, error) {
	if len(tr.From) == 0 {
		return false, domain.ErrInvalidArgument
	}
	from := make([]string, len(tr.From))
	for i, s := range tr.From {
		from[i] = string(s)
	}
	const q = `
UPDATE payouts
   SET status = $2,
       provider_ref = COALESCE($3, provider_ref),
       processed_by = COALESCE($4, processed_by),
       processed_at = CASE WHEN $4::TEXT IS NULL THEN processed_at ELSE $5 END,
       notes = CASE WHEN $6 = '' THEN notes
                    WHEN notes = '' THEN $6
                    ELSE notes || E'\n' || $6 END,
       updated_at = $5
 WHERE id = $1
   AND status = ANY($7)`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(tr.To), tr.ProviderRef, tr.ProcessedBy, tr.At, tr.Note, from)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *payoutRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, providerRef string) (bool, error) {
	if id == "" || providerRef == "" {
		return false, domain.ErrInvalidArgument
	}
	const q = `UPDATE payouts SET provider_ref = $2, updated_at = $3 WHERE id = $1 AND provider_ref IS NULL`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, providerRef, time.Now())
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *payoutRepo) SumReserved(ctx context.Context, tx repository.Tx, creatorID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0)::BIGINT FROM payouts WHERE creator_id=$1 AND status IN ('pending','processing','completed');`
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

// LockCreator takes a transaction-scoped advisory lock keyed by creator, so it
// must run inside WithTx.
func (r *payoutRepo) LockCreator(ctx context.Context, tx repository.Tx, creatorID string) error {
	if !inTx(tx) {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1)`, hashToInt64("payout:"+creatorID))
	return writeErr(err)
}
