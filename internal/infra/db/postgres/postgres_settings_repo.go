package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

var _ repository.SettingsStore = (*settingsRepo)(nil)

type settingsRepo struct{ pool *pgxpool.Pool }

func NewSettingsRepo(pool *pgxpool.Pool) *settingsRepo {
	return &settingsRepo{pool: pool}
}

// Get reads the singleton row. It is never cached so a provider switch takes
// effect on the next call.
func (r *settingsRepo) Get(ctx context.Context) (*model.PlatformSettings, error) {
	const q = `
SELECT incoming_provider, payout_provider, payout_mode, commission_rate::FLOAT8, updated_at, updated_by
  FROM platform_settings WHERE id=1;`
	row, err := pickRow(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	var s model.PlatformSettings
	if err := row.Scan(&s.IncomingProvider, &s.PayoutProvider, &s.PayoutMode, &s.CommissionRate, &s.UpdatedAt, &s.UpdatedBy); err != nil {
		return nil, scanErr(err)
	}
	return &s, nil
}

func (r *settingsRepo) Update(ctx context.Context, s *model.PlatformSettings) error {
	const q = `
INSERT INTO platform_settings (id, incoming_provider, payout_provider, payout_mode, commission_rate, updated_at, updated_by)
VALUES (1,$1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  incoming_provider=EXCLUDED.incoming_provider, payout_provider=EXCLUDED.payout_provider,
  payout_mode=EXCLUDED.payout_mode, commission_rate=EXCLUDED.commission_rate,
  updated_at=EXCLUDED.updated_at, updated_by=EXCLUDED.updated_by;`
	_, err := execSQL(ctx, r.pool, nil, q, s.IncomingProvider, s.PayoutProvider, string(s.PayoutMode), s.CommissionRate, s.UpdatedAt, s.UpdatedBy)
	return writeErr(err)
}

// Seed writes s only when no settings row exists yet. It reports whether it did.
func (r *settingsRepo) Seed(ctx context.Context, s *model.PlatformSettings) (bool, error) {
	const q = `
INSERT INTO platform_settings (id, incoming_provider, payout_provider, payout_mode, commission_rate, updated_at, updated_by)
VALUES (1,$1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, nil, q, s.IncomingProvider, s.PayoutProvider, string(s.PayoutMode), s.CommissionRate, s.UpdatedAt, s.UpdatedBy)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}
