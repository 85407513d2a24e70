package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-monetization/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*notificationRepo)(nil)

// notificationRepo stores in-app notifications; the web client polls them.
type notificationRepo struct{ pool *pgxpool.Pool }

func NewNotificationRepo(pool *pgxpool.Pool) *notificationRepo {
	return &notificationRepo{pool: pool}
}

func (r *notificationRepo) Notify(ctx context.Context, userID, kind, message, link string) error {
	const q = `INSERT INTO notifications (id, user_id, kind, message, link, created_at) VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, nil, q, uuid.NewString(), userID, kind, message, link, time.Now())
	return writeErr(err)
}
