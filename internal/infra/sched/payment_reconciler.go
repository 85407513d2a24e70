package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PendingVerifier re-verifies stale pending transactions with their pinned provider.
type PendingVerifier interface {
	ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// PaymentReconciler periodically scans for stale pending transactions and asks
// the purchase use case to verify them. This covers checkouts whose webhook never
// arrived or whose buyer never returned to the verify page.
type PaymentReconciler struct {
	uc         PendingVerifier
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending transaction must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc PendingVerifier, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &PaymentReconciler{uc: uc, interval: interval, staleAfter: staleAfter, batch: batch, log: logger}
}

// Start blocks until ctx is cancelled.
func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	checked, err := w.uc.ReconcilePending(ctx, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Int("checked", checked).Msg("payment-reconciler: scan failed")
		return
	}
	if checked > 0 {
		w.log.Info().Int("checked", checked).Time("cutoff", cutoff).Msg("payment-reconciler: re-verified stale transactions")
	}
}
