package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"video-monetization/internal/infra/metrics"
	"video-monetization/internal/infra/worker"
)

// effects runs best-effort side effects on the worker pool. Failures are
// logged and counted but never reach the caller. A nil pool runs them inline.
type effects struct {
	pool *worker.Pool
	log  *zerolog.Logger
}

func (e effects) dispatch(kind string, fn func(ctx context.Context) error) {
	task := func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			metrics.IncSideEffect(kind, "failed")
			e.log.Warn().Err(err).Str("kind", kind).Msg("side effect failed")
			return nil
		}
		metrics.IncSideEffect(kind, "ok")
		return nil
	}
	if e.pool == nil {
		_ = task(context.Background())
		return
	}
	if err := e.pool.Submit(task); err != nil {
		metrics.IncSideEffect(kind, "dropped")
		e.log.Warn().Err(err).Str("kind", kind).Msg("side effect dropped")
	}
}
