package payment

import (
	"context"
	"sync/atomic"

	"video-monetization/internal/domain/model"
	"video-monetization/internal/infra/metrics"
)

// bankCache holds a provider's bank directory for the life of the process.
// Concurrent fills race harmlessly: the data is identical and the last store wins.
type bankCache struct {
	provider string
	banks    atomic.Pointer[[]model.Bank]
}

func (c *bankCache) load(ctx context.Context, fetch func(ctx context.Context) ([]model.Bank, error)) ([]model.Bank, error) {
	if p := c.banks.Load(); p != nil {
		metrics.ObserveCacheLookup("banks:"+c.provider, true)
		return *p, nil
	}
	metrics.ObserveCacheLookup("banks:"+c.provider, false)
	banks, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(banks) > 0 {
		c.banks.Store(&banks)
	}
	return banks, nil
}
