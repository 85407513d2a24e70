package payment

import (
	"context"
	"sync"
	"time"
)

// tokenEntry is a bearer token with its expiry.
type tokenEntry struct {
	value     string
	expiresAt time.Time
}

// tokenCache refreshes a provider access token on miss or expiry.
// The mutex only guards the entry; it is never held across the refresh call,
// so two callers may refresh concurrently and the later one wins.
type tokenCache struct {
	mu    sync.Mutex
	entry tokenEntry
	skew  time.Duration
	now   func() time.Time
}

func newTokenCache(skew time.Duration) *tokenCache {
	return &tokenCache{skew: skew, now: time.Now}
}

func (c *tokenCache) get(ctx context.Context, refresh func(ctx context.Context) (tokenEntry, error)) (string, error) {
	c.mu.Lock()
	e := c.entry
	c.mu.Unlock()
	if e.value != "" && c.now().Add(c.skew).Before(e.expiresAt) {
		return e.value, nil
	}

	fresh, err := refresh(ctx)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entry = fresh
	c.mu.Unlock()
	return fresh.value, nil
}

func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.entry = tokenEntry{}
	c.mu.Unlock()
}
