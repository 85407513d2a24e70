package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/repository"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

type SettingsUseCase interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
	// Update switches providers, payout mode or commission rate. Provider keys
	// must be registered; existing transactions keep their pinned provider.
	Update(ctx context.Context, s *model.PlatformSettings, actor string) (*model.PlatformSettings, error)
}

type settingsUC struct {
	store  repository.SettingsStore
	router *GatewayRouter
	log    *zerolog.Logger
}

func NewSettingsUseCase(store repository.SettingsStore, router *GatewayRouter, logger *zerolog.Logger) *settingsUC {
	return &settingsUC{store: store, router: router, log: logger}
}

func (u *settingsUC) Get(ctx context.Context) (*model.PlatformSettings, error) {
	return u.router.Settings(ctx)
}

func (u *settingsUC) Update(ctx context.Context, s *model.PlatformSettings, actor string) (*model.PlatformSettings, error) {
	if s == nil || actor == "" {
		return nil, domain.ErrInvalidArgument
	}
	next := *s
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	for _, key := range []string{next.IncomingProvider, next.PayoutProvider} {
		if !u.router.Has(key) {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnconfiguredProvider, key)
		}
	}
	next.UpdatedAt = time.Now()
	next.UpdatedBy = actor
	if err := u.store.Update(ctx, &next); err != nil {
		return nil, err
	}
	u.log.Info().
		Str("actor", actor).
		Str("incoming_provider", next.IncomingProvider).
		Str("payout_provider", next.PayoutProvider).
		Str("payout_mode", string(next.PayoutMode)).
		Float64("commission_rate", next.CommissionRate).
		Msg("platform settings updated")
	return &next, nil
}
