package repository

import (
	"context"

	"video-monetization/internal/domain/model"
)

// SettingsStore holds the mutable platform provider configuration.
type SettingsStore interface {
	Get(ctx context.Context) (*model.PlatformSettings, error)
	Update(ctx context.Context, s *model.PlatformSettings) error
}
