package repository

import (
	"context"

	"video-monetization/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	SaveRecipientCode(ctx context.Context, userID, provider, code string) error
}
