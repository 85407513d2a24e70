package repository

import (
	"context"

	"video-monetization/internal/domain/model"
)

// ProductLookup resolves videos and bundles by tagged reference.
type ProductLookup interface {
	FindProduct(ctx context.Context, ref model.ProductRef) (*model.Product, error)
	IncrementSales(ctx context.Context, ref model.ProductRef) error
}
