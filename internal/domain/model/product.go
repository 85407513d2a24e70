package model

import (
	"strings"

	"video-monetization/internal/domain"
)

type ProductKind string

const (
	ProductKindVideo  ProductKind = "video"
	ProductKindBundle ProductKind = "bundle"
)

// ProductRef is a tagged reference to a purchasable product.
type ProductRef struct {
	Kind ProductKind
	ID   string
}

func ParseProductRef(kind, id string) (ProductRef, error) {
	k := ProductKind(strings.ToLower(strings.TrimSpace(kind)))
	if k != ProductKindVideo && k != ProductKindBundle {
		return ProductRef{}, domain.ErrValidation
	}
	if strings.TrimSpace(id) == "" {
		return ProductRef{}, domain.ErrValidation
	}
	return ProductRef{Kind: k, ID: id}, nil
}

func (r ProductRef) String() string { return string(r.Kind) + ":" + r.ID }

// Product is the view of a video or bundle the ledger needs.
type Product struct {
	Ref       ProductRef
	Price     int64 // minor units
	Currency  string
	Title     string
	CreatorID string
	Slug      string
}
