package model

import (
	"time"

	"video-monetization/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"    // checkout opened; awaiting provider confirmation
	TransactionStatusSuccessful TransactionStatus = "successful" // confirmed by verify or webhook; split computed
	TransactionStatusFailed     TransactionStatus = "failed"     // provider reported failure
	TransactionStatusRefunded   TransactionStatus = "refunded"   // administrative override after success
)

// IsTerminal reports whether no automated transition may leave this status.
func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionStatusPending
}

// Transaction records one purchase attempt of a product by a buyer.
type Transaction struct {
	ID              string            // UUID
	Reference       string            // internal reference, unique and client visible
	ProviderRef     *string           // provider transaction id, set on confirmation
	CheckoutRef     string            // provider checkout handle used to verify; empty means Reference
	BuyerID         string            // purchasing user
	CreatorID       string            // receiving creator
	Product         ProductRef        // video or bundle
	ProductTitle    string            // snapshot at purchase time
	ProductSlug     string            // snapshot at purchase time
	GrossAmount     int64             // minor units
	Commission      int64             // minor units, zero while pending
	CreatorEarnings int64             // minor units, zero while pending
	Currency        string            // e.g. NGN, USD
	Status          TransactionStatus // see constants above
	Provider        string            // adapter key pinned at creation
	AmountMismatch  bool              // provider amount differed from GrossAmount at confirmation
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
}

// NewPendingTransaction builds a pending transaction for product bought by buyerID.
func NewPendingTransaction(id, reference, buyerID string, product *Product, provider string) (*Transaction, error) {
	if id == "" || reference == "" || buyerID == "" || provider == "" || product == nil {
		return nil, domain.ErrInvalidArgument
	}
	if product.Price <= 0 {
		return nil, domain.ErrValidation
	}
	now := time.Now()
	return &Transaction{
		ID:           id,
		Reference:    reference,
		BuyerID:      buyerID,
		CreatorID:    product.CreatorID,
		Product:      product.Ref,
		ProductTitle: product.Title,
		ProductSlug:  product.Slug,
		GrossAmount:  product.Price,
		Currency:     product.Currency,
		Status:       TransactionStatusPending,
		Provider:     provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// VerifyRef is the handle the pinned provider verifies this transaction by.
func (t *Transaction) VerifyRef() string {
	if t.CheckoutRef != "" {
		return t.CheckoutRef
	}
	return t.Reference
}

// Settlement is the result of splitting a confirmed gross amount.
// Commission + CreatorEarnings always equals Gross.
type Settlement struct {
	ProviderRef     string
	Gross           int64
	Commission      int64
	CreatorEarnings int64
	AmountMismatch  bool
	PaidAt          time.Time
}
