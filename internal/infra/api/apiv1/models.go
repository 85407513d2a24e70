package apiv1

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"video-monetization/internal/domain/model"
	"video-monetization/internal/usecase"
)

var accountNumberRE = regexp.MustCompile(`^[0-9]{10}$`)

// ----- requests -----

type InitializePurchaseRequest struct {
	ProductKind string `json:"product_kind"`
	ProductID   string `json:"product_id"`
}

func (r InitializePurchaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductKind, validation.Required, validation.In(string(model.ProductKindVideo), string(model.ProductKindBundle))),
		validation.Field(&r.ProductID, validation.Required, validation.Length(1, 64)),
	)
}

type ResolveBankRequest struct {
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

func (r ResolveBankRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccountNumber, validation.Required, validation.Match(accountNumberRE).Error("must be 10 digits")),
		validation.Field(&r.BankCode, validation.Required),
	)
}

type PayoutRequest struct {
	Amount int64 `json:"amount"` // minor units
}

func (r PayoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Amount, validation.Required, validation.Min(int64(1))),
	)
}

type RejectPayoutRequest struct {
	Reason string `json:"reason"`
}

func (r RejectPayoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

type SettingsRequest struct {
	IncomingProvider string   `json:"incoming_provider"`
	PayoutProvider   string   `json:"payout_provider"`
	PayoutMode       string   `json:"payout_mode"`
	CommissionRate   *float64 `json:"commission_rate"`
}

func (r SettingsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IncomingProvider, validation.Required),
		validation.Field(&r.PayoutProvider, validation.Required),
		validation.Field(&r.PayoutMode, validation.Required, validation.In(string(model.PayoutModeManual), string(model.PayoutModeAutomatic))),
		validation.Field(&r.CommissionRate, validation.NotNil, validation.Min(0.0), validation.Max(1.0).Exclusive()),
	)
}

// ----- responses -----

type PurchaseSession struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
	Provider    string `json:"provider"`
}

func toPurchaseSession(s *usecase.PurchaseSession) PurchaseSession {
	return PurchaseSession{Reference: s.Reference, CheckoutURL: s.CheckoutURL, Provider: s.Provider}
}

type PurchaseStatus struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	ProductKind string `json:"product_kind"`
	ProductID   string `json:"product_id"`
	ProductSlug string `json:"product_slug,omitempty"`
}

func toPurchaseStatus(s *usecase.PurchaseStatus) PurchaseStatus {
	return PurchaseStatus{
		Reference:   s.Reference,
		Status:      string(s.Status),
		ProductKind: string(s.Product.Kind),
		ProductID:   s.Product.ID,
		ProductSlug: s.ProductSlug,
	}
}

type Transaction struct {
	Reference       string     `json:"reference"`
	Status          string     `json:"status"`
	Provider        string     `json:"provider"`
	BuyerID         string     `json:"buyer_id"`
	CreatorID       string     `json:"creator_id"`
	GrossAmount     int64      `json:"gross_amount"`
	Commission      int64      `json:"commission"`
	CreatorEarnings int64      `json:"creator_earnings"`
	Currency        string     `json:"currency"`
	AmountMismatch  bool       `json:"amount_mismatch"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

func toTransaction(t *model.Transaction) Transaction {
	return Transaction{
		Reference:       t.Reference,
		Status:          string(t.Status),
		Provider:        t.Provider,
		BuyerID:         t.BuyerID,
		CreatorID:       t.CreatorID,
		GrossAmount:     t.GrossAmount,
		Commission:      t.Commission,
		CreatorEarnings: t.CreatorEarnings,
		Currency:        t.Currency,
		AmountMismatch:  t.AmountMismatch,
		PaidAt:          t.PaidAt,
	}
}

type Payout struct {
	ID          string     `json:"id"`
	CreatorID   string     `json:"creator_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Mode        string     `json:"mode"`
	Provider    string     `json:"provider,omitempty"`
	ProviderRef *string    `json:"provider_ref,omitempty"`
	ProcessedBy *string    `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPayout(p *model.Payout) Payout {
	return Payout{
		ID:          p.ID,
		CreatorID:   p.CreatorID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		Mode:        string(p.Mode),
		Provider:    p.Provider,
		ProviderRef: p.ProviderRef,
		ProcessedBy: p.ProcessedBy,
		ProcessedAt: p.ProcessedAt,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
	}
}

func toPayouts(in []*model.Payout) []Payout {
	out := make([]Payout, 0, len(in))
	for _, p := range in {
		out = append(out, toPayout(p))
	}
	return out
}

type Settings struct {
	IncomingProvider string    `json:"incoming_provider"`
	PayoutProvider   string    `json:"payout_provider"`
	PayoutMode       string    `json:"payout_mode"`
	CommissionRate   float64   `json:"commission_rate"`
	UpdatedAt        time.Time `json:"updated_at"`
	UpdatedBy        string    `json:"updated_by,omitempty"`
}

func toSettings(s *model.PlatformSettings) Settings {
	return Settings{
		IncomingProvider: s.IncomingProvider,
		PayoutProvider:   s.PayoutProvider,
		PayoutMode:       string(s.PayoutMode),
		CommissionRate:   s.CommissionRate,
		UpdatedAt:        s.UpdatedAt,
		UpdatedBy:        s.UpdatedBy,
	}
}

type Balance struct {
	CreatorID string `json:"creator_id"`
	Available int64  `json:"available"`
	Currency  string `json:"currency"`
}

type AccountName struct {
	AccountName string `json:"account_name"`
}

type ErrorBody struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Fields  interface{} `json:"fields,omitempty"`
	Payout  *Payout     `json:"payout,omitempty"`
}
