package adapter

import (
	"context"
	"net/http"

	"video-monetization/internal/domain/model"
)

// NoRecipient is returned by providers that transfer straight to bank details
// and have no recipient object.
const NoRecipient = "-"

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "success"
	ChargeFailed    ChargeStatus = "failed"
	ChargePending   ChargeStatus = "pending"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSucceeded TransferStatus = "success"
	TransferFailed    TransferStatus = "failed"
	TransferReversed  TransferStatus = "reversed"
)

func (s TransferStatus) Terminal() bool {
	return s == TransferSucceeded || s == TransferFailed || s == TransferReversed
}

// ChargeRequest opens a checkout for a pending transaction.
type ChargeRequest struct {
	Email       string
	Amount      int64 // minor units
	Currency    string
	Reference   string // internal reference
	CallbackURL string
	Product     model.ProductRef
	Title       string
}

type ChargeSession struct {
	CheckoutURL string
	ProviderRef string // provider's handle for the checkout, may equal Reference
}

type ChargeResult struct {
	Status                ChargeStatus
	Amount                int64 // minor units as reported by the provider
	Currency              string
	ProviderTransactionID string
	Message               string
}

type TransferRequest struct {
	Amount    int64 // minor units
	Currency  string
	Recipient string // provider recipient handle or NoRecipient
	PayoutID  string // used as the idempotency reference where supported
	Reason    string
	Bank      model.BankDetails
}

type TransferResult struct {
	ProviderRef string
	Status      TransferStatus
	Message     string
}

type WebhookEventType string

const (
	EventChargeSucceeded   WebhookEventType = "charge.succeeded"
	EventChargeFailed      WebhookEventType = "charge.failed"
	EventTransferSucceeded WebhookEventType = "transfer.succeeded"
	EventTransferFailed    WebhookEventType = "transfer.failed"
	EventTransferReversed  WebhookEventType = "transfer.reversed"
	EventIgnored           WebhookEventType = "ignored"
)

// WebhookEvent is a provider notification after signature verification,
// normalized to the internal taxonomy.
type WebhookEvent struct {
	Provider string
	Type     WebhookEventType
	Raw      string // provider event name, for logs

	// Charge events
	Reference             string // internal transaction reference
	Amount                int64
	ProviderTransactionID string

	// Transfer events
	TransferRef string // provider transfer reference
	PayoutID    string // our payout id, when the provider echoes it back
	Message     string
}

// PaymentProvider is the hex port every payment/payout gateway implements.
type PaymentProvider interface {
	Name() string

	InitializeCharge(ctx context.Context, req ChargeRequest) (ChargeSession, error)
	// VerifyCharge is read-only against the provider and safe to repeat.
	VerifyCharge(ctx context.Context, reference string) (ChargeResult, error)

	ListBanks(ctx context.Context) ([]model.Bank, error)
	ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (accountName string, err error)

	CreateRecipient(ctx context.Context, bank model.BankDetails) (recipient string, err error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	TransferStatus(ctx context.Context, providerRef string) (TransferResult, error)

	// ParseWebhook checks the signature before looking at the payload and
	// returns domain.ErrInvalidSignature on mismatch.
	ParseWebhook(ctx context.Context, header http.Header, body []byte) (WebhookEvent, error)
}
