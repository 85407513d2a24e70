package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
)

const SandboxKey = "sandbox"

var _ adapter.PaymentProvider = (*SandboxProvider)(nil)

// SandboxProvider is an in-memory provider for local runs and tests. Charges
// stay pending until CompleteCharge or FailCharge is called; transfers settle
// immediately unless FailTransfers is set.
type SandboxProvider struct {
	mu            sync.Mutex
	seq           int64
	secret        string
	charges       map[string]*sandboxCharge // reference -> charge
	transfers     map[string]adapter.TransferStatus
	FailTransfers bool
}

type sandboxCharge struct {
	amount int64
	status adapter.ChargeStatus
	txID   string
}

func NewSandboxProvider(webhookSecret string) *SandboxProvider {
	return &SandboxProvider{
		secret:    webhookSecret,
		charges:   make(map[string]*sandboxCharge),
		transfers: make(map[string]adapter.TransferStatus),
	}
}

func (g *SandboxProvider) Name() string { return SandboxKey }

func (g *SandboxProvider) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *SandboxProvider) InitializeCharge(_ context.Context, r adapter.ChargeRequest) (adapter.ChargeSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Amount <= 0 {
		return adapter.ChargeSession{}, &ProviderError{Provider: SandboxKey, Op: "initialize", Message: "amount must be positive", Kind: domain.ErrProviderRejected}
	}
	g.charges[r.Reference] = &sandboxCharge{amount: r.Amount, status: adapter.ChargePending}
	return adapter.ChargeSession{CheckoutURL: "https://sandbox.test/pay/" + r.Reference, ProviderRef: r.Reference}, nil
}

func (g *SandboxProvider) VerifyCharge(_ context.Context, reference string) (adapter.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[reference]
	if !ok {
		return adapter.ChargeResult{}, &ProviderError{Provider: SandboxKey, Op: "verify", StatusCode: http.StatusNotFound, Message: "unknown reference", Kind: domain.ErrProviderRejected}
	}
	return adapter.ChargeResult{Status: c.status, Amount: c.amount, ProviderTransactionID: c.txID}, nil
}

// CompleteCharge marks a charge paid. A non-positive amount keeps the amount
// the charge was opened with.
func (g *SandboxProvider) CompleteCharge(reference string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[reference]
	if !ok {
		return
	}
	if amount > 0 {
		c.amount = amount
	}
	c.status = adapter.ChargeSucceeded
	c.txID = g.next("sbx-tx")
}

func (g *SandboxProvider) FailCharge(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.charges[reference]; ok {
		c.status = adapter.ChargeFailed
	}
}

func (g *SandboxProvider) ListBanks(context.Context) ([]model.Bank, error) {
	return []model.Bank{{Code: "000", Name: "Sandbox Bank"}}, nil
}

func (g *SandboxProvider) ResolveBankAccount(_ context.Context, accountNumber, bankCode string) (string, error) {
	if len(accountNumber) != 10 || bankCode == "" {
		return "", fmt.Errorf("%w: sandbox: unknown account", domain.ErrAccountResolutionFailed)
	}
	return "Sandbox Account " + accountNumber[6:], nil
}

func (g *SandboxProvider) CreateRecipient(_ context.Context, bank model.BankDetails) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next("sbx-rcp"), nil
}

func (g *SandboxProvider) InitiateTransfer(_ context.Context, r adapter.TransferRequest) (adapter.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailTransfers {
		return adapter.TransferResult{}, &ProviderError{Provider: SandboxKey, Op: "transfer", StatusCode: http.StatusBadRequest, Message: "transfers disabled", Kind: domain.ErrProviderRejected}
	}
	ref := g.next("sbx-trf")
	g.transfers[ref] = adapter.TransferSucceeded
	return adapter.TransferResult{ProviderRef: ref, Status: adapter.TransferSucceeded}, nil
}

func (g *SandboxProvider) TransferStatus(_ context.Context, providerRef string) (adapter.TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.transfers[providerRef]
	if !ok {
		return adapter.TransferResult{}, &ProviderError{Provider: SandboxKey, Op: "transfer_status", StatusCode: http.StatusNotFound, Message: "unknown transfer", Kind: domain.ErrProviderRejected}
	}
	return adapter.TransferResult{ProviderRef: providerRef, Status: st}, nil
}

// SandboxSignature signs a body the way ParseWebhook expects it.
func SandboxSignature(secret string, body []byte) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

// ParseWebhook accepts {"type", "reference", "amount", "transfer_ref"} bodies
// signed in X-Sandbox-Signature. The type is already in the internal taxonomy.
func (g *SandboxProvider) ParseWebhook(_ context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	sig := header.Get("X-Sandbox-Signature")
	if g.secret == "" || !hmac.Equal([]byte(sig), []byte(SandboxSignature(g.secret, body))) {
		return adapter.WebhookEvent{}, domain.ErrInvalidSignature
	}
	var evt struct {
		Type        string `json:"type"`
		Reference   string `json:"reference"`
		Amount      int64  `json:"amount"`
		TransferRef string `json:"transfer_ref"`
		PayoutID    string `json:"payout_id"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: decode sandbox event: %v", domain.ErrValidation, err)
	}
	out := adapter.WebhookEvent{
		Provider:    SandboxKey,
		Raw:         evt.Type,
		Type:        adapter.WebhookEventType(evt.Type),
		Reference:   evt.Reference,
		Amount:      evt.Amount,
		TransferRef: evt.TransferRef,
		PayoutID:    evt.PayoutID,
		Message:     evt.Message,
	}
	switch out.Type {
	case adapter.EventChargeSucceeded, adapter.EventChargeFailed,
		adapter.EventTransferSucceeded, adapter.EventTransferFailed, adapter.EventTransferReversed:
	default:
		out.Type = adapter.EventIgnored
	}
	return out, nil
}
