package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
	"video-monetization/internal/domain/ports/repository"
)

// GatewayRouter selects payment providers by key. The incoming and payout
// selections come from platform settings, read fresh on every call, so an
// admin switch takes effect for the next operation without a restart.
type GatewayRouter struct {
	providers map[string]adapter.PaymentProvider
	settings  repository.SettingsStore
}

func NewGatewayRouter(settings repository.SettingsStore, providers ...adapter.PaymentProvider) *GatewayRouter {
	m := make(map[string]adapter.PaymentProvider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		m[strings.ToLower(p.Name())] = p
	}
	return &GatewayRouter{providers: m, settings: settings}
}

// Keys lists registered provider keys in sorted order.
func (r *GatewayRouter) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *GatewayRouter) Has(key string) bool {
	_, ok := r.providers[strings.ToLower(key)]
	return ok
}

// ByKey returns the provider registered under key. Errors from the returned
// provider are prefixed with the key.
func (r *GatewayRouter) ByKey(key string) (adapter.PaymentProvider, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	p, ok := r.providers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnconfiguredProvider, key)
	}
	return boundProvider{key: key, inner: p}, nil
}

// Settings returns the current platform settings.
func (r *GatewayRouter) Settings(ctx context.Context) (*model.PlatformSettings, error) {
	s, err := r.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load platform settings: %w", err)
	}
	s.Normalize()
	return s, nil
}

// ActiveIncoming returns the provider new charges must use, with its key.
func (r *GatewayRouter) ActiveIncoming(ctx context.Context) (adapter.PaymentProvider, string, error) {
	s, err := r.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	p, err := r.ByKey(s.IncomingProvider)
	if err != nil {
		return nil, "", err
	}
	return p, s.IncomingProvider, nil
}

// ActivePayout returns the provider used for bank lookups and transfers, with its key.
func (r *GatewayRouter) ActivePayout(ctx context.Context) (adapter.PaymentProvider, string, error) {
	s, err := r.Settings(ctx)
	if err != nil {
		return nil, "", err
	}
	p, err := r.ByKey(s.PayoutProvider)
	if err != nil {
		return nil, "", err
	}
	return p, s.PayoutProvider, nil
}

// boundProvider annotates every error with the provider key it came from.
type boundProvider struct {
	key   string
	inner adapter.PaymentProvider
}

var _ adapter.PaymentProvider = boundProvider{}

func (b boundProvider) wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", b.key, err)
}

func (b boundProvider) Name() string { return b.key }

func (b boundProvider) InitializeCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeSession, error) {
	s, err := b.inner.InitializeCharge(ctx, req)
	return s, b.wrap(err)
}

func (b boundProvider) VerifyCharge(ctx context.Context, reference string) (adapter.ChargeResult, error) {
	res, err := b.inner.VerifyCharge(ctx, reference)
	return res, b.wrap(err)
}

func (b boundProvider) ListBanks(ctx context.Context) ([]model.Bank, error) {
	banks, err := b.inner.ListBanks(ctx)
	return banks, b.wrap(err)
}

func (b boundProvider) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	name, err := b.inner.ResolveBankAccount(ctx, accountNumber, bankCode)
	return name, b.wrap(err)
}

func (b boundProvider) CreateRecipient(ctx context.Context, bank model.BankDetails) (string, error) {
	rcp, err := b.inner.CreateRecipient(ctx, bank)
	return rcp, b.wrap(err)
}

func (b boundProvider) InitiateTransfer(ctx context.Context, req adapter.TransferRequest) (adapter.TransferResult, error) {
	res, err := b.inner.InitiateTransfer(ctx, req)
	return res, b.wrap(err)
}

func (b boundProvider) TransferStatus(ctx context.Context, providerRef string) (adapter.TransferResult, error) {
	res, err := b.inner.TransferStatus(ctx, providerRef)
	return res, b.wrap(err)
}

func (b boundProvider) ParseWebhook(ctx context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	evt, err := b.inner.ParseWebhook(ctx, header, body)
	return evt, b.wrap(err)
}
