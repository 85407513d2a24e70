//go:build !integration

package apiv1_test

import (
	"context"
	"net/http"
	"sync"
	"time"

	"video-monetization/internal/domain/model"
	"video-monetization/internal/usecase"
)

// Each mock embeds the use case interface so only the methods a test sets are
// callable; anything else panics loudly.

type mockPurchases struct {
	usecase.PurchaseUseCase
	InitializeFunc func(ctx context.Context, buyerID string, ref model.ProductRef) (*usecase.PurchaseSession, error)
	VerifyFunc     func(ctx context.Context, buyerID, reference string) (*usecase.PurchaseStatus, error)
	RefundFunc     func(ctx context.Context, reference, actor string) (*model.Transaction, error)
}

func (m *mockPurchases) InitializePurchase(ctx context.Context, buyerID string, ref model.ProductRef) (*usecase.PurchaseSession, error) {
	return m.InitializeFunc(ctx, buyerID, ref)
}
func (m *mockPurchases) VerifyPurchase(ctx context.Context, buyerID, reference string) (*usecase.PurchaseStatus, error) {
	return m.VerifyFunc(ctx, buyerID, reference)
}
func (m *mockPurchases) Refund(ctx context.Context, reference, actor string) (*model.Transaction, error) {
	return m.RefundFunc(ctx, reference, actor)
}

type mockPayouts struct {
	usecase.PayoutUseCase
	BalanceFunc func(ctx context.Context, creatorID string) (int64, error)
	RequestFunc func(ctx context.Context, creatorID string, amount int64) (*model.Payout, error)
	ApproveFunc func(ctx context.Context, id, actor string) (*model.Payout, error)
	RejectFunc  func(ctx context.Context, id, actor, reason string) (*model.Payout, error)
	ListFunc    func(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, error)
}

func (m *mockPayouts) AvailableBalance(ctx context.Context, creatorID string) (int64, error) {
	return m.BalanceFunc(ctx, creatorID)
}
func (m *mockPayouts) RequestPayout(ctx context.Context, creatorID string, amount int64) (*model.Payout, error) {
	return m.RequestFunc(ctx, creatorID, amount)
}
func (m *mockPayouts) Approve(ctx context.Context, id, actor string) (*model.Payout, error) {
	return m.ApproveFunc(ctx, id, actor)
}
func (m *mockPayouts) Reject(ctx context.Context, id, actor, reason string) (*model.Payout, error) {
	return m.RejectFunc(ctx, id, actor, reason)
}
func (m *mockPayouts) List(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, error) {
	return m.ListFunc(ctx, f)
}

type mockWebhooks struct {
	HandleFunc func(ctx context.Context, providerKey string, header http.Header, body []byte) (usecase.WebhookResult, error)
}

func (m *mockWebhooks) Handle(ctx context.Context, providerKey string, header http.Header, body []byte) (usecase.WebhookResult, error) {
	return m.HandleFunc(ctx, providerKey, header, body)
}

type mockBanks struct {
	ListFunc    func(ctx context.Context) ([]model.Bank, error)
	ResolveFunc func(ctx context.Context, accountNumber, bankCode string) (string, error)
}

func (m *mockBanks) GetBankList(ctx context.Context) ([]model.Bank, error) { return m.ListFunc(ctx) }
func (m *mockBanks) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	return m.ResolveFunc(ctx, accountNumber, bankCode)
}

type mockSettings struct {
	GetFunc    func(ctx context.Context) (*model.PlatformSettings, error)
	UpdateFunc func(ctx context.Context, s *model.PlatformSettings, actor string) (*model.PlatformSettings, error)
}

func (m *mockSettings) Get(ctx context.Context) (*model.PlatformSettings, error) { return m.GetFunc(ctx) }
func (m *mockSettings) Update(ctx context.Context, s *model.PlatformSettings, actor string) (*model.PlatformSettings, error) {
	return m.UpdateFunc(ctx, s, actor)
}

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	mu   sync.Mutex
	n    int
	seen map[string]int
	err  error
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	return l.seen[key] <= l.n, nil
}
