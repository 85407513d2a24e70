//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
	"video-monetization/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentProvider ----

type MockProvider struct {
	NameVal string

	InitializeChargeFunc   func(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeSession, error)
	VerifyChargeFunc       func(ctx context.Context, reference string) (adapter.ChargeResult, error)
	ListBanksFunc          func(ctx context.Context) ([]model.Bank, error)
	ResolveBankAccountFunc func(ctx context.Context, accountNumber, bankCode string) (string, error)
	CreateRecipientFunc    func(ctx context.Context, bank model.BankDetails) (string, error)
	InitiateTransferFunc   func(ctx context.Context, req adapter.TransferRequest) (adapter.TransferResult, error)
	TransferStatusFunc     func(ctx context.Context, providerRef string) (adapter.TransferResult, error)
	ParseWebhookFunc       func(ctx context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error)

	mu        sync.Mutex
	Charges   []adapter.ChargeRequest
	Transfers []adapter.TransferRequest
	Verifies  []string
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockProvider) InitializeCharge(ctx context.Context, req adapter.ChargeRequest) (adapter.ChargeSession, error) {
	m.mu.Lock()
	m.Charges = append(m.Charges, req)
	m.mu.Unlock()
	if m.InitializeChargeFunc != nil {
		return m.InitializeChargeFunc(ctx, req)
	}
	return adapter.ChargeSession{CheckoutURL: "https://pay.example/" + req.Reference, ProviderRef: req.Reference}, nil
}

func (m *MockProvider) VerifyCharge(ctx context.Context, reference string) (adapter.ChargeResult, error) {
	m.mu.Lock()
	m.Verifies = append(m.Verifies, reference)
	m.mu.Unlock()
	if m.VerifyChargeFunc != nil {
		return m.VerifyChargeFunc(ctx, reference)
	}
	return adapter.ChargeResult{Status: adapter.ChargePending}, nil
}

func (m *MockProvider) ListBanks(ctx context.Context) ([]model.Bank, error) {
	if m.ListBanksFunc != nil {
		return m.ListBanksFunc(ctx)
	}
	return []model.Bank{{Code: "058", Name: "GTBank"}}, nil
}

func (m *MockProvider) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	if m.ResolveBankAccountFunc != nil {
		return m.ResolveBankAccountFunc(ctx, accountNumber, bankCode)
	}
	return "TEST ACCOUNT", nil
}

func (m *MockProvider) CreateRecipient(ctx context.Context, bank model.BankDetails) (string, error) {
	if m.CreateRecipientFunc != nil {
		return m.CreateRecipientFunc(ctx, bank)
	}
	return "RCP-" + bank.AccountNumber, nil
}

func (m *MockProvider) InitiateTransfer(ctx context.Context, req adapter.TransferRequest) (adapter.TransferResult, error) {
	m.mu.Lock()
	m.Transfers = append(m.Transfers, req)
	m.mu.Unlock()
	if m.InitiateTransferFunc != nil {
		return m.InitiateTransferFunc(ctx, req)
	}
	return adapter.TransferResult{ProviderRef: "TRF-" + req.PayoutID, Status: adapter.TransferPending}, nil
}

func (m *MockProvider) TransferStatus(ctx context.Context, providerRef string) (adapter.TransferResult, error) {
	if m.TransferStatusFunc != nil {
		return m.TransferStatusFunc(ctx, providerRef)
	}
	return adapter.TransferResult{ProviderRef: providerRef, Status: adapter.TransferPending}, nil
}

func (m *MockProvider) ParseWebhook(ctx context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(ctx, header, body)
	}
	return adapter.WebhookEvent{}, domain.ErrInvalidSignature
}

func (m *MockProvider) chargeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Charges)
}

func (m *MockProvider) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Transfers)
}

// ---- Mock Notifier ----

type sentNotification struct {
	UserID, Kind, Message, Link string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentNotification

	NotifyFunc func(ctx context.Context, userID, kind, message, link string) error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) Notify(ctx context.Context, userID, kind, message, link string) error {
	n.mu.Lock()
	n.Sent = append(n.Sent, sentNotification{userID, kind, message, link})
	n.mu.Unlock()
	if n.NotifyFunc != nil {
		return n.NotifyFunc(ctx, userID, kind, message, link)
	}
	return nil
}

func (n *MockNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.Sent))
	for _, s := range n.Sent {
		out = append(out, s.Kind)
	}
	sort.Strings(out)
	return out
}

// =============================
// Repositories
// =============================

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Transaction // by id
	byRef map[string]string             // reference -> id

	SaveFunc                    func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	MarkSuccessfulIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, s model.Settlement) (bool, error)
	SumCreatorEarningsFunc      func(ctx context.Context, tx repository.Tx, creatorID string) (int64, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{data: map[string]*model.Transaction{}, byRef: map[string]string{}}
}

func (r *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byRef[t.Reference]; dup {
		return domain.ErrAlreadyExists
	}
	cp := *t
	r.data[t.ID] = &cp
	r.byRef[t.Reference] = t.ID
	return nil
}

// Seed stores t as-is, bypassing Save hooks.
func (r *MockTransactionRepo) Seed(t *model.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.data[t.ID] = &cp
	r.byRef[t.Reference] = t.ID
}

func (r *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MockTransactionRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Transaction, error) {
	r.mu.Lock()
	id, ok := r.byRef[reference]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, tx, id)
}

func (r *MockTransactionRepo) SetCheckoutRef(ctx context.Context, tx repository.Tx, id, checkoutRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.CheckoutRef = checkoutRef
	return nil
}

func (r *MockTransactionRepo) MarkSuccessfulIfPending(ctx context.Context, tx repository.Tx, id string, s model.Settlement) (bool, error) {
	if r.MarkSuccessfulIfPendingFunc != nil {
		return r.MarkSuccessfulIfPendingFunc(ctx, tx, id, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = model.TransactionStatusSuccessful
	t.GrossAmount = s.Gross
	t.Commission = s.Commission
	t.CreatorEarnings = s.CreatorEarnings
	t.AmountMismatch = s.AmountMismatch
	ref := s.ProviderRef
	t.ProviderRef = &ref
	paid := s.PaidAt
	t.PaidAt = &paid
	return true, nil
}

func (r *MockTransactionRepo) swap(id string, from, to model.TransactionStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok || t.Status != from {
		return false
	}
	t.Status = to
	return true
}

func (r *MockTransactionRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.swap(id, model.TransactionStatusPending, model.TransactionStatusFailed), nil
}

func (r *MockTransactionRepo) MarkRefundedIfSuccessful(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.swap(id, model.TransactionStatusSuccessful, model.TransactionStatusRefunded), nil
}

func (r *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.data {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MockTransactionRepo) SumCreatorEarnings(ctx context.Context, tx repository.Tx, creatorID string) (int64, error) {
	if r.SumCreatorEarningsFunc != nil {
		return r.SumCreatorEarningsFunc(ctx, tx, creatorID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, t := range r.data {
		if t.CreatorID == creatorID && t.Status == model.TransactionStatusSuccessful {
			sum += t.CreatorEarnings
		}
	}
	return sum, nil
}

func (r *MockTransactionRepo) get(id string) *model.Transaction {
	t, _ := r.FindByID(context.Background(), nil, id)
	return t
}

// ---- Mock PayoutRepository ----

type MockPayoutRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payout

	SaveFunc        func(ctx context.Context, tx repository.Tx, p *model.Payout) error
	LockCreatorFunc func(ctx context.Context, tx repository.Tx, creatorID string) error
}

var _ repository.PayoutRepository = (*MockPayoutRepo)(nil)

func NewMockPayoutRepo() *MockPayoutRepo {
	return &MockPayoutRepo{data: map[string]*model.Payout{}}
}

func (r *MockPayoutRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payout) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPayoutRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPayoutRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, providerRef string) (*model.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.ProviderRef != nil && *p.ProviderRef == providerRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPayoutRepo) List(ctx context.Context, tx repository.Tx, f model.PayoutFilter) ([]*model.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payout
	for _, p := range r.data {
		if f.CreatorID != "" && p.CreatorID != f.CreatorID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MockPayoutRepo) Transition(ctx context.Context, tx repository.Tx, id string, tr model.PayoutTransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range tr.From {
		if p.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	p.Status = tr.To
	if tr.ProviderRef != nil {
		ref := *tr.ProviderRef
		p.ProviderRef = &ref
	}
	if tr.ProcessedBy != nil {
		by := *tr.ProcessedBy
		p.ProcessedBy = &by
		at := tr.At
		p.ProcessedAt = &at
	}
	p.Notes = model.AppendNote(p.Notes, tr.Note)
	p.UpdatedAt = tr.At
	return true, nil
}

func (r *MockPayoutRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, providerRef string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.ProviderRef != nil {
		return false, nil
	}
	ref := providerRef
	p.ProviderRef = &ref
	return true, nil
}

func (r *MockPayoutRepo) SumReserved(ctx context.Context, tx repository.Tx, creatorID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, p := range r.data {
		if p.CreatorID == creatorID && p.Status.ReservesBalance() {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *MockPayoutRepo) LockCreator(ctx context.Context, tx repository.Tx, creatorID string) error {
	if r.LockCreatorFunc != nil {
		return r.LockCreatorFunc(ctx, tx, creatorID)
	}
	return nil
}

func (r *MockPayoutRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// ---- Mock ProductLookup ----

type MockProductLookup struct {
	mu       sync.Mutex
	products map[model.ProductRef]*model.Product
	Sales    map[model.ProductRef]int

	IncrementSalesFunc func(ctx context.Context, ref model.ProductRef) error
}

var _ repository.ProductLookup = (*MockProductLookup)(nil)

func NewMockProductLookup(ps ...*model.Product) *MockProductLookup {
	m := &MockProductLookup{products: map[model.ProductRef]*model.Product{}, Sales: map[model.ProductRef]int{}}
	for _, p := range ps {
		m.products[p.Ref] = p
	}
	return m
}

func (m *MockProductLookup) FindProduct(ctx context.Context, ref model.ProductRef) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductLookup) IncrementSales(ctx context.Context, ref model.ProductRef) error {
	if m.IncrementSalesFunc != nil {
		return m.IncrementSalesFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sales[ref]++
	return nil
}

func (m *MockProductLookup) sales(ref model.ProductRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sales[ref]
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User

	SaveRecipientCodeFunc func(ctx context.Context, userID, provider, code string) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	r := &MockUserRepo{data: map[string]*model.User{}}
	for _, u := range users {
		r.data[u.ID] = u
	}
	return r
}

func (r *MockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	cp.Bank.RecipientCodes = map[string]string{}
	for k, v := range u.Bank.RecipientCodes {
		cp.Bank.RecipientCodes[k] = v
	}
	return &cp, nil
}

func (r *MockUserRepo) SaveRecipientCode(ctx context.Context, userID, provider, code string) error {
	if r.SaveRecipientCodeFunc != nil {
		return r.SaveRecipientCodeFunc(ctx, userID, provider, code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Bank.RecipientCodes == nil {
		u.Bank.RecipientCodes = map[string]string{}
	}
	u.Bank.RecipientCodes[provider] = code
	return nil
}

// ---- Mock SettingsStore ----

type MockSettingsStore struct {
	mu sync.Mutex
	s  model.PlatformSettings

	GetFunc func(ctx context.Context) (*model.PlatformSettings, error)
}

var _ repository.SettingsStore = (*MockSettingsStore)(nil)

func NewMockSettingsStore(s model.PlatformSettings) *MockSettingsStore {
	return &MockSettingsStore{s: s}
}

func (m *MockSettingsStore) Get(ctx context.Context) (*model.PlatformSettings, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.s
	return &cp, nil
}

func (m *MockSettingsStore) Update(ctx context.Context, s *model.PlatformSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = *s
	return nil
}

func (m *MockSettingsStore) set(fn func(s *model.PlatformSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
}

// =============================
// Infra helpers for tests
// =============================

// ---- Mock TransactionManager ----

// MockTxManager runs fn immediately with NoTX. With Serialize set, it holds
// one mutex for the whole callback, standing in for the advisory lock.
type MockTxManager struct {
	Serialize  bool
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.Serialize {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
