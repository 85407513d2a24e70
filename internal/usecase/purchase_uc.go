package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
	"video-monetization/internal/domain/ports/repository"
	"video-monetization/internal/infra/metrics"
	"video-monetization/internal/infra/worker"
)

// Compile-time check
var _ PurchaseUseCase = (*purchaseUC)(nil)

// PurchaseSession is returned to the buyer after a checkout is opened.
type PurchaseSession struct {
	Reference   string
	CheckoutURL string
	Provider    string
}

// PurchaseStatus is the buyer-facing view of a transaction.
type PurchaseStatus struct {
	Reference   string
	Status      model.TransactionStatus
	Product     model.ProductRef
	ProductSlug string
}

type PurchaseUseCase interface {
	// InitializePurchase records a pending transaction with the active incoming
	// provider and opens a checkout for it.
	InitializePurchase(ctx context.Context, buyerID string, ref model.ProductRef) (*PurchaseSession, error)
	// VerifyPurchase asks the transaction's pinned provider for the charge outcome.
	// Only the buyer may verify; other callers get domain.ErrNotFound.
	VerifyPurchase(ctx context.Context, buyerID, reference string) (*PurchaseStatus, error)

	// ConfirmSuccess settles a pending transaction. applied is false when
	// another caller settled it first; the returned transaction is then the stored one.
	ConfirmSuccess(ctx context.Context, t *model.Transaction, providerAmount int64, providerTxID string) (settled *model.Transaction, applied bool, err error)
	ConfirmFailure(ctx context.Context, t *model.Transaction) (bool, error)

	// Refund is an administrative override: successful -> refunded, no provider call.
	Refund(ctx context.Context, reference, actor string) (*model.Transaction, error)

	// ReconcilePending re-verifies transactions still pending after olderThan.
	ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (checked int, err error)
}

type purchaseUC struct {
	txs         repository.TransactionRepository
	products    repository.ProductLookup
	users       repository.UserRepository
	router      *GatewayRouter
	notifier    adapter.Notifier
	fx          effects
	callbackURL string
	log         *zerolog.Logger
}

// NewPurchaseUseCase wires the transaction ledger. pool may be nil, in which
// case side effects run inline.
func NewPurchaseUseCase(
	txs repository.TransactionRepository,
	products repository.ProductLookup,
	users repository.UserRepository,
	router *GatewayRouter,
	notifier adapter.Notifier,
	pool *worker.Pool,
	callbackURL string,
	logger *zerolog.Logger,
) *purchaseUC {
	return &purchaseUC{
		txs:         txs,
		products:    products,
		users:       users,
		router:      router,
		notifier:    notifier,
		fx:          effects{pool: pool, log: logger},
		callbackURL: callbackURL,
		log:         logger,
	}
}

func (u *purchaseUC) InitializePurchase(ctx context.Context, buyerID string, ref model.ProductRef) (*PurchaseSession, error) {
	if buyerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	product, err := u.products.FindProduct(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %s not found", domain.ErrValidation, ref)
		}
		return nil, err
	}
	if product.Price <= 0 {
		return nil, fmt.Errorf("%w: product %s has no price", domain.ErrValidation, ref)
	}
	if product.CreatorID == buyerID {
		return nil, fmt.Errorf("%w: creators cannot buy their own products", domain.ErrValidation)
	}
	buyer, err := u.users.FindByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if buyer.IsZero() || buyer.Email == "" {
		return nil, fmt.Errorf("%w: buyer email is required", domain.ErrValidation)
	}

	provider, key, err := u.router.ActiveIncoming(ctx)
	if err != nil {
		return nil, err
	}

	t, err := model.NewPendingTransaction(uuid.NewString(), NewReference(), buyerID, product, key)
	if err != nil {
		return nil, err
	}
	if err := u.txs.Save(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	log := u.log.With().Str("reference", t.Reference).Str("provider", key).Logger()

	sess, err := provider.InitializeCharge(ctx, adapter.ChargeRequest{
		Email:       buyer.Email,
		Amount:      t.GrossAmount,
		Currency:    t.Currency,
		Reference:   t.Reference,
		CallbackURL: u.callbackURL,
		Product:     t.Product,
		Title:       t.ProductTitle,
	})
	if err != nil {
		// The row stays pending: a timed-out call may still have opened a
		// checkout, and only a verify or webhook may close it.
		log.Error().Err(err).Msg("initialize charge failed; transaction left pending")
		metrics.IncPayment(key, "init_failed")
		return nil, err
	}
	if sess.ProviderRef != "" && sess.ProviderRef != t.Reference {
		if err := u.txs.SetCheckoutRef(ctx, repository.NoTX, t.ID, sess.ProviderRef); err != nil {
			return nil, err
		}
	}
	metrics.IncPayment(key, string(model.TransactionStatusPending))
	log.Info().Int64("amount", t.GrossAmount).Str("product", t.Product.String()).Msg("purchase initialized")

	return &PurchaseSession{Reference: t.Reference, CheckoutURL: sess.CheckoutURL, Provider: key}, nil
}

func (u *purchaseUC) VerifyPurchase(ctx context.Context, buyerID, reference string) (*PurchaseStatus, error) {
	t, err := u.txs.FindByReference(ctx, repository.NoTX, reference)
	if err != nil {
		return nil, err
	}
	if t == nil || t.BuyerID != buyerID {
		return nil, domain.ErrNotFound
	}
	if !t.Status.IsTerminal() {
		if t, err = u.syncWithProvider(ctx, t); err != nil {
			return nil, err
		}
	}
	return &PurchaseStatus{
		Reference:   t.Reference,
		Status:      t.Status,
		Product:     t.Product,
		ProductSlug: t.ProductSlug,
	}, nil
}

// syncWithProvider verifies a pending transaction against its pinned provider
// and applies the outcome. A pending outcome leaves the row untouched.
func (u *purchaseUC) syncWithProvider(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	provider, err := u.router.ByKey(t.Provider)
	if err != nil {
		return nil, err
	}
	res, err := provider.VerifyCharge(ctx, t.VerifyRef())
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case adapter.ChargeSucceeded:
		settled, _, err := u.ConfirmSuccess(ctx, t, res.Amount, res.ProviderTransactionID)
		return settled, err
	case adapter.ChargeFailed:
		if _, err := u.ConfirmFailure(ctx, t); err != nil {
			return nil, err
		}
		return u.reload(ctx, t)
	default:
		return t, nil
	}
}

func (u *purchaseUC) reload(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	cur, err := u.txs.FindByID(ctx, repository.NoTX, t.ID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.ErrNotFound
	}
	return cur, nil
}

func (u *purchaseUC) ConfirmSuccess(ctx context.Context, t *model.Transaction, providerAmount int64, providerTxID string) (*model.Transaction, bool, error) {
	if t == nil {
		return nil, false, domain.ErrInvalidArgument
	}
	settings, err := u.router.Settings(ctx)
	if err != nil {
		return nil, false, err
	}
	s := model.NewSettlement(t.GrossAmount, providerAmount, providerTxID, settings.CommissionRate, time.Now())

	applied, err := u.txs.MarkSuccessfulIfPending(ctx, repository.NoTX, t.ID, s)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		cur, err := u.reload(ctx, t)
		return cur, false, err
	}

	settled := *t
	settled.Status = model.TransactionStatusSuccessful
	settled.GrossAmount = s.Gross
	settled.Commission = s.Commission
	settled.CreatorEarnings = s.CreatorEarnings
	settled.AmountMismatch = s.AmountMismatch
	if s.ProviderRef != "" {
		ref := s.ProviderRef
		settled.ProviderRef = &ref
	}
	paidAt := s.PaidAt
	settled.PaidAt = &paidAt
	settled.UpdatedAt = paidAt

	log := u.log.With().Str("reference", t.Reference).Str("provider", t.Provider).Logger()
	if s.AmountMismatch {
		metrics.IncAmountMismatch(t.Provider)
		log.Warn().
			Err(domain.ErrAmountMismatch).
			Bool("amount_mismatch", true).
			Int64("expected", t.GrossAmount).
			Int64("received", s.Gross).
			Msg("settled with provider amount; flagged for review")
	}
	metrics.IncPayment(t.Provider, string(model.TransactionStatusSuccessful))
	metrics.AddSettlement(t.Currency, s.Gross, s.Commission)
	log.Info().
		Int64("gross", s.Gross).
		Int64("commission", s.Commission).
		Int64("creator_earnings", s.CreatorEarnings).
		Msg("transaction settled")

	u.afterSale(&settled)
	return &settled, true, nil
}

func (u *purchaseUC) ConfirmFailure(ctx context.Context, t *model.Transaction) (bool, error) {
	if t == nil {
		return false, domain.ErrInvalidArgument
	}
	applied, err := u.txs.MarkFailedIfPending(ctx, repository.NoTX, t.ID)
	if err != nil {
		return false, err
	}
	if applied {
		metrics.IncPayment(t.Provider, string(model.TransactionStatusFailed))
		u.log.Info().Str("reference", t.Reference).Str("provider", t.Provider).Msg("transaction failed")
	}
	return applied, nil
}

func (u *purchaseUC) Refund(ctx context.Context, reference, actor string) (*model.Transaction, error) {
	if reference == "" || actor == "" {
		return nil, domain.ErrInvalidArgument
	}
	t, err := u.txs.FindByReference(ctx, repository.NoTX, reference)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrNotFound
	}
	applied, err := u.txs.MarkRefundedIfSuccessful(ctx, repository.NoTX, t.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: transaction %s is %s", domain.ErrInvalidState, reference, t.Status)
	}
	metrics.IncPayment(t.Provider, string(model.TransactionStatusRefunded))
	u.log.Info().Str("reference", reference).Str("actor", actor).Msg("transaction refunded")
	return u.reload(ctx, t)
}

func (u *purchaseUC) ReconcilePending(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	pending, err := u.txs.ListPendingOlderThan(ctx, repository.NoTX, olderThan, limit)
	if err != nil {
		return 0, err
	}
	checked := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		checked++
		after, err := u.syncWithProvider(ctx, t)
		if err != nil {
			metrics.IncReconcile("error")
			u.log.Warn().Err(err).Str("reference", t.Reference).Msg("reconcile verify failed")
			continue
		}
		metrics.IncReconcile(string(after.Status))
	}
	return checked, nil
}

// afterSale schedules the sale counter and notifications. They are best effort
// and never affect the ledger outcome.
func (u *purchaseUC) afterSale(t *model.Transaction) {
	u.fx.dispatch("increment_sales", func(ctx context.Context) error {
		return u.products.IncrementSales(ctx, t.Product)
	})
	if u.notifier == nil {
		return
	}
	u.fx.dispatch(adapter.NotifyNewSale, func(ctx context.Context) error {
		return u.notifier.Notify(ctx, t.CreatorID, adapter.NotifyNewSale,
			fmt.Sprintf("New sale: %s", t.ProductTitle), "/studio/sales")
	})
	u.fx.dispatch(adapter.NotifyPurchaseConfirmed, func(ctx context.Context) error {
		return u.notifier.Notify(ctx, t.BuyerID, adapter.NotifyPurchaseConfirmed,
			fmt.Sprintf("Purchase confirmed: %s", t.ProductTitle), productLink(t.Product, t.ProductSlug))
	})
}

func productLink(ref model.ProductRef, slug string) string {
	if ref.Kind == model.ProductKindBundle {
		return "/bundles/" + slug
	}
	return "/videos/" + slug
}
