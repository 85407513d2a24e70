package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
	"video-monetization/internal/domain/ports/repository"
	"video-monetization/internal/infra/logging"
	"video-monetization/internal/infra/metrics"
	"video-monetization/internal/infra/worker"
)

// Compile-time check
var _ PayoutUseCase = (*payoutUC)(nil)

const (
	payoutLockPrefix = "payout:creator:"
	defaultLockTTL   = 30 * time.Second
	maxPayoutPage    = 100
)

type PayoutUseCase interface {
	// AvailableBalance is successful earnings minus payouts that are pending,
	// processing or completed.
	AvailableBalance(ctx context.Context, creatorID string) (int64, error)
	// RequestPayout withdraws amount from the creator's balance. In automatic
	// mode a transfer failure still returns the persisted, failed payout.
	RequestPayout(ctx context.Context, creatorID string, amount int64) (*model.Payout, error)

	Approve(ctx context.Context, id, actor string) (*model.Payout, error)
	Reject(ctx context.Context, id, actor, reason string) (*model.Payout, error)
	// Reconcile asks the payout's provider for the transfer status and applies
	// a terminal outcome. Terminal payouts are returned unchanged.
	Reconcile(ctx context.Context, id, actor string) (*model.Payout, error)
	List(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, error)

	// ApplyTransferOutcome applies a provider transfer notification, found by
	// transfer reference or else by payout id. A nil payout means neither is
	// known to this provider.
	ApplyTransferOutcome(ctx context.Context, providerKey, transferRef, payoutID string, status adapter.TransferStatus, message string) (*model.Payout, bool, error)
}

type payoutUC struct {
	payouts  repository.PayoutRepository
	txs      repository.TransactionRepository
	users    repository.UserRepository
	router   *GatewayRouter
	tm       repository.TransactionManager
	locker   adapter.Locker
	notifier adapter.Notifier
	fx       effects
	currency string
	lockTTL  time.Duration
	log      *zerolog.Logger
}

// PayoutOptions carries the non-collaborator settings of the payout ledger.
type PayoutOptions struct {
	Currency string
	LockTTL  time.Duration
}

func NewPayoutUseCase(
	payouts repository.PayoutRepository,
	txs repository.TransactionRepository,
	users repository.UserRepository,
	router *GatewayRouter,
	tm repository.TransactionManager,
	locker adapter.Locker,
	notifier adapter.Notifier,
	pool *worker.Pool,
	opts PayoutOptions,
	logger *zerolog.Logger,
) *payoutUC {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	return &payoutUC{
		payouts:  payouts,
		txs:      txs,
		users:    users,
		router:   router,
		tm:       tm,
		locker:   locker,
		notifier: notifier,
		fx:       effects{pool: pool, log: logger},
		currency: opts.Currency,
		lockTTL:  opts.LockTTL,
		log:      logger,
	}
}

func (u *payoutUC) balance(ctx context.Context, tx repository.Tx, creatorID string) (int64, error) {
	earned, err := u.txs.SumCreatorEarnings(ctx, tx, creatorID)
	if err != nil {
		return 0, err
	}
	reserved, err := u.payouts.SumReserved(ctx, tx, creatorID)
	if err != nil {
		return 0, err
	}
	return earned - reserved, nil
}

func (u *payoutUC) AvailableBalance(ctx context.Context, creatorID string) (int64, error) {
	if creatorID == "" {
		return 0, domain.ErrInvalidArgument
	}
	return u.balance(ctx, repository.NoTX, creatorID)
}

// payoutTarget is the resolved destination of an automatic transfer.
type payoutTarget struct {
	provider  adapter.PaymentProvider
	key       string
	recipient string
	bank      model.BankDetails
}

func (u *payoutUC) RequestPayout(ctx context.Context, creatorID string, amount int64) (*model.Payout, error) {
	defer logging.TraceDuration(u.log, "PayoutUC.RequestPayout")()
	if creatorID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payout amount must be positive", domain.ErrValidation)
	}
	settings, err := u.router.Settings(ctx)
	if err != nil {
		return nil, err
	}
	mode := settings.PayoutMode
	if !mode.Valid() {
		mode = model.PayoutModeManual
	}
	log := u.log.With().Str("creator_id", creatorID).Int64("amount", amount).Str("mode", string(mode)).Logger()

	if u.locker != nil {
		key := payoutLockPrefix + creatorID
		token, err := u.locker.TryLock(ctx, key, u.lockTTL)
		if err != nil {
			log.Warn().Err(err).Msg("payout lock not acquired")
			return nil, err
		}
		defer func() {
			// The request context may already be done; release regardless.
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Msg("payout unlock failed")
			}
		}()
	}

	// Cheap pre-check so an obviously short balance never reaches the provider.
	// The authoritative check runs again inside the transaction.
	if avail, err := u.balance(ctx, repository.NoTX, creatorID); err != nil {
		return nil, err
	} else if amount > avail {
		return nil, domain.ErrInsufficientBalance
	}

	var target *payoutTarget
	if mode == model.PayoutModeAutomatic {
		if target, err = u.resolveTarget(ctx, creatorID); err != nil {
			log.Error().Err(err).Msg("payout recipient resolution failed")
			return nil, err
		}
	}

	p, err := model.NewPayout(uuid.NewString(), creatorID, amount, u.currency, mode)
	if err != nil {
		return nil, err
	}
	if target != nil {
		p.Provider = target.key
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payouts.LockCreator(ctx, tx, creatorID); err != nil {
			return err
		}
		avail, err := u.balance(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if amount > avail {
			return domain.ErrInsufficientBalance
		}
		return u.payouts.Save(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayout(string(mode), string(p.Status))
	log.Info().Str("payout_id", p.ID).Str("status", string(p.Status)).Msg("payout requested")

	if target == nil {
		return p, nil
	}
	return u.transfer(ctx, p, target)
}

// resolveTarget finds the payout provider and the creator's recipient handle,
// creating and caching one when the provider needs it.
func (u *payoutUC) resolveTarget(ctx context.Context, creatorID string) (*payoutTarget, error) {
	provider, key, err := u.router.ActivePayout(ctx)
	if err != nil {
		return nil, err
	}
	user, err := u.users.FindByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if user.IsZero() || !user.Bank.Complete() {
		return nil, fmt.Errorf("%w: creator has no bank details", domain.ErrValidation)
	}
	recipient := user.RecipientCode(key)
	if recipient == "" {
		if recipient, err = provider.CreateRecipient(ctx, user.Bank); err != nil {
			return nil, err
		}
		if recipient != adapter.NoRecipient {
			if err := u.users.SaveRecipientCode(ctx, creatorID, key, recipient); err != nil {
				u.log.Warn().Err(err).Str("creator_id", creatorID).Str("provider", key).Msg("failed to cache recipient code")
			}
		}
	}
	return &payoutTarget{provider: provider, key: key, recipient: recipient, bank: user.Bank}, nil
}

func (u *payoutUC) transfer(ctx context.Context, p *model.Payout, target *payoutTarget) (*model.Payout, error) {
	log := u.log.With().Str("payout_id", p.ID).Str("provider", target.key).Logger()

	res, err := target.provider.InitiateTransfer(ctx, adapter.TransferRequest{
		Amount:    p.Amount,
		Currency:  p.Currency,
		Recipient: target.recipient,
		PayoutID:  p.ID,
		Reason:    "Creator payout",
		Bank:      target.bank,
	})
	if err != nil {
		log.Error().Err(err).Msg("initiate transfer failed")
		failed, tErr := u.transition(ctx, p, model.PayoutTransition{
			From: []model.PayoutStatus{model.PayoutStatusProcessing},
			To:   model.PayoutStatusFailed,
			Note: "transfer failed: " + err.Error(),
		})
		if tErr != nil {
			log.Error().Err(tErr).Msg("failed to mark payout failed")
			return p, fmt.Errorf("initiate transfer: %w", err)
		}
		return failed, fmt.Errorf("initiate transfer: %w", err)
	}

	ref := res.ProviderRef
	if ref != "" {
		// Stored apart from the status change: a webhook may already have
		// settled the payout.
		if _, err := u.payouts.SetProviderRef(ctx, repository.NoTX, p.ID, ref); err != nil {
			log.Error().Err(err).Str("provider_ref", ref).Msg("failed to record transfer reference")
			return p, err
		}
	}
	tr := model.PayoutTransition{
		From: []model.PayoutStatus{model.PayoutStatusProcessing},
		To:   model.PayoutStatusProcessing,
		Note: "transfer submitted: " + ref,
	}
	switch res.Status {
	case adapter.TransferSucceeded:
		tr.To = model.PayoutStatusCompleted
		tr.Note = "transfer completed: " + ref
	case adapter.TransferFailed, adapter.TransferReversed:
		tr.To = model.PayoutStatusFailed
		tr.Note = fmt.Sprintf("transfer %s: %s", res.Status, res.Message)
	}
	out, err := u.transition(ctx, p, tr)
	if errors.Is(err, domain.ErrInvalidState) && out != nil && out.Status.IsTerminal() {
		log.Info().Str("provider_ref", ref).Str("status", string(out.Status)).Msg("transfer settled before submit returned")
		return out, nil
	}
	if err != nil {
		log.Error().Err(err).Str("provider_ref", ref).Msg("failed to record transfer status")
		return p, err
	}
	log.Info().Str("provider_ref", ref).Str("status", string(out.Status)).Msg("transfer submitted")
	return out, nil
}

// transition applies tr and returns the stored payout. It reports
// domain.ErrInvalidState when the payout was not in one of tr.From.
func (u *payoutUC) transition(ctx context.Context, p *model.Payout, tr model.PayoutTransition) (*model.Payout, error) {
	if tr.At.IsZero() {
		tr.At = time.Now()
	}
	applied, err := u.payouts.Transition(ctx, repository.NoTX, p.ID, tr)
	if err != nil {
		return nil, err
	}
	cur, err := u.load(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return cur, fmt.Errorf("%w: payout %s is %s", domain.ErrInvalidState, p.ID, cur.Status)
	}
	if cur.Status != p.Status {
		metrics.IncPayout(string(cur.Mode), string(cur.Status))
		u.notifyCreator(cur)
	}
	return cur, nil
}

func (u *payoutUC) notifyCreator(p *model.Payout) {
	if u.notifier == nil || !p.Status.IsTerminal() {
		return
	}
	u.fx.dispatch(adapter.NotifyPayoutUpdate, func(ctx context.Context) error {
		return u.notifier.Notify(ctx, p.CreatorID, adapter.NotifyPayoutUpdate,
			fmt.Sprintf("Your payout is %s", p.Status), "/studio/payouts")
	})
}

func (u *payoutUC) load(ctx context.Context, id string) (*model.Payout, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.payouts.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (u *payoutUC) Approve(ctx context.Context, id, actor string) (*model.Payout, error) {
	if actor == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := u.transition(ctx, p, model.PayoutTransition{
		From:        []model.PayoutStatus{model.PayoutStatusPending},
		To:          model.PayoutStatusCompleted,
		ProcessedBy: &actor,
		Note:        "approved by " + actor,
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("payout_id", id).Str("actor", actor).Msg("payout approved")
	return out, nil
}

func (u *payoutUC) Reject(ctx context.Context, id, actor, reason string) (*model.Payout, error) {
	if actor == "" {
		return nil, domain.ErrInvalidArgument
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", domain.ErrValidation)
	}
	p, err := u.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := u.transition(ctx, p, model.PayoutTransition{
		From:        []model.PayoutStatus{model.PayoutStatusPending},
		To:          model.PayoutStatusRejected,
		ProcessedBy: &actor,
		Note:        fmt.Sprintf("rejected by %s: %s", actor, reason),
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("payout_id", id).Str("actor", actor).Str("reason", reason).Msg("payout rejected")
	return out, nil
}

func (u *payoutUC) Reconcile(ctx context.Context, id, actor string) (*model.Payout, error) {
	p, err := u.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() || p.ProviderRef == nil || *p.ProviderRef == "" || p.Provider == "" {
		return p, nil
	}
	provider, err := u.router.ByKey(p.Provider)
	if err != nil {
		return nil, err
	}
	res, err := provider.TransferStatus(ctx, *p.ProviderRef)
	if err != nil {
		return nil, err
	}
	out, _, err := u.applyStatus(ctx, p, res.Status, res.Message, "reconciled by "+actor)
	return out, err
}

// applyStatus maps a provider transfer status onto the payout. Pending is a no-op.
// A reversal after completion fails the payout so the amount returns to the balance.
func (u *payoutUC) applyStatus(ctx context.Context, p *model.Payout, st adapter.TransferStatus, message, source string) (*model.Payout, bool, error) {
	tr := model.PayoutTransition{Note: source}
	switch st {
	case adapter.TransferSucceeded:
		tr.From = []model.PayoutStatus{model.PayoutStatusProcessing}
		tr.To = model.PayoutStatusCompleted
	case adapter.TransferFailed:
		tr.From = []model.PayoutStatus{model.PayoutStatusProcessing}
		tr.To = model.PayoutStatusFailed
	case adapter.TransferReversed:
		tr.From = []model.PayoutStatus{model.PayoutStatusProcessing, model.PayoutStatusCompleted}
		tr.To = model.PayoutStatusFailed
	default:
		return p, false, nil
	}
	if message != "" {
		tr.Note = fmt.Sprintf("%s: %s %s", source, st, message)
	} else {
		tr.Note = fmt.Sprintf("%s: %s", source, st)
	}
	out, err := u.transition(ctx, p, tr)
	if errors.Is(err, domain.ErrInvalidState) {
		return out, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (u *payoutUC) ApplyTransferOutcome(ctx context.Context, providerKey, transferRef, payoutID string, status adapter.TransferStatus, message string) (*model.Payout, bool, error) {
	var (
		p   *model.Payout
		err error
	)
	if transferRef != "" {
		p, err = u.payouts.FindByProviderRef(ctx, repository.NoTX, transferRef)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
	}
	if p == nil {
		// The event can arrive before the provider ref is stored. Fall back
		// to the payout id the provider echoes, or the transfer ref itself
		// for providers that use our id as their reference.
		id := payoutID
		if id == "" {
			id = transferRef
		}
		if _, perr := uuid.Parse(id); perr != nil {
			return nil, false, nil
		}
		if p, err = u.payouts.FindByID(ctx, repository.NoTX, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		if p == nil {
			return nil, false, nil
		}
	}
	if p.Provider != providerKey {
		u.log.Warn().
			Str("payout_id", p.ID).
			Str("payout_provider", p.Provider).
			Str("webhook_provider", providerKey).
			Msg("transfer event from a provider the payout was not sent with")
		return nil, false, nil
	}
	return u.applyStatus(ctx, p, status, message, providerKey+" webhook")
}

func (u *payoutUC) List(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, error) {
	if f.Limit <= 0 || f.Limit > maxPayoutPage {
		f.Limit = maxPayoutPage
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.payouts.List(ctx, repository.NoTX, f)
}
