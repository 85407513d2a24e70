package apiv1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/infra/logging"
	red "video-monetization/internal/infra/redis"
	"video-monetization/internal/usecase"
)

// Limiter is the fixed-window limiter used on purchase and payout creation.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps groups what the v1 API needs. Limiter may be nil.
type Deps struct {
	Purchases usecase.PurchaseUseCase
	Payouts   usecase.PayoutUseCase
	Webhooks  usecase.WebhookUseCase
	Banks     usecase.BankUseCase
	Settings  usecase.SettingsUseCase
	Auth      *AdminAuth
	Limiter   Limiter

	Currency        string
	RateLimit       int
	MaxWebhookBytes int64
	Logger          *zerolog.Logger
}

type Server struct {
	purchases usecase.PurchaseUseCase
	payouts   usecase.PayoutUseCase
	webhooks  usecase.WebhookUseCase
	banks     usecase.BankUseCase
	settings  usecase.SettingsUseCase
	auth      *AdminAuth
	limiter   Limiter

	currency        string
	rateLimit       int
	maxWebhookBytes int64
	log             *zerolog.Logger
}

func NewServer(d Deps) *Server {
	if d.RateLimit <= 0 {
		d.RateLimit = 20
	}
	if d.MaxWebhookBytes <= 0 {
		d.MaxWebhookBytes = 1 << 20
	}
	if d.Logger == nil {
		l := zerolog.Nop()
		d.Logger = &l
	}
	return &Server{
		purchases:       d.Purchases,
		payouts:         d.Payouts,
		webhooks:        d.Webhooks,
		banks:           d.Banks,
		settings:        d.Settings,
		auth:            d.Auth,
		limiter:         d.Limiter,
		currency:        d.Currency,
		rateLimit:       d.RateLimit,
		maxWebhookBytes: d.MaxWebhookBytes,
		log:             d.Logger,
	}
}

// RegisterAPIV1 mounts the v1 routes at absolute paths on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Post("/webhooks/{provider}", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireCaller)
			r.With(s.rateLimited("purchase")).Post("/purchases", s.initializePurchase)
			r.Get("/purchases/{reference}/verify", s.verifyPurchase)
			r.Get("/banks", s.listBanks)
			r.Post("/banks/resolve", s.resolveBank)
			r.With(s.rateLimited("payout")).Post("/payouts", s.requestPayout)
			r.Get("/payouts", s.listMyPayouts)
			r.Get("/payouts/balance", s.balance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Get("/payouts", s.adminListPayouts)
			r.Post("/payouts/{id}/approve", s.approvePayout)
			r.Post("/payouts/{id}/reject", s.rejectPayout)
			r.Post("/payouts/{id}/reconcile", s.reconcilePayout)
			r.Post("/purchases/{reference}/refund", s.refundPurchase)
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.updateSettings)
		})
	})
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

func (s *Server) rateLimited(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := s.limiter.Allow(r.Context(), red.UserActionKey(callerFrom(r.Context()), action), s.rateLimit, time.Minute)
			if err != nil {
				// A limiter outage lets the request through.
				s.logger(r).Warn().Err(err).Str("action", action).Msg("rate limiter unavailable")
			} else if !ok {
				writeErrorMsg(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ----- webhooks -----

// handleWebhook always acknowledges verified or unverifiable deliveries with
// 200 so providers stop retrying; only storage failures ask for a retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxWebhookBytes))
	if err != nil {
		writeErrorMsg(w, http.StatusRequestEntityTooLarge, "too_large", "payload too large")
		return
	}

	res, err := s.webhooks.Handle(r.Context(), provider, r.Header, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(res)})
	case errors.Is(err, domain.ErrInvalidSignature):
		logging.Security(s.logger(r)).
			Str("provider", provider).
			Str("remote_addr", r.RemoteAddr).
			Int("bytes", len(body)).
			Msg("webhook signature rejected")
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	case errors.Is(err, domain.ErrUnconfiguredProvider):
		writeErrorMsg(w, http.StatusNotFound, "not_found", "unknown provider")
	case errors.Is(err, domain.ErrValidation):
		s.logger(r).Warn().Err(err).Str("provider", provider).Msg("malformed webhook payload")
		writeJSON(w, http.StatusOK, map[string]string{"status": "malformed"})
	default:
		s.writeError(w, r, err)
	}
}

// ----- purchases -----

func (s *Server) initializePurchase(w http.ResponseWriter, r *http.Request) {
	var req InitializePurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	ref, err := model.ParseProductRef(req.ProductKind, req.ProductID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := logging.WithUserID(r.Context(), callerFrom(r.Context()))
	sess, err := s.purchases.InitializePurchase(ctx, callerFrom(ctx), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseSession(sess))
}

func (s *Server) verifyPurchase(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	ctx := logging.WithReference(r.Context(), ref)
	st, err := s.purchases.VerifyPurchase(ctx, callerFrom(ctx), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseStatus(st))
}

func (s *Server) refundPurchase(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	t, err := s.purchases.Refund(logging.WithReference(r.Context(), ref), ref, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(t))
}

// ----- banks -----

func (s *Server) listBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.banks.GetBankList(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if banks == nil {
		banks = []model.Bank{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": banks})
}

func (s *Server) resolveBank(w http.ResponseWriter, r *http.Request) {
	var req ResolveBankRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := s.banks.ResolveBankAccount(r.Context(), req.AccountNumber, req.BankCode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountName{AccountName: name})
}

// ----- payouts -----

func (s *Server) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req PayoutRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := logging.WithUserID(r.Context(), callerFrom(r.Context()))
	p, err := s.payouts.RequestPayout(ctx, callerFrom(ctx), req.Amount)
	if err != nil && p != nil {
		// The payout was persisted before the transfer failed.
		status, code := statusFor(err)
		s.logger(r).Error().Err(err).Str("payout_id", p.ID).Msg("payout transfer failed")
		view := toPayout(p)
		writeJSON(w, status, ErrorBody{Error: code, Message: err.Error(), Payout: &view})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayout(p))
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	creator := callerFrom(r.Context())
	avail, err := s.payouts.AvailableBalance(r.Context(), creator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Balance{CreatorID: creator, Available: avail, Currency: s.currency})
}

func (s *Server) listMyPayouts(w http.ResponseWriter, r *http.Request) {
	f, ok := pageFilter(w, r)
	if !ok {
		return
	}
	f.CreatorID = callerFrom(r.Context())
	s.listPayouts(w, r, f)
}

func (s *Server) adminListPayouts(w http.ResponseWriter, r *http.Request) {
	f, ok := pageFilter(w, r)
	if !ok {
		return
	}
	f.CreatorID = r.URL.Query().Get("creator_id")
	s.listPayouts(w, r, f)
}

func (s *Server) listPayouts(w http.ResponseWriter, r *http.Request, f model.PayoutFilter) {
	items, err := s.payouts.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": toPayouts(items)})
}

// pageFilter parses status, limit and offset query parameters.
func pageFilter(w http.ResponseWriter, r *http.Request) (model.PayoutFilter, bool) {
	q := r.URL.Query()
	f := model.PayoutFilter{Status: model.PayoutStatus(q.Get("status")), Limit: 50}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErrorMsg(w, http.StatusBadRequest, "validation_failed", name+" must be a non-negative integer")
			return f, false
		}
		*dst = n
	}
	if f.Limit == 0 || f.Limit > 100 {
		f.Limit = 100
	}
	return f, true
}

func (s *Server) approvePayout(w http.ResponseWriter, r *http.Request) {
	p, err := s.payouts.Approve(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayout(p))
}

func (s *Server) rejectPayout(w http.ResponseWriter, r *http.Request) {
	var req RejectPayoutRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.payouts.Reject(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayout(p))
}

func (s *Server) reconcilePayout(w http.ResponseWriter, r *http.Request) {
	p, err := s.payouts.Reconcile(r.Context(), chi.URLParam(r, "id"), actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayout(p))
}

// ----- settings -----

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettings(st))
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	next, err := s.settings.Update(r.Context(), &model.PlatformSettings{
		IncomingProvider: req.IncomingProvider,
		PayoutProvider:   req.PayoutProvider,
		PayoutMode:       model.PayoutMode(req.PayoutMode),
		CommissionRate:   *req.CommissionRate,
	}, actorFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettings(next))
}
