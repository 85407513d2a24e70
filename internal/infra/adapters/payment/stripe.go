package payment

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
)

const (
	StripeKey              = "stripe"
	stripeBaseURL          = "https://api.stripe.com"
	stripeSignatureMaxSkew = 5 * time.Minute
)

var _ adapter.PaymentProvider = (*StripeProvider)(nil)

// StripeProvider uses Checkout Sessions for charges and Connect transfers for
// payouts. The recipient of a transfer is the creator's connected account id.
type StripeProvider struct {
	secretKey     string
	webhookSecret string
	currency      string
	rest          restClient
	now           func() time.Time
}

func NewStripeProvider(secretKey, webhookSecret, baseURL, currency string, timeout time.Duration) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	if baseURL == "" {
		baseURL = stripeBaseURL
	}
	if currency == "" {
		currency = "USD"
	}
	return &StripeProvider{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		currency:      currency,
		rest:          newRestClient(StripeKey, baseURL, timeout),
		now:           time.Now,
	}, nil
}

func (s *StripeProvider) Name() string { return StripeKey }

func (s *StripeProvider) call(ctx context.Context, op, method, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := s.rest.formRequest(ctx, method, path, form)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return s.rest.do(op, req, out)
}

type stripeSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`         // open, complete, expired
	PaymentStatus     string            `json:"payment_status"` // paid, unpaid, no_payment_required
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	PaymentIntent     string            `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (s *StripeProvider) InitializeCharge(ctx context.Context, r adapter.ChargeRequest) (adapter.ChargeSession, error) {
	cur := strings.ToLower(firstNonEmpty(r.Currency, s.currency))
	callback := r.CallbackURL
	sep := "?"
	if strings.Contains(callback, "?") {
		sep = "&"
	}
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", r.Reference)
	form.Set("customer_email", r.Email)
	form.Set("success_url", callback+sep+"reference="+url.QueryEscape(r.Reference))
	form.Set("cancel_url", callback+sep+"reference="+url.QueryEscape(r.Reference)+"&cancelled=1")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", cur)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(r.Amount, 10))
	form.Set("line_items[0][price_data][product_data][name]", firstNonEmpty(r.Title, r.Product.String()))
	form.Set("metadata[reference]", r.Reference)
	form.Set("metadata[product_type]", string(r.Product.Kind))
	form.Set("metadata[product_id]", r.Product.ID)

	var out stripeSession
	if err := s.call(ctx, "initialize", http.MethodPost, "/v1/checkout/sessions", form, r.Reference, &out); err != nil {
		return adapter.ChargeSession{}, err
	}
	if out.ID == "" || out.URL == "" {
		return adapter.ChargeSession{}, s.rest.rejected("initialize", "session without id or url")
	}
	return adapter.ChargeSession{CheckoutURL: out.URL, ProviderRef: out.ID}, nil
}

// VerifyCharge expects the checkout session id returned by InitializeCharge.
func (s *StripeProvider) VerifyCharge(ctx context.Context, sessionID string) (adapter.ChargeResult, error) {
	var out stripeSession
	if err := s.call(ctx, "verify", http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "", &out); err != nil {
		return adapter.ChargeResult{}, err
	}
	return adapter.ChargeResult{
		Status:                stripeSessionStatus(out.Status, out.PaymentStatus),
		Amount:                out.AmountTotal,
		Currency:              strings.ToUpper(out.Currency),
		ProviderTransactionID: firstNonEmpty(out.PaymentIntent, out.ID),
	}, nil
}

func stripeSessionStatus(status, paymentStatus string) adapter.ChargeStatus {
	switch {
	case paymentStatus == "paid" || paymentStatus == "no_payment_required":
		return adapter.ChargeSucceeded
	case status == "expired":
		return adapter.ChargeFailed
	default:
		return adapter.ChargePending
	}
}

// ListBanks returns an empty directory; Stripe pays out to connected accounts.
func (s *StripeProvider) ListBanks(context.Context) ([]model.Bank, error) {
	return []model.Bank{}, nil
}

func (s *StripeProvider) ResolveBankAccount(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: stripe: %w", domain.ErrAccountResolutionFailed, domain.ErrUnsupported)
}

// CreateRecipient cannot onboard a connected account; it only returns one
// already linked to the creator out of band.
func (s *StripeProvider) CreateRecipient(_ context.Context, bank model.BankDetails) (string, error) {
	if acct := bank.RecipientCodes[StripeKey]; acct != "" {
		return acct, nil
	}
	return "", s.rest.rejected("recipient", "creator has no connected stripe account")
}

type stripeTransfer struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReversed int64             `json:"amount_reversed"`
	Reversed       bool              `json:"reversed"`
	Metadata       map[string]string `json:"metadata"`
}

func (t stripeTransfer) status() adapter.TransferStatus {
	// A created transfer has already moved funds to the connected account.
	if t.Reversed || t.AmountReversed > 0 {
		return adapter.TransferReversed
	}
	return adapter.TransferSucceeded
}

func (s *StripeProvider) InitiateTransfer(ctx context.Context, r adapter.TransferRequest) (adapter.TransferResult, error) {
	if r.Recipient == "" || r.Recipient == adapter.NoRecipient {
		return adapter.TransferResult{}, s.rest.rejected("transfer", "missing connected account")
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(r.Amount, 10))
	form.Set("currency", strings.ToLower(firstNonEmpty(r.Currency, s.currency)))
	form.Set("destination", r.Recipient)
	form.Set("transfer_group", r.PayoutID)
	form.Set("description", r.Reason)
	form.Set("metadata[payout_id]", r.PayoutID)

	var out stripeTransfer
	if err := s.call(ctx, "transfer", http.MethodPost, "/v1/transfers", form, "payout-"+r.PayoutID, &out); err != nil {
		return adapter.TransferResult{}, err
	}
	if out.ID == "" {
		return adapter.TransferResult{}, s.rest.rejected("transfer", "transfer without id")
	}
	return adapter.TransferResult{ProviderRef: out.ID, Status: out.status()}, nil
}

func (s *StripeProvider) TransferStatus(ctx context.Context, providerRef string) (adapter.TransferResult, error) {
	var out stripeTransfer
	if err := s.call(ctx, "transfer_status", http.MethodGet, "/v1/transfers/"+url.PathEscape(providerRef), nil, "", &out); err != nil {
		return adapter.TransferResult{}, err
	}
	return adapter.TransferResult{ProviderRef: firstNonEmpty(out.ID, providerRef), Status: out.status()}, nil
}

// verifySignature checks a Stripe-Signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]" against the raw body.
func (s *StripeProvider) verifySignature(header string, body []byte) bool {
	if s.webhookSecret == "" || header == "" {
		return false
	}
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || len(sigs) == 0 {
		return false
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age > stripeSignatureMaxSkew || age < -stripeSignatureMaxSkew {
		return false
	}
	want := stripeV1Signature(s.webhookSecret, ts, body)
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(want)) {
			return true
		}
	}
	return false
}

func (s *StripeProvider) ParseWebhook(_ context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	if !s.verifySignature(header.Get("Stripe-Signature"), body) {
		return adapter.WebhookEvent{}, domain.ErrInvalidSignature
	}
	var evt struct {
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: decode stripe event: %v", domain.ErrValidation, err)
	}
	out := adapter.WebhookEvent{Provider: StripeKey, Raw: evt.Type, Type: adapter.EventIgnored}

	switch evt.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed", "checkout.session.expired":
		var sess stripeSession
		if err := json.Unmarshal(evt.Data.Object, &sess); err != nil {
			return adapter.WebhookEvent{}, fmt.Errorf("%w: decode stripe session: %v", domain.ErrValidation, err)
		}
		out.Reference = firstNonEmpty(sess.ClientReferenceID, sess.Metadata["reference"])
		out.Amount = sess.AmountTotal
		out.ProviderTransactionID = firstNonEmpty(sess.PaymentIntent, sess.ID)
		switch {
		case evt.Type == "checkout.session.async_payment_failed" || evt.Type == "checkout.session.expired":
			out.Type = adapter.EventChargeFailed
		case stripeSessionStatus(sess.Status, sess.PaymentStatus) == adapter.ChargeSucceeded:
			out.Type = adapter.EventChargeSucceeded
		}
		// A completed session with delayed payment stays ignored until async_payment_succeeded.
	case "transfer.created", "transfer.reversed":
		var tr stripeTransfer
		if err := json.Unmarshal(evt.Data.Object, &tr); err != nil {
			return adapter.WebhookEvent{}, fmt.Errorf("%w: decode stripe transfer: %v", domain.ErrValidation, err)
		}
		out.TransferRef = tr.ID
		out.PayoutID = tr.Metadata["payout_id"]
		if evt.Type == "transfer.reversed" {
			out.Type = adapter.EventTransferReversed
			out.Message = "transfer reversed"
		} else {
			out.Type = adapter.EventTransferSucceeded
		}
	}
	return out, nil
}
