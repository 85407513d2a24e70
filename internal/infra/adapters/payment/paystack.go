package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-monetization/internal/domain"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
)

const (
	PaystackKey     = "paystack"
	paystackBaseURL = "https://api.paystack.co"
)

var _ adapter.PaymentProvider = (*PaystackProvider)(nil)

// PaystackProvider talks to the Paystack REST API. Amounts are sent and
// received in kobo, so no unit conversion is needed.
type PaystackProvider struct {
	secretKey string
	currency  string
	rest      restClient
	banks     bankCache
}

// NewPaystackProvider validates the secret key; an empty baseURL selects the live API.
func NewPaystackProvider(secretKey, baseURL, currency string, timeout time.Duration) (*PaystackProvider, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if baseURL == "" {
		baseURL = paystackBaseURL
	}
	if currency == "" {
		currency = "NGN"
	}
	return &PaystackProvider{
		secretKey: secretKey,
		currency:  currency,
		rest:      newRestClient(PaystackKey, baseURL, timeout),
		banks:     bankCache{provider: PaystackKey},
	}, nil
}

func (p *PaystackProvider) Name() string { return PaystackKey }

// paystackEnvelope is the common {status, message, data} response.
type paystackEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (p *PaystackProvider) call(ctx context.Context, op, method, path string, payload, out any) error {
	req, err := p.rest.jsonRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	return p.rest.do(op, req, out)
}

func (p *PaystackProvider) InitializeCharge(ctx context.Context, r adapter.ChargeRequest) (adapter.ChargeSession, error) {
	payload := map[string]any{
		"email":        r.Email,
		"amount":       r.Amount,
		"currency":     firstNonEmpty(r.Currency, p.currency),
		"reference":    r.Reference,
		"callback_url": r.CallbackURL,
		"metadata": map[string]string{
			"product_type": string(r.Product.Kind),
			"product_id":   r.Product.ID,
		},
	}
	var env paystackEnvelope[struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}]
	if err := p.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", payload, &env); err != nil {
		return adapter.ChargeSession{}, err
	}
	if !env.Status || env.Data.AuthorizationURL == "" {
		return adapter.ChargeSession{}, p.rest.rejected("initialize", env.Message)
	}
	return adapter.ChargeSession{CheckoutURL: env.Data.AuthorizationURL, ProviderRef: r.Reference}, nil
}

func (p *PaystackProvider) VerifyCharge(ctx context.Context, reference string) (adapter.ChargeResult, error) {
	var env paystackEnvelope[struct {
		ID        int64  `json:"id"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Reference string `json:"reference"`
	}]
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.call(ctx, "verify", http.MethodGet, path, nil, &env); err != nil {
		return adapter.ChargeResult{}, err
	}
	if !env.Status {
		return adapter.ChargeResult{}, p.rest.rejected("verify", env.Message)
	}
	return adapter.ChargeResult{
		Status:                paystackChargeStatus(env.Data.Status),
		Amount:                env.Data.Amount,
		Currency:              env.Data.Currency,
		ProviderTransactionID: fmt.Sprint(env.Data.ID),
		Message:               env.Message,
	}, nil
}

func paystackChargeStatus(s string) adapter.ChargeStatus {
	switch strings.ToLower(s) {
	case "success":
		return adapter.ChargeSucceeded
	case "failed", "reversed":
		return adapter.ChargeFailed
	default: // ongoing, pending, abandoned, queued
		return adapter.ChargePending
	}
}

func (p *PaystackProvider) ListBanks(ctx context.Context) ([]model.Bank, error) {
	return p.banks.load(ctx, p.fetchBanks)
}

func (p *PaystackProvider) fetchBanks(ctx context.Context) ([]model.Bank, error) {
	var env paystackEnvelope[[]struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}]
	if err := p.call(ctx, "banks", http.MethodGet, "/bank?currency="+url.QueryEscape(p.currency), nil, &env); err != nil {
		return nil, err
	}
	banks := make([]model.Bank, 0, len(env.Data))
	for _, b := range env.Data {
		banks = append(banks, model.Bank{Code: b.Code, Name: b.Name})
	}
	return banks, nil
}

func (p *PaystackProvider) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	var env paystackEnvelope[struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}]
	if err := p.call(ctx, "resolve", http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &env); err != nil {
		if errors.Is(err, domain.ErrProviderUnreachable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAccountResolutionFailed, err)
	}
	if !env.Status || env.Data.AccountName == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrAccountResolutionFailed, env.Message)
	}
	return env.Data.AccountName, nil
}

func (p *PaystackProvider) CreateRecipient(ctx context.Context, bank model.BankDetails) (string, error) {
	payload := map[string]any{
		"type":           "nuban",
		"name":           bank.AccountName,
		"account_number": bank.AccountNumber,
		"bank_code":      bank.BankCode,
		"currency":       p.currency,
	}
	var env paystackEnvelope[struct {
		RecipientCode string `json:"recipient_code"`
	}]
	if err := p.call(ctx, "recipient", http.MethodPost, "/transferrecipient", payload, &env); err != nil {
		return "", err
	}
	if !env.Status || env.Data.RecipientCode == "" {
		return "", p.rest.rejected("recipient", env.Message)
	}
	return env.Data.RecipientCode, nil
}

type paystackTransfer struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

func (p *PaystackProvider) InitiateTransfer(ctx context.Context, r adapter.TransferRequest) (adapter.TransferResult, error) {
	payload := map[string]any{
		"source":    "balance",
		"amount":    r.Amount,
		"recipient": r.Recipient,
		"reason":    r.Reason,
		"reference": r.PayoutID,
		"currency":  firstNonEmpty(r.Currency, p.currency),
	}
	var env paystackEnvelope[paystackTransfer]
	if err := p.call(ctx, "transfer", http.MethodPost, "/transfer", payload, &env); err != nil {
		return adapter.TransferResult{}, err
	}
	if !env.Status || env.Data.TransferCode == "" {
		return adapter.TransferResult{}, p.rest.rejected("transfer", env.Message)
	}
	return adapter.TransferResult{
		ProviderRef: env.Data.TransferCode,
		Status:      paystackTransferStatus(env.Data.Status),
		Message:     env.Message,
	}, nil
}

func (p *PaystackProvider) TransferStatus(ctx context.Context, providerRef string) (adapter.TransferResult, error) {
	var env paystackEnvelope[paystackTransfer]
	if err := p.call(ctx, "transfer_status", http.MethodGet, "/transfer/"+url.PathEscape(providerRef), nil, &env); err != nil {
		return adapter.TransferResult{}, err
	}
	if !env.Status {
		return adapter.TransferResult{}, p.rest.rejected("transfer_status", env.Message)
	}
	return adapter.TransferResult{
		ProviderRef: firstNonEmpty(env.Data.TransferCode, providerRef),
		Status:      paystackTransferStatus(env.Data.Status),
		Message:     env.Data.Reason,
	}, nil
}

func paystackTransferStatus(s string) adapter.TransferStatus {
	switch strings.ToLower(s) {
	case "success":
		return adapter.TransferSucceeded
	case "failed", "abandoned", "blocked", "rejected":
		return adapter.TransferFailed
	case "reversed":
		return adapter.TransferReversed
	default: // pending, otp, received, processing
		return adapter.TransferPending
	}
}

func (p *PaystackProvider) ParseWebhook(_ context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	if !VerifyPaystackSignature(p.secretKey, body, header.Get("x-paystack-signature")) {
		return adapter.WebhookEvent{}, domain.ErrInvalidSignature
	}
	var evt struct {
		Event string `json:"event"`
		Data  struct {
			ID           int64  `json:"id"`
			Reference    string `json:"reference"`
			Amount       int64  `json:"amount"`
			Status       string `json:"status"`
			TransferCode string `json:"transfer_code"`
			Reason       string `json:"reason"`
			GatewayResp  string `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: decode paystack event: %v", domain.ErrValidation, err)
	}
	out := adapter.WebhookEvent{Provider: PaystackKey, Raw: evt.Event, Type: adapter.EventIgnored}
	switch evt.Event {
	case "charge.success":
		out.Type = adapter.EventChargeSucceeded
		out.Reference = evt.Data.Reference
		out.Amount = evt.Data.Amount
		out.ProviderTransactionID = fmt.Sprint(evt.Data.ID)
	case "charge.failed":
		out.Type = adapter.EventChargeFailed
		out.Reference = evt.Data.Reference
		out.Message = evt.Data.GatewayResp
	case "transfer.success":
		out.Type = adapter.EventTransferSucceeded
		out.TransferRef = evt.Data.TransferCode
		out.PayoutID = evt.Data.Reference
	case "transfer.failed":
		out.Type = adapter.EventTransferFailed
		out.TransferRef = evt.Data.TransferCode
		out.PayoutID = evt.Data.Reference
		out.Message = evt.Data.Reason
	case "transfer.reversed":
		out.Type = adapter.EventTransferReversed
		out.TransferRef = evt.Data.TransferCode
		out.PayoutID = evt.Data.Reference
		out.Message = evt.Data.Reason
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
