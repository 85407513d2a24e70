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
	NombaKey          = "nomba"
	nombaBaseURL      = "https://api.nomba.com"
	nombaTokenSkew    = 60 * time.Second
	nombaTokenDefault = 30 * time.Minute
	nombaOK           = "00"
)

var _ adapter.PaymentProvider = (*NombaProvider)(nil)

// NombaProvider authenticates with OAuth client credentials and sends amounts
// as major-unit decimals. Transfers go straight to bank details, so there is
// no recipient object.
type NombaProvider struct {
	clientID      string
	clientSecret  string
	accountID     string
	webhookSecret string
	currency      string
	rest          restClient
	token         *tokenCache
	banks         bankCache
}

func NewNombaProvider(clientID, clientSecret, accountID, webhookSecret, baseURL, currency string, timeout time.Duration) (*NombaProvider, error) {
	if clientID == "" || clientSecret == "" || accountID == "" {
		return nil, errors.New("nomba client id, secret and account id are required")
	}
	if baseURL == "" {
		baseURL = nombaBaseURL
	}
	if currency == "" {
		currency = "NGN"
	}
	return &NombaProvider{
		clientID:      clientID,
		clientSecret:  clientSecret,
		accountID:     accountID,
		webhookSecret: webhookSecret,
		currency:      currency,
		rest:          newRestClient(NombaKey, baseURL, timeout),
		token:         newTokenCache(nombaTokenSkew),
		banks:         bankCache{provider: NombaKey},
	}, nil
}

func (n *NombaProvider) Name() string { return NombaKey }

type nombaEnvelope[T any] struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Data        T      `json:"data"`
}

func (e nombaEnvelope[T]) ok() bool { return e.Code == "" || e.Code == nombaOK }

func (n *NombaProvider) issueToken(ctx context.Context) (tokenEntry, error) {
	payload := map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     n.clientID,
		"client_secret": n.clientSecret,
	}
	req, err := n.rest.jsonRequest(ctx, http.MethodPost, "/v1/auth/token/issue", payload)
	if err != nil {
		return tokenEntry{}, err
	}
	req.Header.Set("accountId", n.accountID)
	var env nombaEnvelope[struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   string `json:"expiresAt"`
	}]
	if err := n.rest.do("token", req, &env); err != nil {
		return tokenEntry{}, err
	}
	if !env.ok() || env.Data.AccessToken == "" {
		return tokenEntry{}, n.rest.rejected("token", env.Description)
	}
	exp, err := time.Parse(time.RFC3339, env.Data.ExpiresAt)
	if err != nil {
		exp = time.Now().Add(nombaTokenDefault)
	}
	return tokenEntry{value: env.Data.AccessToken, expiresAt: exp}, nil
}

// call runs an authenticated request. A 401 drops the cached token and the
// request is retried once with a fresh one.
func (n *NombaProvider) call(ctx context.Context, op, method, path string, payload, out any) error {
	for attempt := 0; ; attempt++ {
		tok, err := n.token.get(ctx, n.issueToken)
		if err != nil {
			return err
		}
		req, err := n.rest.jsonRequest(ctx, method, path, payload)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("accountId", n.accountID)
		err = n.rest.do(op, req, out)
		if statusCode(err) == http.StatusUnauthorized && attempt == 0 {
			n.token.invalidate()
			continue
		}
		return err
	}
}

func (n *NombaProvider) InitializeCharge(ctx context.Context, r adapter.ChargeRequest) (adapter.ChargeSession, error) {
	payload := map[string]any{
		"order": map[string]any{
			"orderReference": r.Reference,
			"customerEmail":  r.Email,
			"amount":         minorToMajorNumber(r.Amount),
			"currency":       firstNonEmpty(r.Currency, n.currency),
			"callbackUrl":    r.CallbackURL,
		},
	}
	var env nombaEnvelope[struct {
		CheckoutLink   string `json:"checkoutLink"`
		OrderReference string `json:"orderReference"`
	}]
	if err := n.call(ctx, "initialize", http.MethodPost, "/v1/checkout/order", payload, &env); err != nil {
		return adapter.ChargeSession{}, err
	}
	if !env.ok() || env.Data.CheckoutLink == "" {
		return adapter.ChargeSession{}, n.rest.rejected("initialize", env.Description)
	}
	return adapter.ChargeSession{CheckoutURL: env.Data.CheckoutLink, ProviderRef: r.Reference}, nil
}

func (n *NombaProvider) VerifyCharge(ctx context.Context, reference string) (adapter.ChargeResult, error) {
	q := url.Values{}
	q.Set("idType", "ORDER_REFERENCE")
	q.Set("id", reference)
	var env nombaEnvelope[struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Order   struct {
			OrderReference string      `json:"orderReference"`
			Amount         json.Number `json:"amount"`
			Currency       string      `json:"currency"`
		} `json:"order"`
		TransactionDetails struct {
			TransactionID string `json:"transactionId"`
			Status        string `json:"status"`
		} `json:"transactionDetails"`
	}]
	if err := n.call(ctx, "verify", http.MethodGet, "/v1/checkout/transaction?"+q.Encode(), nil, &env); err != nil {
		return adapter.ChargeResult{}, err
	}
	if !env.ok() {
		return adapter.ChargeResult{}, n.rest.rejected("verify", env.Description)
	}
	amount, err := majorToMinor(env.Data.Order.Amount.String())
	if err != nil {
		return adapter.ChargeResult{}, n.rest.rejected("verify", err.Error())
	}
	status := adapter.ChargePending
	switch {
	case env.Data.Success:
		status = adapter.ChargeSucceeded
	case strings.EqualFold(env.Data.TransactionDetails.Status, "FAILED"):
		status = adapter.ChargeFailed
	}
	return adapter.ChargeResult{
		Status:                status,
		Amount:                amount,
		Currency:              env.Data.Order.Currency,
		ProviderTransactionID: env.Data.TransactionDetails.TransactionID,
		Message:               env.Data.Message,
	}, nil
}

func (n *NombaProvider) ListBanks(ctx context.Context) ([]model.Bank, error) {
	return n.banks.load(ctx, n.fetchBanks)
}

func (n *NombaProvider) fetchBanks(ctx context.Context) ([]model.Bank, error) {
	var env nombaEnvelope[struct {
		Results []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"results"`
	}]
	if err := n.call(ctx, "banks", http.MethodGet, "/v1/transfers/banks", nil, &env); err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, n.rest.rejected("banks", env.Description)
	}
	banks := make([]model.Bank, 0, len(env.Data.Results))
	for _, b := range env.Data.Results {
		banks = append(banks, model.Bank{Code: b.Code, Name: b.Name})
	}
	return banks, nil
}

func (n *NombaProvider) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	payload := map[string]string{"accountNumber": accountNumber, "bankCode": bankCode}
	var env nombaEnvelope[struct {
		AccountNumber string `json:"accountNumber"`
		AccountName   string `json:"accountName"`
	}]
	if err := n.call(ctx, "resolve", http.MethodPost, "/v1/transfers/bank/lookup", payload, &env); err != nil {
		if errors.Is(err, domain.ErrProviderUnreachable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrAccountResolutionFailed, err)
	}
	if !env.ok() || env.Data.AccountName == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrAccountResolutionFailed, env.Description)
	}
	return env.Data.AccountName, nil
}

func (n *NombaProvider) CreateRecipient(context.Context, model.BankDetails) (string, error) {
	return adapter.NoRecipient, nil
}

type nombaTransfer struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	MerchantTxRef string `json:"merchantTxRef"`
	Message       string `json:"message"`
}

func (n *NombaProvider) InitiateTransfer(ctx context.Context, r adapter.TransferRequest) (adapter.TransferResult, error) {
	payload := map[string]any{
		"amount":        minorToMajorNumber(r.Amount),
		"accountNumber": r.Bank.AccountNumber,
		"accountName":   r.Bank.AccountName,
		"bankCode":      r.Bank.BankCode,
		"merchantTxRef": r.PayoutID,
		"narration":     r.Reason,
	}
	var env nombaEnvelope[nombaTransfer]
	if err := n.call(ctx, "transfer", http.MethodPost, "/v1/transfers/bank", payload, &env); err != nil {
		return adapter.TransferResult{}, err
	}
	if !env.ok() {
		return adapter.TransferResult{}, n.rest.rejected("transfer", env.Description)
	}
	return adapter.TransferResult{
		ProviderRef: firstNonEmpty(env.Data.MerchantTxRef, r.PayoutID),
		Status:      nombaTransferStatus(env.Data.Status),
		Message:     env.Data.Message,
	}, nil
}

func (n *NombaProvider) TransferStatus(ctx context.Context, providerRef string) (adapter.TransferResult, error) {
	var env nombaEnvelope[nombaTransfer]
	path := "/v1/transactions/accounts/single?transactionRef=" + url.QueryEscape(providerRef)
	if err := n.call(ctx, "transfer_status", http.MethodGet, path, nil, &env); err != nil {
		return adapter.TransferResult{}, err
	}
	if !env.ok() {
		return adapter.TransferResult{}, n.rest.rejected("transfer_status", env.Description)
	}
	return adapter.TransferResult{
		ProviderRef: providerRef,
		Status:      nombaTransferStatus(env.Data.Status),
		Message:     env.Data.Message,
	}, nil
}

func nombaTransferStatus(s string) adapter.TransferStatus {
	switch strings.ToUpper(s) {
	case "SUCCESS", "SUCCESSFUL":
		return adapter.TransferSucceeded
	case "FAILED":
		return adapter.TransferFailed
	case "REFUND", "REVERSED":
		return adapter.TransferReversed
	default:
		return adapter.TransferPending
	}
}

func (n *NombaProvider) ParseWebhook(_ context.Context, header http.Header, body []byte) (adapter.WebhookEvent, error) {
	if !VerifyNombaSignature(n.webhookSecret, body, header.Get("nomba-signature")) {
		return adapter.WebhookEvent{}, domain.ErrInvalidSignature
	}
	var evt struct {
		EventType string `json:"event_type"`
		Data      struct {
			Transaction struct {
				TransactionID     string      `json:"transactionId"`
				MerchantTxRef     string      `json:"merchantTxRef"`
				TransactionAmount json.Number `json:"transactionAmount"`
				ResponseMessage   string      `json:"responseMessage"`
			} `json:"transaction"`
			Order struct {
				OrderReference string      `json:"orderReference"`
				Amount         json.Number `json:"amount"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: decode nomba event: %v", domain.ErrValidation, err)
	}
	out := adapter.WebhookEvent{Provider: NombaKey, Raw: evt.EventType, Type: adapter.EventIgnored}
	tx := evt.Data.Transaction
	switch evt.EventType {
	case "payment_success", "payment_failed":
		amount, err := majorToMinor(firstNonEmpty(evt.Data.Order.Amount.String(), tx.TransactionAmount.String()))
		if err != nil {
			return adapter.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		out.Reference = evt.Data.Order.OrderReference
		out.Amount = amount
		out.ProviderTransactionID = tx.TransactionID
		out.Type = adapter.EventChargeSucceeded
		if evt.EventType == "payment_failed" {
			out.Type = adapter.EventChargeFailed
			out.Message = tx.ResponseMessage
		}
	case "payout_success":
		out.Type = adapter.EventTransferSucceeded
		out.TransferRef = tx.MerchantTxRef
		out.PayoutID = tx.MerchantTxRef
	case "payout_failed":
		out.Type = adapter.EventTransferFailed
		out.TransferRef = tx.MerchantTxRef
		out.PayoutID = tx.MerchantTxRef
		out.Message = tx.ResponseMessage
	case "payout_refund":
		out.Type = adapter.EventTransferReversed
		out.TransferRef = tx.MerchantTxRef
		out.PayoutID = tx.MerchantTxRef
		out.Message = tx.ResponseMessage
	}
	return out, nil
}
