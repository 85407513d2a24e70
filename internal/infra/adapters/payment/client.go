package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-monetization/internal/domain"
	"video-monetization/internal/infra/metrics"
)

const defaultTimeout = 15 * time.Second

// ProviderError carries the HTTP outcome of a failed provider call.
// It unwraps to domain.ErrProviderUnreachable or domain.ErrProviderRejected.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Kind       error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: %v (http %d): %s", e.Provider, e.Op, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Provider, e.Op, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Kind }

func statusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// restClient is the shared JSON-over-HTTP transport for provider adapters.
type restClient struct {
	provider string
	baseURL  string
	client   *http.Client
}

func newRestClient(provider, baseURL string, timeout time.Duration) restClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return restClient{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (c restClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &ProviderError{Provider: c.provider, Op: path, Message: err.Error(), Kind: domain.ErrProviderRejected}
	}
	return req, nil
}

func (c restClient) jsonRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c restClient) formRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Transport failures,
// timeouts and 5xx map to ErrProviderUnreachable; 4xx and undecodable
// bodies map to ErrProviderRejected.
func (c restClient) do(op string, req *http.Request, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveProviderCall(c.provider, op, start, err) }()

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: c.provider, Op: op, Message: err.Error(), Kind: domain.ErrProviderUnreachable}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Message: err.Error(), Kind: domain.ErrProviderUnreachable}
	}
	switch {
	case resp.StatusCode >= 500:
		return &ProviderError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Message: errorMessage(b), Kind: domain.ErrProviderUnreachable}
	case resp.StatusCode >= 400:
		return &ProviderError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Message: errorMessage(b), Kind: domain.ErrProviderRejected}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &ProviderError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Kind: domain.ErrProviderRejected}
	}
	return nil
}

func (c restClient) rejected(op, msg string) error {
	return &ProviderError{Provider: c.provider, Op: op, Message: msg, Kind: domain.ErrProviderRejected}
}

// errorMessage extracts a human readable message from the common provider
// error envelopes, falling back to a truncated body.
func errorMessage(b []byte) string {
	var env struct {
		Message     string `json:"message"`
		Description string `json:"description"`
		Error       struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		switch {
		case env.Error.Message != "":
			return env.Error.Message
		case env.Message != "":
			return env.Message
		case env.Description != "":
			return env.Description
		}
	}
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
