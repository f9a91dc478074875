// Package backend is a client for the restaurant REST backend's auth and
// billing endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	pathLogin              = "/api/auth/login/"
	pathAccess             = "/api/billing/subscription/access/"
	pathSubscriptionStatus = "/api/billing/subscription/status/"
	pathInitiatePayment    = "/api/billing/payment/initiate/"
	pathVerifyPayment      = "/api/billing/payment/verify/"
	pathManualPayment      = "/api/billing/payment/manual/"
	pathPaymentHistory     = "/api/billing/payment/history/"
	pathBillingHistory     = "/api/billing/billing/history/"
	pathRefundRequest      = "/api/billing/refund-request/"
	pathRefundRequests     = "/api/billing/refund-requests/"
	pathAllRefundRequests  = "/api/billing/all-refund-requests/"

	maxErrorBody = 64 << 10
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if code, ok := body.Error.(string); ok {
			apiErr.Code = code
		}
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// listEnvelope accepts a bare JSON array or a paginated {"results": [...]} body.
type listEnvelope[T any] []T

func (l *listEnvelope[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return err
	}
	*l = page.Results
	return nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckAccess asks whether the principal behind token may use the admin app.
// Any non-200 response is returned as an *APIError.
func (c *Client) CheckAccess(ctx context.Context, token string) (*AccessResponse, error) {
	var resp AccessResponse
	if err := c.do(ctx, http.MethodGet, pathAccess, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubscriptionStatus(ctx context.Context, token string) (*SubscriptionStatus, error) {
	var resp SubscriptionStatus
	if err := c.do(ctx, http.MethodGet, pathSubscriptionStatus, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) InitiatePayment(ctx context.Context, token string, req InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	var resp InitiatePaymentResponse
	if err := c.do(ctx, http.MethodPost, pathInitiatePayment, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyPayment forwards the gateway's return query string unchanged.
func (c *Client) VerifyPayment(ctx context.Context, token string, query url.Values) (*VerifyResponse, error) {
	path := pathVerifyPayment
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp VerifyResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitManualPayment(ctx context.Context, token string, req ManualPaymentRequest) (*ManualPaymentResponse, error) {
	var resp ManualPaymentResponse
	if err := c.do(ctx, http.MethodPost, pathManualPayment, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ManualPayment(ctx context.Context, token, transactionID string) (*ManualPayment, error) {
	var resp ManualPayment
	path := pathManualPayment + url.PathEscape(transactionID) + "/"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PaymentHistory(ctx context.Context, token string) ([]PaymentRecord, error) {
	var resp listEnvelope[PaymentRecord]
	if err := c.do(ctx, http.MethodGet, pathPaymentHistory, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) BillingHistory(ctx context.Context, token string) ([]BillingRecord, error) {
	var resp listEnvelope[BillingRecord]
	if err := c.do(ctx, http.MethodGet, pathBillingHistory, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateRefundRequest(ctx context.Context, token string, req CreateRefundRequest) (*RefundRequest, error) {
	var resp RefundRequest
	if err := c.do(ctx, http.MethodPost, pathRefundRequest, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundRequests lists the caller's refund requests, or every restaurant's
// when all is set.
func (c *Client) RefundRequests(ctx context.Context, token string, all bool) ([]RefundRequest, error) {
	path := pathRefundRequests
	if all {
		path = pathAllRefundRequests
	}
	var resp listEnvelope[RefundRequest]
	if err := c.do(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
