package billing

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

	"github.com/google/uuid"

	"github.com/mywallet/mywallet/app/models"
)

// Gateway is the set of payment gateway calls the billing flows need.
type Gateway interface {
	CreatePlan(ctx context.Context, plan Plan) (string, error)
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error)
	GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error)
	CancelSubscription(ctx context.Context, id string) (*GatewaySubscription, error)
	PauseSubscription(ctx context.Context, id string) (*GatewaySubscription, error)
	ResumeSubscription(ctx context.Context, id string) (*GatewaySubscription, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetAuthorizedPayment(ctx context.Context, id string) (*AuthorizedPayment, error)
}

// PreferenceRequest describes a one-time checkout.
type PreferenceRequest struct {
	Plan      Plan
	Payer     Payer
	Reference string
}

// SubscriptionRequest describes a recurring authorization on an existing
// gateway plan.
type SubscriptionRequest struct {
	Plan           Plan
	ExternalPlanID string
	Payer          Payer
	CardTokenID    string
	Reference      string
}

// MercadoPagoClient talks to the Mercado Pago REST API. It never retries.
type MercadoPagoClient struct {
	AccessToken     string
	APIBaseURL      string
	CurrencyID      string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	StartDelay      time.Duration

	HTTPClient *http.Client
	Now        func() time.Time
}

// NewMercadoPagoClient builds a client from cfg.
func NewMercadoPagoClient(cfg Config) *MercadoPagoClient {
	cfg.normalize()
	return &MercadoPagoClient{
		AccessToken:     cfg.AccessToken,
		APIBaseURL:      cfg.APIBaseURL,
		CurrencyID:      cfg.CurrencyID,
		NotificationURL: cfg.NotificationURL(),
		SuccessURL:      cfg.ReturnURL("success"),
		FailureURL:      cfg.ReturnURL("failure"),
		PendingURL:      cfg.ReturnURL("pending"),
		StartDelay:      cfg.StartDelay,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		Now: time.Now,
	}
}

// NewMercadoPagoClientFromEnv reads Config from the environment.
func NewMercadoPagoClientFromEnv() (*MercadoPagoClient, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewMercadoPagoClient(cfg), nil
}

type autoRecurringRequest struct {
	Frequency         int     `json:"frequency"`
	FrequencyType     string  `json:"frequency_type"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	StartDate         string  `json:"start_date,omitempty"`
}

func (c *MercadoPagoClient) autoRecurring(plan Plan) autoRecurringRequest {
	return autoRecurringRequest{
		Frequency:         plan.Frequency.Count,
		FrequencyType:     plan.Frequency.Unit,
		TransactionAmount: plan.Price.InexactFloat64(),
		CurrencyID:        c.CurrencyID,
	}
}

// CreatePlan registers a recurring plan at the gateway and returns its id.
func (c *MercadoPagoClient) CreatePlan(ctx context.Context, plan Plan) (string, error) {
	if !plan.Recurring() {
		return "", &ValidationError{Field: "planType", Message: "plan " + plan.Key + " is not recurring"}
	}
	body := map[string]any{
		"reason":         plan.DisplayName,
		"auto_recurring": c.autoRecurring(plan),
		"back_url":       c.SuccessURL,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/preapproval_plan", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", errors.New("mercadopago plan creation returned empty id")
	}
	return out.ID, nil
}

// CreatePreference creates a one-time checkout for req.Plan.
func (c *MercadoPagoClient) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	first, last := req.Payer.SplitName()
	body := map[string]any{
		"items": []map[string]any{{
			"id":          req.Plan.Key,
			"title":       req.Plan.DisplayName,
			"description": req.Plan.Description,
			"quantity":    1,
			"currency_id": c.CurrencyID,
			"unit_price":  req.Plan.Price.InexactFloat64(),
		}},
		"payer": map[string]any{
			"email":   req.Payer.Email,
			"name":    first,
			"surname": last,
		},
		"back_urls": map[string]string{
			"success": c.SuccessURL,
			"failure": c.FailureURL,
			"pending": c.PendingURL,
		},
		"external_reference": req.Reference,
	}
	if c.SuccessURL != "" {
		body["auto_return"] = "approved"
	}
	if c.NotificationURL != "" {
		body["notification_url"] = c.NotificationURL
	}

	var out Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubscription authorizes recurring charges on the payer's card. The
// first charge is scheduled StartDelay ahead.
func (c *MercadoPagoClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error) {
	if strings.TrimSpace(req.CardTokenID) == "" {
		return nil, &ValidationError{Field: "cardTokenId", Message: "a card token is required for recurring plans"}
	}
	if !req.Plan.Recurring() {
		return nil, &ValidationError{Field: "planType", Message: "plan " + req.Plan.Key + " is not recurring"}
	}

	ar := c.autoRecurring(req.Plan)
	ar.StartDate = c.Now().Add(c.StartDelay).UTC().Format("2006-01-02T15:04:05.000Z07:00")

	first, last := req.Payer.SplitName()
	body := map[string]any{
		"preapproval_plan_id": req.ExternalPlanID,
		"reason":              req.Plan.DisplayName,
		"external_reference":  req.Reference,
		"payer_email":         req.Payer.Email,
		"payer": map[string]string{
			"email":      req.Payer.Email,
			"first_name": first,
			"last_name":  last,
		},
		"card_token_id":  strings.TrimSpace(req.CardTokenID),
		"auto_recurring": ar,
		"back_url":       c.SuccessURL,
		"status":         GatewayStatusAuthorized,
	}
	if c.NotificationURL != "" {
		body["notification_url"] = c.NotificationURL
	}

	var out GatewaySubscription
	if err := c.do(ctx, http.MethodPost, "/preapproval", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MercadoPagoClient) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	var out GatewaySubscription
	if err := c.do(ctx, http.MethodGet, "/preapproval/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MercadoPagoClient) CancelSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return c.setSubscriptionStatus(ctx, id, GatewayStatusCancelled)
}

func (c *MercadoPagoClient) PauseSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return c.setSubscriptionStatus(ctx, id, GatewayStatusPaused)
}

func (c *MercadoPagoClient) ResumeSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return c.setSubscriptionStatus(ctx, id, GatewayStatusAuthorized)
}

func (c *MercadoPagoClient) setSubscriptionStatus(ctx context.Context, id, status string) (*GatewaySubscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &ValidationError{Field: "subscriptionId", Message: "is required"}
	}
	var out GatewaySubscription
	if err := c.do(ctx, http.MethodPut, "/preapproval/"+url.PathEscape(id), map[string]string{"status": status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *MercadoPagoClient) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	var out Payment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", id, err)
	}
	out.Raw = raw
	return &out, nil
}

func (c *MercadoPagoClient) GetAuthorizedPayment(ctx context.Context, id string) (*AuthorizedPayment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/authorized_payments/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	var out AuthorizedPayment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode authorized payment %s: %w", id, err)
	}
	out.Raw = raw
	return &out, nil
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path string, in, out any) error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("X-Idempotency-Key", uuid.NewString())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrGatewayUnavailable, method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{StatusCode: resp.StatusCode, Message: gatewayMessage(resp.StatusCode, respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// gatewayMessage extracts a human readable message from an error body.
func gatewayMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Cause   []struct {
			Description string `json:"description"`
		} `json:"cause"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if m := strings.TrimSpace(payload.Message); m != "" {
			return m
		}
		for _, cause := range payload.Cause {
			if d := strings.TrimSpace(cause.Description); d != "" {
				return d
			}
		}
		if e := strings.TrimSpace(payload.Error); e != "" {
			return e
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "payment gateway request failed"
}

// MapSubscriptionStatus translates a gateway subscription status into the
// user's subscription status. ok is false for statuses without a mapping.
func MapSubscriptionStatus(gatewayStatus string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case GatewayStatusAuthorized:
		return models.SubscriptionStatusActive, true
	case GatewayStatusPending, GatewayStatusPaused:
		return models.SubscriptionStatusInactive, true
	case GatewayStatusCancelled:
		return models.SubscriptionStatusCancelled, true
	default:
		return "", false
	}
}
