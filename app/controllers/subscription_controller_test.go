package controllers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
)

func newSubscriptionApp(engine *fakeEngine) *SubscriptionController {
	return NewSubscriptionController(engine)
}

func sampleSubscription() *models.Subscription {
	return &models.Subscription{
		ID:        "sub-1",
		UserID:    "u1",
		ProfileID: "p1",
		Name:      "Streaming",
		Amount:    decimal.RequireFromString("39.90"),
		Frequency: models.FrequencyMonthly,
		Status:    models.RecurringStatusActive,
	}
}

func jsonRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return withIdentity(req, "u1", "p1")
}

func TestSubscriptionController_Create(t *testing.T) {
	engine := &fakeEngine{sub: sampleSubscription()}
	sc := newSubscriptionApp(engine)
	app := newTestApp()
	app.Post("/subscriptions", sc.HandleCreate)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/subscriptions",
		`{"name":"Streaming","amount":"39.90","frequency":"monthly","start_date":"2025-01-31","card_id":"card-1","auto_generate":true}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "sub-1", decodeBody(t, resp)["id"])

	assert.Equal(t, recurring.Owner{UserID: "u1", ProfileID: "p1"}, engine.owner)
	assert.Equal(t, "Streaming", engine.created.Name)
	assert.True(t, decimal.RequireFromString("39.90").Equal(engine.created.Amount))
	assert.Equal(t, models.FrequencyMonthly, engine.created.Frequency)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), engine.created.StartDate)
	require.NotNil(t, engine.created.CardID)
	assert.Equal(t, "card-1", *engine.created.CardID)
	assert.True(t, engine.created.AutoGenerate)
}

func TestSubscriptionController_CreateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown frequency", `{"name":"x","amount":"1","frequency":"DAILY","start_date":"2025-01-01"}`, ""},
		{"bad start date", `{"name":"x","amount":"1","frequency":"WEEKLY","start_date":"01/02/2025"}`, "start_date"},
		{"malformed json", `{"name":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{sub: sampleSubscription()}
			app := newTestApp()
			app.Post("/subscriptions", newSubscriptionApp(engine).HandleCreate)

			resp, err := app.Test(jsonRequest(http.MethodPost, "/subscriptions", tt.body), -1)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}
			assert.Empty(t, engine.created.Name)
		})
	}
}

func TestSubscriptionController_Update(t *testing.T) {
	engine := &fakeEngine{sub: sampleSubscription()}
	app := newTestApp()
	app.Put("/subscriptions/:id", newSubscriptionApp(engine).HandleUpdate)

	resp, err := app.Test(jsonRequest(http.MethodPut, "/subscriptions/sub-1", `{"frequency":"yearly","card_id":""}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, engine.updated.Frequency)
	assert.Equal(t, models.FrequencyYearly, *engine.updated.Frequency)
	require.NotNil(t, engine.updated.CardID)
	assert.Equal(t, "", *engine.updated.CardID)
	assert.Nil(t, engine.updated.Name)
}

func TestSubscriptionController_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", recurring.ErrSubscriptionNotFound, http.StatusNotFound},
		{"card not found", fmt.Errorf("check card: %w", recurring.ErrCardNotFound), http.StatusNotFound},
		{"cancelled", recurring.ErrSubscriptionCancelled, http.StatusConflict},
		{"already paid", recurring.ErrAlreadyPaid, http.StatusConflict},
		{"validation", &recurring.ValidationError{Field: "amount", Message: "must be greater than zero"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{sub: sampleSubscription(), err: tt.err}
			app := newTestApp()
			app.Post("/subscriptions/:id/pay", newSubscriptionApp(engine).HandlePay)

			resp, err := app.Test(jsonRequest(http.MethodPost, "/subscriptions/sub-1/pay", ""), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestSubscriptionController_Pay(t *testing.T) {
	engine := &fakeEngine{sub: sampleSubscription()}
	app := newTestApp()
	app.Post("/subscriptions/:id/pay", newSubscriptionApp(engine).HandlePay)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/subscriptions/sub-1/pay", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, engine.paymentDate.IsZero())

	resp, err = app.Test(jsonRequest(http.MethodPost, "/subscriptions/sub-1/pay", `{"payment_date":"2025-02-28"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), engine.paymentDate)
	assert.Equal(t, "entry-1", decodeBody(t, resp)["entry_id"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/subscriptions/sub-1/pay", `{"payment_date":"yesterday"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "payment_date", decodeBody(t, resp)["field"])
}

func TestSubscriptionController_ListAndInsights(t *testing.T) {
	engine := &fakeEngine{sub: sampleSubscription()}
	sc := newSubscriptionApp(engine)
	app := newTestApp()
	app.Get("/subscriptions", sc.HandleList)
	app.Get("/subscriptions/summary", sc.HandleSummary)
	app.Get("/subscriptions/upcoming", sc.HandleUpcoming)
	app.Get("/subscriptions/alerts", sc.HandleAlerts)
	app.Post("/subscriptions/generate", sc.HandleGenerate)
	app.Get("/subscriptions/:id", sc.HandleGet)
	app.Post("/subscriptions/:id/cancel", sc.HandleCancel)

	resp, err := app.Test(jsonRequest(http.MethodGet, "/subscriptions?status=ACTIVE", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ACTIVE", engine.filter.Status)
	assert.Len(t, decodeBody(t, resp)["subscriptions"], 1)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/summary", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, float64(1), decodeBody(t, resp)["active_count"])

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/upcoming", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, defaultUpcomingDays, engine.horizon)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/upcoming?days=7", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, float64(7), decodeBody(t, resp)["days"])
	assert.Equal(t, 7, engine.horizon)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/upcoming?days=soon", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/alerts", ""), -1)
	require.NoError(t, err)
	alerts := decodeBody(t, resp)["alerts"].([]any)
	require.Len(t, alerts, 1)
	assert.Equal(t, recurring.SeverityHigh, alerts[0].(map[string]any)["severity"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/subscriptions/generate", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, float64(2), decodeBody(t, resp)["created"])

	resp, err = app.Test(jsonRequest(http.MethodGet, "/subscriptions/sub-1", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, "Streaming", decodeBody(t, resp)["name"])

	resp, err = app.Test(jsonRequest(http.MethodPost, "/subscriptions/sub-1/cancel", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, recurring.Owner{UserID: "u1", ProfileID: "p1"}, engine.owner)
}
