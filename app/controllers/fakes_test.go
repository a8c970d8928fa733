package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/billing"
	"github.com/mywallet/mywallet/internal/pkg/jobqueue"
	"github.com/mywallet/mywallet/internal/pkg/middleware"
	"github.com/mywallet/mywallet/internal/pkg/recurring"
	"github.com/mywallet/mywallet/internal/pkg/usercontext"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.UserContextMiddleware)
	return app
}

func withIdentity(req *http.Request, userID, profileID string) *http.Request {
	req.Header.Set(usercontext.HeaderUserID, userID)
	if profileID != "" {
		req.Header.Set(usercontext.HeaderProfileID, profileID)
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

type fakeGatewaySubscriptions struct {
	subscribeCalls []string
	result         *billing.SubscribeResult
	status         *billing.StatusView
	history        []models.PaymentHistory
	err            error
}

func (f *fakeGatewaySubscriptions) Plans(ctx context.Context) []billing.PlanView {
	return []billing.PlanView{{ID: "MONTHLY", DisplayName: "Monthly"}}
}

func (f *fakeGatewaySubscriptions) Subscribe(ctx context.Context, userID, planType, cardTokenID string) (*billing.SubscribeResult, error) {
	f.subscribeCalls = append(f.subscribeCalls, userID+"|"+planType+"|"+cardTokenID)
	return f.result, f.err
}

func (f *fakeGatewaySubscriptions) Status(ctx context.Context, userID string) (*billing.StatusView, error) {
	return f.status, f.err
}

func (f *fakeGatewaySubscriptions) Cancel(ctx context.Context, userID string) (*billing.StatusView, error) {
	return f.status, f.err
}

func (f *fakeGatewaySubscriptions) Pause(ctx context.Context, userID string) (*billing.GatewaySubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &billing.GatewaySubscription{ID: "pre-1", Status: "paused"}, nil
}

func (f *fakeGatewaySubscriptions) Resume(ctx context.Context, userID string) (*billing.GatewaySubscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &billing.GatewaySubscription{ID: "pre-1", Status: "authorized"}, nil
}

func (f *fakeGatewaySubscriptions) History(ctx context.Context, userID string) ([]models.PaymentHistory, error) {
	return f.history, f.err
}

type fakeJournal struct {
	mu        sync.Mutex
	events    map[string]*models.BillingWebhookEvent
	inputs    []billing.WebhookEventInput
	processed []uint
	err       error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{events: map[string]*models.BillingWebhookEvent{}}
}

func (f *fakeJournal) RecordWebhookEvent(ctx context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, nil, f.err
	}
	f.inputs = append(f.inputs, in)
	if existing, ok := f.events[in.ProviderEventID]; ok {
		return false, existing, nil
	}
	event := &models.BillingWebhookEvent{
		ID:              uint(len(f.events) + 1),
		Provider:        in.Provider,
		ProviderEventID: in.ProviderEventID,
		EventType:       in.EventType,
		ResourceID:      in.ResourceID,
		SignatureValid:  in.SignatureValid,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.events[in.ProviderEventID] = event
	return true, event, nil
}

func (f *fakeJournal) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, webhookEventID)
	return nil
}

type dispatchedWebhook struct {
	id         uint
	eventType  string
	resourceID string
}

type fakeDispatcher struct {
	dispatched []dispatchedWebhook
	archived   []string
}

func (f *fakeDispatcher) DispatchWebhook(webhookEventID uint, eventType, resourceID string) {
	f.dispatched = append(f.dispatched, dispatchedWebhook{webhookEventID, eventType, resourceID})
}

func (f *fakeDispatcher) ArchivePayload(provider, eventID string, receivedAt time.Time, body []byte) {
	f.archived = append(f.archived, provider+"/"+eventID)
}

type fakeEngine struct {
	owner       recurring.Owner
	created     recurring.CreateInput
	updated     recurring.UpdateInput
	filter      recurring.ListFilter
	paymentDate time.Time
	horizon     int
	sub         *models.Subscription
	err         error
}

func (f *fakeEngine) Create(ctx context.Context, owner recurring.Owner, in recurring.CreateInput) (*models.Subscription, error) {
	f.owner, f.created = owner, in
	return f.sub, f.err
}

func (f *fakeEngine) Update(ctx context.Context, owner recurring.Owner, id string, in recurring.UpdateInput) (*models.Subscription, error) {
	f.owner, f.updated = owner, in
	return f.sub, f.err
}

func (f *fakeEngine) Cancel(ctx context.Context, owner recurring.Owner, id string) (*models.Subscription, error) {
	f.owner = owner
	return f.sub, f.err
}

func (f *fakeEngine) Get(ctx context.Context, owner recurring.Owner, id string) (*models.Subscription, error) {
	f.owner = owner
	return f.sub, f.err
}

func (f *fakeEngine) List(ctx context.Context, owner recurring.Owner, filter recurring.ListFilter) ([]models.Subscription, error) {
	f.owner, f.filter = owner, filter
	if f.err != nil {
		return nil, f.err
	}
	return []models.Subscription{*f.sub}, nil
}

func (f *fakeEngine) MarkPaid(ctx context.Context, owner recurring.Owner, id string, paymentDate time.Time) (*recurring.PaymentResult, error) {
	f.owner, f.paymentDate = owner, paymentDate
	if f.err != nil {
		return nil, f.err
	}
	return &recurring.PaymentResult{Subscription: f.sub, EntryID: "entry-1", PaymentDate: paymentDate}, nil
}

func (f *fakeEngine) GeneratePendingCharges(ctx context.Context, owner recurring.Owner) (recurring.GenerateResult, error) {
	f.owner = owner
	return recurring.GenerateResult{Created: 2, Skipped: 1}, f.err
}

func (f *fakeEngine) Summary(ctx context.Context, owner recurring.Owner) (*recurring.Summary, error) {
	f.owner = owner
	return &recurring.Summary{ActiveCount: 1}, f.err
}

func (f *fakeEngine) Upcoming(ctx context.Context, owner recurring.Owner, horizonDays int) ([]recurring.UpcomingCharge, error) {
	f.owner, f.horizon = owner, horizonDays
	return []recurring.UpcomingCharge{}, f.err
}

func (f *fakeEngine) Alerts(ctx context.Context, owner recurring.Owner) ([]recurring.Alert, error) {
	f.owner = owner
	return []recurring.Alert{{Type: recurring.AlertUpcomingCharge, Severity: recurring.SeverityHigh}}, f.err
}

type fakeQueueStats struct {
	err error
}

func (f *fakeQueueStats) GetQueueSize(ctx context.Context) (int64, error) { return 4, f.err }

func (f *fakeQueueStats) GetProcessingSize(ctx context.Context) (int64, error) { return 1, f.err }

func (f *fakeQueueStats) GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error) {
	return map[jobqueue.JobStatus]int64{jobqueue.JobStatusCompleted: 10}, f.err
}
