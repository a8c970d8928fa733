package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/mywallet/mywallet/app/models"
)

type fakeRepository struct {
	mu       sync.Mutex
	users    map[string]models.User
	payments map[string]models.PaymentHistory
	events   map[string]models.BillingWebhookEvent
	nextID   uint
}

func newFakeRepository(users ...models.User) *fakeRepository {
	r := &fakeRepository{
		users:    map[string]models.User{},
		payments: map[string]models.PaymentHistory{},
		events:   map[string]models.BillingWebhookEvent{},
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// Transaction serializes callers and restores users and payments on error.
func (r *fakeRepository) Transaction(fn func(tx Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make(map[string]models.User, len(r.users))
	for k, v := range r.users {
		users[k] = v
	}
	payments := make(map[string]models.PaymentHistory, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}

	if err := fn(lockedRepository{r}); err != nil {
		r.users, r.payments = users, payments
		return err
	}
	return nil
}

func (r *fakeRepository) GetUser(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.GetUser(id)
}

func (r *fakeRepository) FindUserBySubscriptionID(subscriptionID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.FindUserBySubscriptionID(subscriptionID)
}

func (r *fakeRepository) SaveUserSubscription(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.SaveUserSubscription(user)
}

func (r *fakeRepository) PaymentExists(externalPaymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.PaymentExists(externalPaymentID)
}

func (r *fakeRepository) CreatePayment(payment *models.PaymentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.CreatePayment(payment)
}

func (r *fakeRepository) ListPayments(userID string, limit int) ([]models.PaymentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lockedRepository{r}.ListPayments(userID, limit)
}

func (r *fakeRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if stored, ok := r.events[key]; ok {
		return false, &stored, nil
	}
	r.nextID++
	event.ID = r.nextID
	r.events[key] = *event
	stored := *event
	return true, &stored, nil
}

func (r *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.events {
		if e.ID == id {
			e.ProcessingError = processingError
			r.events[k] = e
		}
	}
	return nil
}

func (r *fakeRepository) user(id string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeRepository) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

// lockedRepository operates on the maps while the caller holds mu.
type lockedRepository struct {
	r *fakeRepository
}

func (l lockedRepository) Transaction(fn func(tx Repository) error) error {
	return fn(l)
}

func (l lockedRepository) GetUser(id string) (*models.User, error) {
	u, ok := l.r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (l lockedRepository) FindUserBySubscriptionID(subscriptionID string) (*models.User, error) {
	for _, u := range l.r.users {
		if u.GatewaySubscriptionID() == subscriptionID {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (l lockedRepository) SaveUserSubscription(user *models.User) error {
	l.r.users[user.ID] = *user
	return nil
}

func (l lockedRepository) PaymentExists(externalPaymentID string) (bool, error) {
	_, ok := l.r.payments[externalPaymentID]
	return ok, nil
}

func (l lockedRepository) CreatePayment(payment *models.PaymentHistory) error {
	if _, ok := l.r.payments[payment.ExternalPaymentID]; ok {
		return ErrIdempotencyConflict
	}
	l.r.payments[payment.ExternalPaymentID] = *payment
	return nil
}

func (l lockedRepository) ListPayments(userID string, limit int) ([]models.PaymentHistory, error) {
	var out []models.PaymentHistory
	for _, p := range l.r.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l lockedRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	panic("not used inside transactions")
}

func (l lockedRepository) MarkWebhookProcessed(id uint, processingError string) error {
	panic("not used inside transactions")
}

type fakeGateway struct {
	mu                 sync.Mutex
	payments           map[string]*Payment
	subscriptions      map[string]*GatewaySubscription
	authorizedPayments map[string]*AuthorizedPayment
	preferences        []PreferenceRequest
	subscriptionReqs   []SubscriptionRequest
	statusChanges      []string
	createdPlans       int
	err                error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		payments:           map[string]*Payment{},
		subscriptions:      map[string]*GatewaySubscription{},
		authorizedPayments: map[string]*AuthorizedPayment{},
	}
}

func (g *fakeGateway) CreatePlan(ctx context.Context, plan Plan) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createdPlans++
	return "plan-" + plan.Key, g.err
}

func (g *fakeGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.preferences = append(g.preferences, req)
	return &Preference{ID: "pref-1", InitPoint: "https://checkout.example/pref-1"}, nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.subscriptionReqs = append(g.subscriptionReqs, req)
	return &GatewaySubscription{ID: "sub-1", Status: GatewayStatusPending, ExternalReference: req.Reference}, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, &GatewayError{StatusCode: 404, Message: "preapproval not found"}
	}
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) setStatus(id, status string) (*GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.statusChanges = append(g.statusChanges, id+"="+status)
	if sub, ok := g.subscriptions[id]; ok {
		sub.Status = status
	}
	return &GatewaySubscription{ID: id, Status: status}, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return g.setStatus(id, GatewayStatusCancelled)
}

func (g *fakeGateway) PauseSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return g.setStatus(id, GatewayStatusPaused)
}

func (g *fakeGateway) ResumeSubscription(ctx context.Context, id string) (*GatewaySubscription, error) {
	return g.setStatus(id, GatewayStatusAuthorized)
}

func (g *fakeGateway) GetPayment(ctx context.Context, id string) (*Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[id]
	if !ok {
		return nil, &GatewayError{StatusCode: 404, Message: "Payment not found"}
	}
	cp := *p
	return &cp, nil
}

func (g *fakeGateway) GetAuthorizedPayment(ctx context.Context, id string) (*AuthorizedPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.authorizedPayments[id]
	if !ok {
		return nil, &GatewayError{StatusCode: 404, Message: "authorized payment not found"}
	}
	cp := *p
	return &cp, nil
}
