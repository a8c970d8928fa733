// Package recurring manages user defined recurring expenses: their billing
// calendar, the ledger entries they generate and the read side rollups.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/ledger"
)

const (
	DefaultAlertDaysBefore = 3
	DefaultCategory        = "OTHER"

	// maxCatchUpCycles bounds how many missed cycles a single run books for
	// one subscription.
	maxCatchUpCycles = 120
)

// Engine owns the subscription lifecycle.
type Engine struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used to derive "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine on top of repo.
func NewEngine(repo Repository, opts ...Option) *Engine {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	e := &Engine{
		repo:     repo,
		validate: v,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEngineFromDB wires an engine to the GORM repository.
func NewEngineFromDB(db *gorm.DB, opts ...Option) *Engine {
	return NewEngine(NewRepository(db), opts...)
}

func (e *Engine) today() time.Time {
	return DateOnly(e.now())
}

// Create persists a new subscription. When AutoGenerate is set the first
// pending charge is booked at the start date; a failure there is logged and
// does not undo the subscription.
func (e *Engine) Create(ctx context.Context, owner Owner, in CreateInput) (*models.Subscription, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := e.validateInput(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	if !in.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, in.Frequency)
	}
	if in.StartDate.IsZero() {
		return nil, invalid("start_date", "is required")
	}

	cardID := normalizeID(in.CardID)
	bankAccountID := normalizeID(in.BankAccountID)
	if err := e.checkPaymentMethods(owner, cardID, bankAccountID); err != nil {
		return nil, err
	}

	alertDays := DefaultAlertDaysBefore
	if in.AlertDaysBefore != nil {
		alertDays = *in.AlertDaysBefore
	}

	start := DateOnly(in.StartDate)
	sub := &models.Subscription{
		UserID:          owner.UserID,
		ProfileID:       owner.ProfileID,
		CardID:          cardID,
		BankAccountID:   bankAccountID,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Amount:          in.Amount.Round(2),
		Frequency:       in.Frequency,
		Category:        normalizeCategory(in.Category),
		Status:          models.RecurringStatusActive,
		StartDate:       start,
		NextBillingDate: Advance(start, in.Frequency),
		AutoGenerate:    in.AutoGenerate,
		AlertDaysBefore: alertDays,
	}

	if err := e.repo.CreateSubscription(sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if sub.AutoGenerate {
		if err := e.repo.Transaction(func(tx Repository) error {
			_, err := bookPendingCharge(tx, sub, start)
			return err
		}); err != nil {
			log.Warnf("[Recurring] First charge for subscription %s not booked: %v", sub.ID, err)
		}
	}

	return sub, nil
}

// Update applies a partial update. A frequency change advances the stored
// next billing date by the new frequency.
func (e *Engine) Update(ctx context.Context, owner Owner, id string, in UpdateInput) (*models.Subscription, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if err := e.validateInput(in); err != nil {
		return nil, err
	}
	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, invalid("amount", "must be greater than zero")
	}
	if in.Frequency != nil && !in.Frequency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, *in.Frequency)
	}

	var updated *models.Subscription
	err := e.repo.Transaction(func(tx Repository) error {
		sub, err := tx.LockSubscription(owner, id)
		if err != nil {
			return err
		}

		if in.CardID != nil {
			cardID := normalizeID(in.CardID)
			if err := checkCard(tx, owner, cardID); err != nil {
				return err
			}
			sub.CardID = cardID
		}
		if in.BankAccountID != nil {
			accountID := normalizeID(in.BankAccountID)
			if err := checkBankAccount(tx, owner, accountID); err != nil {
				return err
			}
			sub.BankAccountID = accountID
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return invalid("name", "must not be empty")
			}
			sub.Name = name
		}
		if in.Description != nil {
			sub.Description = strings.TrimSpace(*in.Description)
		}
		if in.Amount != nil {
			sub.Amount = in.Amount.Round(2)
		}
		if in.Category != nil {
			sub.Category = normalizeCategory(*in.Category)
		}
		if in.AutoGenerate != nil {
			sub.AutoGenerate = *in.AutoGenerate
		}
		if in.AlertDaysBefore != nil {
			sub.AlertDaysBefore = *in.AlertDaysBefore
		}
		if in.Frequency != nil && *in.Frequency != sub.Frequency {
			sub.Frequency = *in.Frequency
			sub.NextBillingDate = AdvanceFrom(sub.NextBillingDate, sub.StartDate, sub.Frequency)
		}

		sub.StartDate = DateOnly(sub.StartDate)
		sub.NextBillingDate = DateOnly(sub.NextBillingDate)
		if err := tx.SaveSubscription(sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel stops a subscription. Cancelling twice returns the stored state.
func (e *Engine) Cancel(ctx context.Context, owner Owner, id string) (*models.Subscription, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}

	var cancelled *models.Subscription
	err := e.repo.Transaction(func(tx Repository) error {
		sub, err := tx.LockSubscription(owner, id)
		if err != nil {
			return err
		}
		if !sub.IsActive() {
			cancelled = sub
			return nil
		}

		today := e.today()
		sub.Status = models.RecurringStatusCancelled
		sub.EndDate = &today
		if err := tx.SaveSubscription(sub); err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
		cancelled = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// Get returns one subscription of the owner.
func (e *Engine) Get(ctx context.Context, owner Owner, id string) (*models.Subscription, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	return e.repo.GetSubscription(owner, id)
}

// List returns the owner's subscriptions ordered by next billing date.
func (e *Engine) List(ctx context.Context, owner Owner, filter ListFilter) ([]models.Subscription, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	status := strings.ToUpper(strings.TrimSpace(filter.Status))
	if status != "" && status != models.RecurringStatusActive && status != models.RecurringStatusCancelled {
		return nil, invalid("status", "must be ACTIVE or CANCELLED")
	}
	return e.repo.ListSubscriptions(owner, status)
}

// GeneratePendingCharges books a pending ledger entry for every billing date
// up to today of the owner's active auto-generating subscriptions. Running it
// again on the same day books nothing.
func (e *Engine) GeneratePendingCharges(ctx context.Context, owner Owner) (GenerateResult, error) {
	if err := checkOwner(owner); err != nil {
		return GenerateResult{}, err
	}
	return e.generateFor(ctx, owner, e.today())
}

// GenerateAllPendingCharges runs GeneratePendingCharges for every profile
// with a due subscription.
func (e *Engine) GenerateAllPendingCharges(ctx context.Context) (GenerateResult, error) {
	today := e.today()
	owners, err := e.repo.ListOwnersWithDueSubscriptions(today)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list due owners: %w", err)
	}

	var total GenerateResult
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := e.generateFor(ctx, owner, today)
		total.add(res)
		if err != nil {
			log.Errorf("[Recurring] Pending charges for user %s profile %s failed: %v", owner.UserID, owner.ProfileID, err)
		}
	}
	return total, nil
}

func (e *Engine) generateFor(ctx context.Context, owner Owner, today time.Time) (GenerateResult, error) {
	var res GenerateResult

	due, err := e.repo.ListDueSubscriptions(owner, today)
	if err != nil {
		return res, fmt.Errorf("list due subscriptions: %w", err)
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id := due[i].ID
		err := e.repo.Transaction(func(tx Repository) error {
			sub, err := tx.LockSubscription(owner, id)
			if err != nil {
				return err
			}
			if !sub.IsActive() || !sub.AutoGenerate {
				return nil
			}

			advanced := false
			for n := 0; n < maxCatchUpCycles && !DateOnly(sub.NextBillingDate).After(today); n++ {
				billingDate := DateOnly(sub.NextBillingDate)
				created, err := bookPendingCharge(tx, sub, billingDate)
				if err != nil {
					return err
				}
				if created {
					res.Created++
				} else {
					res.Skipped++
				}
				sub.NextBillingDate = AdvanceFrom(billingDate, sub.StartDate, sub.Frequency)
				advanced = true
			}
			if !advanced {
				return nil
			}
			sub.StartDate = DateOnly(sub.StartDate)
			return tx.SaveSubscription(sub)
		})
		if err != nil {
			res.Failed++
			log.Errorf("[Recurring] Generating charge for subscription %s failed: %v", id, err)
		}
	}

	return res, nil
}

// bookPendingCharge inserts the pending entry for billingDate unless one
// already exists. It reports whether an entry was created.
func bookPendingCharge(tx Repository, sub *models.Subscription, billingDate time.Time) (bool, error) {
	existing, err := tx.FindCharge(sub.ID, billingDate)
	if err != nil {
		return false, fmt.Errorf("look up charge: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	subID := sub.ID
	if sub.HasCard() {
		entry := &models.CardTransaction{
			UserID:         sub.UserID,
			ProfileID:      sub.ProfileID,
			CardID:         *sub.CardID,
			SubscriptionID: &subID,
			Description:    sub.Name,
			Amount:         sub.Amount,
			Category:       sub.Category,
			Type:           models.TransactionTypeExpense,
			Status:         models.CardTransactionStatusPending,
			Date:           billingDate,
		}
		if err := tx.CreateCardTransaction(entry); err != nil {
			return false, fmt.Errorf("create card transaction: %w", err)
		}
		return true, nil
	}

	entry := &models.ManualTransaction{
		UserID:         sub.UserID,
		ProfileID:      sub.ProfileID,
		BankAccountID:  sub.BankAccountID,
		SubscriptionID: &subID,
		Description:    sub.Name,
		Amount:         sub.Amount,
		Category:       sub.Category,
		Type:           models.TransactionTypeExpense,
		Status:         models.ManualTransactionStatusPending,
		Date:           billingDate,
	}
	if err := tx.CreateManualTransaction(entry); err != nil {
		return false, fmt.Errorf("create manual transaction: %w", err)
	}
	return true, nil
}

// MarkPaid records a payment of the subscription on paymentDate. The paid
// ledger entry, the balance debit and the next billing date move together or
// not at all. A pending entry already booked for paymentDate is settled in
// place. A zero paymentDate means today.
func (e *Engine) MarkPaid(ctx context.Context, owner Owner, id string, paymentDate time.Time) (*PaymentResult, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if paymentDate.IsZero() {
		paymentDate = e.today()
	}
	paymentDate = DateOnly(paymentDate)

	var result *PaymentResult
	err := e.repo.Transaction(func(tx Repository) error {
		sub, err := tx.LockSubscription(owner, id)
		if err != nil {
			return err
		}
		if !sub.IsActive() {
			return ErrSubscriptionCancelled
		}

		entryID, err := settleCharge(tx, sub, paymentDate)
		if err != nil {
			return err
		}

		switch {
		case sub.HasCard():
			if _, err := ledger.ChargeCard(tx, *sub.CardID, sub.Amount); err != nil {
				return fmt.Errorf("charge card: %w", err)
			}
		case sub.HasBankAccount():
			if _, err := ledger.Debit(tx, *sub.BankAccountID, sub.Amount); err != nil {
				return fmt.Errorf("debit account: %w", err)
			}
		}

		sub.StartDate = DateOnly(sub.StartDate)
		sub.NextBillingDate = AdvanceFrom(sub.NextBillingDate, sub.StartDate, sub.Frequency)
		if err := tx.SaveSubscription(sub); err != nil {
			return fmt.Errorf("advance billing date: %w", err)
		}

		result = &PaymentResult{Subscription: sub, EntryID: entryID, PaymentDate: paymentDate}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Recurring] Subscription %s paid on %s, next billing %s", id,
		paymentDate.Format(dateLayout), result.Subscription.NextBillingDate.Format(dateLayout))
	return result, nil
}

func settleCharge(tx Repository, sub *models.Subscription, paymentDate time.Time) (string, error) {
	existing, err := tx.FindCharge(sub.ID, paymentDate)
	if err != nil {
		return "", fmt.Errorf("look up charge: %w", err)
	}
	if existing != nil {
		if existing.Paid() {
			return "", ErrAlreadyPaid
		}
		if err := tx.SettleCharge(existing); err != nil {
			return "", fmt.Errorf("settle charge: %w", err)
		}
		return existing.ID, nil
	}

	subID := sub.ID
	if sub.HasCard() {
		entry := &models.CardTransaction{
			UserID:         sub.UserID,
			ProfileID:      sub.ProfileID,
			CardID:         *sub.CardID,
			SubscriptionID: &subID,
			Description:    sub.Name,
			Amount:         sub.Amount,
			Category:       sub.Category,
			Type:           models.TransactionTypeExpense,
			Status:         models.CardTransactionStatusPaid,
			Date:           paymentDate,
		}
		if err := tx.CreateCardTransaction(entry); err != nil {
			return "", fmt.Errorf("create card transaction: %w", err)
		}
		return entry.ID, nil
	}

	entry := &models.ManualTransaction{
		UserID:         sub.UserID,
		ProfileID:      sub.ProfileID,
		BankAccountID:  sub.BankAccountID,
		SubscriptionID: &subID,
		Description:    sub.Name,
		Amount:         sub.Amount,
		Category:       sub.Category,
		Type:           models.TransactionTypeExpense,
		Status:         models.ManualTransactionStatusCompleted,
		Date:           paymentDate,
	}
	if err := tx.CreateManualTransaction(entry); err != nil {
		return "", fmt.Errorf("create manual transaction: %w", err)
	}
	return entry.ID, nil
}

func (e *Engine) validateInput(in any) error {
	if err := e.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return invalid(fe.Field(), fmt.Sprintf("failed on %q", fe.Tag()))
		}
		return invalid("", err.Error())
	}
	return nil
}

func (e *Engine) checkPaymentMethods(owner Owner, cardID, bankAccountID *string) error {
	if err := checkCard(e.repo, owner, cardID); err != nil {
		return err
	}
	return checkBankAccount(e.repo, owner, bankAccountID)
}

func checkCard(repo Repository, owner Owner, cardID *string) error {
	if cardID == nil {
		return nil
	}
	card, err := repo.GetCard(*cardID)
	if err != nil {
		return err
	}
	if !card.BelongsTo(owner.UserID, owner.ProfileID) {
		return ErrCardNotFound
	}
	return nil
}

func checkBankAccount(repo Repository, owner Owner, accountID *string) error {
	if accountID == nil {
		return nil
	}
	account, err := repo.GetBankAccount(*accountID)
	if err != nil {
		return err
	}
	if account.UserID != owner.UserID || account.ProfileID != owner.ProfileID {
		return ErrBankAccountNotFound
	}
	return nil
}

func checkOwner(owner Owner) error {
	if owner.UserID == "" || owner.ProfileID == "" {
		return invalid("owner", "user and profile are required")
	}
	return nil
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeCategory(category string) string {
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return DefaultCategory
	}
	return category
}
