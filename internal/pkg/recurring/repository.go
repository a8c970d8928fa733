package recurring

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/ledger"
)

// Repository provides DB operations used by the subscription engine. The
// ledger.Store half lets balance mutations join the same transaction.
type Repository interface {
	ledger.Store

	// Transaction runs fn against a repository bound to a single database
	// transaction. Any error returned by fn rolls everything back.
	Transaction(fn func(tx Repository) error) error

	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	GetSubscription(owner Owner, id string) (*models.Subscription, error)
	LockSubscription(owner Owner, id string) (*models.Subscription, error)
	ListSubscriptions(owner Owner, status string) ([]models.Subscription, error)
	ListDueSubscriptions(owner Owner, asOf time.Time) ([]models.Subscription, error)
	ListOwnersWithDueSubscriptions(asOf time.Time) ([]Owner, error)

	GetCard(id string) (*models.Card, error)
	GetBankAccount(id string) (*models.BankAccount, error)

	FindCharge(subscriptionID string, date time.Time) (*ChargeEntry, error)
	SettleCharge(entry *ChargeEntry) error
	CreateCardTransaction(tx *models.CardTransaction) error
	CreateManualTransaction(tx *models.ManualTransaction) error
}

type gormRepository struct {
	ledger.Store
	db *gorm.DB
}

// NewRepository creates an engine repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Store: ledger.NewGormStore(db), db: db}
}

func (r *gormRepository) Transaction(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) GetSubscription(owner Owner, id string) (*models.Subscription, error) {
	return r.findSubscription(r.db, owner, id)
}

func (r *gormRepository) LockSubscription(owner Owner, id string) (*models.Subscription, error) {
	return r.findSubscription(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), owner, id)
}

func (r *gormRepository) findSubscription(db *gorm.DB, owner Owner, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where("id = ? AND user_id = ? AND profile_id = ?", id, owner.UserID, owner.ProfileID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptions(owner Owner, status string) ([]models.Subscription, error) {
	var subs []models.Subscription
	q := r.db.Where("user_id = ? AND profile_id = ?", owner.UserID, owner.ProfileID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("next_billing_date ASC, name ASC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListDueSubscriptions(owner Owner, asOf time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.
		Where("user_id = ? AND profile_id = ? AND status = ? AND auto_generate = ? AND next_billing_date <= ?",
			owner.UserID, owner.ProfileID, models.RecurringStatusActive, true, asOf.Format(dateLayout)).
		Order("next_billing_date ASC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListOwnersWithDueSubscriptions(asOf time.Time) ([]Owner, error) {
	var rows []struct {
		UserID    string
		ProfileID string
	}
	err := r.db.Model(&models.Subscription{}).
		Distinct("user_id", "profile_id").
		Where("status = ? AND auto_generate = ? AND next_billing_date <= ?", models.RecurringStatusActive, true, asOf.Format(dateLayout)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	owners := make([]Owner, 0, len(rows))
	for _, row := range rows {
		owners = append(owners, Owner{UserID: row.UserID, ProfileID: row.ProfileID})
	}
	return owners, nil
}

func (r *gormRepository) GetCard(id string) (*models.Card, error) {
	var card models.Card
	if err := r.db.Where("id = ?", id).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *gormRepository) GetBankAccount(id string) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) FindCharge(subscriptionID string, date time.Time) (*ChargeEntry, error) {
	day := date.Format(dateLayout)

	var card models.CardTransaction
	err := r.db.Select("id", "status").Where("subscription_id = ? AND date = ?", subscriptionID, day).Limit(1).Find(&card).Error
	if err != nil {
		return nil, err
	}
	if card.ID != "" {
		return &ChargeEntry{ID: card.ID, Card: true, Status: card.Status}, nil
	}

	var manual models.ManualTransaction
	err = r.db.Select("id", "status").Where("subscription_id = ? AND date = ?", subscriptionID, day).Limit(1).Find(&manual).Error
	if err != nil {
		return nil, err
	}
	if manual.ID != "" {
		return &ChargeEntry{ID: manual.ID, Status: manual.Status}, nil
	}
	return nil, nil
}

func (r *gormRepository) SettleCharge(entry *ChargeEntry) error {
	if entry.Card {
		return r.db.Model(&models.CardTransaction{}).Where("id = ?", entry.ID).
			Update("status", models.CardTransactionStatusPaid).Error
	}
	return r.db.Model(&models.ManualTransaction{}).Where("id = ?", entry.ID).
		Update("status", models.ManualTransactionStatusCompleted).Error
}

func (r *gormRepository) CreateCardTransaction(tx *models.CardTransaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) CreateManualTransaction(tx *models.ManualTransaction) error {
	return r.db.Create(tx).Error
}
