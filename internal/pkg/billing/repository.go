package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mywallet/mywallet/app/models"
)

// Repository provides DB operations used by the billing service and the
// webhook reconciler.
type Repository interface {
	// Transaction runs fn against a repository bound to one database
	// transaction.
	Transaction(fn func(tx Repository) error) error

	GetUser(id string) (*models.User, error)
	FindUserBySubscriptionID(subscriptionID string) (*models.User, error)
	SaveUserSubscription(user *models.User) error

	PaymentExists(externalPaymentID string) (bool, error)
	// CreatePayment inserts a payment record and returns
	// ErrIdempotencyConflict when the external payment id is already stored.
	CreatePayment(payment *models.PaymentHistory) error
	ListPayments(userID string, limit int) ([]models.PaymentHistory, error)

	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) FindUserBySubscriptionID(subscriptionID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("subscription_id = ?", subscriptionID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUserSubscription(user *models.User) error {
	return r.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"plan":                    user.Plan,
		"subscription_status":     user.SubscriptionStatus,
		"subscription_id":         user.SubscriptionID,
		"subscription_expires_at": user.SubscriptionExpiresAt,
	}).Error
}

func (r *gormRepository) PaymentExists(externalPaymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PaymentHistory{}).Where("external_payment_id = ?", externalPaymentID).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreatePayment(payment *models.PaymentHistory) error {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_payment_id"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return ErrIdempotencyConflict
		}
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

func (r *gormRepository) ListPayments(userID string, limit int) ([]models.PaymentHistory, error) {
	var out []models.PaymentHistory
	q := r.db.Where("user_id = ?", userID).Order("paid_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
