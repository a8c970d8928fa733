package repository

import (
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Count returns the number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountPaid returns the number of users with an active non-free plan
func (r *userRepository) CountPaid() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("plan <> ? AND subscription_status = ?", models.PlanFree, models.SubscriptionStatusActive).
		Count(&count).Error
	return count, err
}
