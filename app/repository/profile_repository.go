package repository

import (
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
)

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// BelongsTo reports whether profileID is one of the user's profiles
func (r *profileRepository) BelongsTo(userID, profileID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Profile{}).
		Where("id = ? AND user_id = ?", profileID, userID).
		Count(&count).Error
	return count > 0, err
}
