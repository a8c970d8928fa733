package repository

import (
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
)

// UserRepository defines the user queries of the statistics overview
type UserRepository interface {
	Count() (int64, error)
	CountPaid() (int64, error)
}

// ProfileRepository defines the interface for profile ownership checks
type ProfileRepository interface {
	BelongsTo(userID, profileID string) (bool, error)
}

// SettingRepository defines the interface for persisted key/value settings
type SettingRepository interface {
	GetValue(key string) (string, error)
	CreateIfNotExists(setting *models.Setting) (bool, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User    UserRepository
	Profile ProfileRepository
	Setting SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Profile: NewProfileRepository(db),
		Setting: NewSettingRepository(db),
	}
}
