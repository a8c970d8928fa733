package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/mywallet/mywallet/app/models"
	"github.com/mywallet/mywallet/internal/pkg/cache"
)

const (
	CacheKeyDaily   = "statistics:billing:%s" // Format with date YYYY-MM-DD
	CacheExpiration = 5 * time.Minute
)

// Data is the billing overview shown on the internal statistics endpoint.
type Data struct {
	Day                 string `json:"day"`
	TotalUsers          int64  `json:"total_users"`
	PaidUsers           int64  `json:"paid_users"`
	ActiveSubscriptions int64  `json:"active_subscriptions"`
	PaymentsToday       int64  `json:"payments_today"`
}

// Source computes fresh statistics for day.
type Source interface {
	Collect(ctx context.Context, day time.Time) (Data, error)
}

// Store is the key/value cache the statistics are kept in.
type Store interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

type redisStore struct{}

func (redisStore) Get(key string) (string, error) { return cache.Get(key) }

func (redisStore) Set(key string, value interface{}, expiration time.Duration) error {
	return cache.Set(key, value, expiration)
}

// UserCounter counts registered and paying users.
type UserCounter interface {
	Count() (int64, error)
	CountPaid() (int64, error)
}

type gormSource struct {
	db    *gorm.DB
	users UserCounter
}

// NewGormSource counts users through users and the remaining rows with db.
func NewGormSource(db *gorm.DB, users UserCounter) Source {
	return &gormSource{db: db, users: users}
}

func (s *gormSource) Collect(ctx context.Context, day time.Time) (Data, error) {
	var out Data
	var err error

	if out.TotalUsers, err = s.users.Count(); err != nil {
		return out, fmt.Errorf("count users: %w", err)
	}
	if out.PaidUsers, err = s.users.CountPaid(); err != nil {
		return out, fmt.Errorf("count paid users: %w", err)
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Subscription{}).
		Where("status = ?", models.RecurringStatusActive).
		Count(&out.ActiveSubscriptions).Error; err != nil {
		return out, fmt.Errorf("count subscriptions: %w", err)
	}
	if err := db.Model(&models.PaymentHistory{}).
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.PaymentStatusApproved, day, day.Add(24*time.Hour)).
		Count(&out.PaymentsToday).Error; err != nil {
		return out, fmt.Errorf("count payments: %w", err)
	}
	return out, nil
}

// Service serves statistics from the cache and recomputes them when the
// cached copy for the current day is missing or expired.
type Service struct {
	source Source
	store  Store
	ttl    time.Duration
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{
		source: source,
		store:  redisStore{},
		ttl:    CacheExpiration,
		now:    time.Now,
	}
}

// Get returns today's statistics (UTC).
func (s *Service) Get(ctx context.Context) (Data, error) {
	now := s.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayStr := day.Format("2006-01-02")
	key := fmt.Sprintf(CacheKeyDaily, dayStr)

	if raw, err := s.store.Get(key); err == nil {
		var cached Data
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		log.Warnf("[Statistics] Discarding unreadable cache entry %s", key)
	}

	data, err := s.source.Collect(ctx, day)
	if err != nil {
		return Data{}, err
	}
	data.Day = dayStr

	b, err := json.Marshal(data)
	if err == nil {
		err = s.store.Set(key, string(b), s.ttl)
	}
	if err != nil {
		log.Warnf("[Statistics] Error caching statistics: %v", err)
	}
	return data, nil
}
