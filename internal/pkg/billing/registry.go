package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/mywallet/mywallet/app/models"
)

// SettingStore persists key/value settings. GetValue returns "" for a
// missing key. CreateIfNotExists must rely on the unique key constraint and
// report false when another writer got there first.
type SettingStore interface {
	GetValue(key string) (string, error)
	CreateIfNotExists(setting *models.Setting) (bool, error)
}

// PlanCreator registers a recurring plan at the gateway.
type PlanCreator interface {
	CreatePlan(ctx context.Context, plan Plan) (string, error)
}

// PlanResolver yields the gateway plan id of a recurring plan.
type PlanResolver interface {
	ResolveExternalPlanID(ctx context.Context, planKey string) (string, error)
}

// PlanRegistry maps recurring plans to their gateway plan ids. Ids are
// created at the gateway at most once per process and persisted in settings.
type PlanRegistry struct {
	store   SettingStore
	creator PlanCreator
	cache   *gocache.Cache
	group   singleflight.Group
}

func NewPlanRegistry(store SettingStore, creator PlanCreator) *PlanRegistry {
	return &PlanRegistry{
		store:   store,
		creator: creator,
		cache:   gocache.New(gocache.NoExpiration, 0),
	}
}

// ResolveExternalPlanID returns the gateway plan id for planKey, creating the
// plan at the gateway on first use. LIFETIME is rejected.
func (r *PlanRegistry) ResolveExternalPlanID(ctx context.Context, planKey string) (string, error) {
	plan, ok := LookupPlan(planKey)
	if !ok {
		return "", &ValidationError{Field: "planType", Message: fmt.Sprintf("unknown plan %q", planKey)}
	}
	if !plan.Recurring() {
		return "", &ValidationError{Field: "planType", Message: "plan " + plan.Key + " is not recurring"}
	}

	key := models.PlanExternalIDKey(plan.Key)
	if id, found := r.cache.Get(key); found {
		return id.(string), nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if id, found := r.cache.Get(key); found {
			return id.(string), nil
		}

		stored, err := r.store.GetValue(key)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", key, err)
		}
		if id := strings.TrimSpace(stored); id != "" {
			r.cache.SetDefault(key, id)
			return id, nil
		}

		id, err := r.creator.CreatePlan(ctx, plan)
		if err != nil {
			return "", err
		}

		created, err := r.store.CreateIfNotExists(&models.Setting{
			Key:      key,
			Value:    id,
			Type:     "string",
			Category: models.SettingCategoryPaymentGateway,
		})
		if err != nil {
			return "", fmt.Errorf("persist %s: %w", key, err)
		}
		if !created {
			// Another instance persisted its plan first; use that one.
			winner, err := r.store.GetValue(key)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", key, err)
			}
			if winner = strings.TrimSpace(winner); winner != "" {
				log.Warnf("[PlanRegistry] Gateway plan %s for %s is unused, %s was stored first", id, plan.Key, winner)
				id = winner
			}
		} else {
			log.Infof("[PlanRegistry] Created gateway plan %s for %s", id, plan.Key)
		}

		r.cache.SetDefault(key, id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CachedExternalPlanID returns the known gateway plan id without creating one.
func (r *PlanRegistry) CachedExternalPlanID(planKey string) string {
	plan, ok := LookupPlan(planKey)
	if !ok || !plan.Recurring() {
		return ""
	}
	key := models.PlanExternalIDKey(plan.Key)
	if id, found := r.cache.Get(key); found {
		return id.(string)
	}
	stored, err := r.store.GetValue(key)
	if err != nil {
		log.Warnf("[PlanRegistry] Failed to read %s: %v", key, err)
		return ""
	}
	if id := strings.TrimSpace(stored); id != "" {
		r.cache.SetDefault(key, id)
		return id
	}
	return ""
}
