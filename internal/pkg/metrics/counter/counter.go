package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mywallet/mywallet/internal/pkg/cache"
)

const (
	webhookDeliveriesKey = "billing:counters:webhooks"
	chargeCountersKey    = "billing:counters:charges"

	FieldChargesCreated = "created"
	FieldChargesSkipped = "skipped"
	FieldChargesFailed  = "failed"
)

// AddWebhookDelivery increments the pending delivery counter for an event type.
func AddWebhookDelivery(eventType string) error {
	if eventType == "" {
		eventType = "unknown"
	}
	return cache.GetClient().HIncrBy(context.Background(), webhookDeliveriesKey, eventType, 1).Err()
}

// AddChargeResults adds the outcome of one pending-charge generation run.
func AddChargeResults(created, skipped, failed int) error {
	ctx := context.Background()
	pipe := cache.GetClient().Pipeline()
	for field, n := range map[string]int{
		FieldChargesCreated: created,
		FieldChargesSkipped: skipped,
		FieldChargesFailed:  failed,
	} {
		if n > 0 {
			pipe.HIncrBy(ctx, chargeCountersKey, field, int64(n))
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot is the drained content of the counters.
type Snapshot struct {
	Webhooks map[string]int64
	Charges  map[string]int64
}

// Empty reports whether nothing was counted since the last drain.
func (s Snapshot) Empty() bool {
	return len(s.Webhooks) == 0 && len(s.Charges) == 0
}

func (s Snapshot) String() string {
	return fmt.Sprintf("webhooks=%v charges=%v", s.Webhooks, s.Charges)
}

// DrainAll atomically takes all counters and resets them.
func DrainAll() (Snapshot, error) {
	webhooks, err := drainHash(webhookDeliveriesKey)
	if err != nil {
		return Snapshot{}, err
	}
	charges, err := drainHash(chargeCountersKey)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Webhooks: webhooks, Charges: charges}, nil
}

// drainHash moves the hash to a temporary key with RENAME so increments that
// arrive while draining land in a fresh hash.
func drainHash(redisKey string) (map[string]int64, error) {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Rename(ctx, redisKey, tmpKey).Err(); err != nil {
		if err == redis.Nil || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil, nil
		}
		return nil, err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil || n == 0 {
			continue
		}
		out[k] = n
	}
	return out, nil
}
