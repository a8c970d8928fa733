package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueueWithClient(unreachableRedisClient(t), tt.workers)

			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "jobs:job:", JobKeyPrefix)
	assert.Equal(t, "jobs:pending", JobQueueKey)
	assert.Equal(t, "jobs:processing", JobProcessingKey)
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestQueue_ProcessJobDispatchesToHandler(t *testing.T) {
	queue := NewQueueWithClient(unreachableRedisClient(t), 1)

	var calls atomic.Int32
	queue.Register(JobTypePendingCharges, func(ctx context.Context, job *Job) error {
		calls.Add(1)
		assert.Equal(t, "cron", job.Payload["trigger"])
		return nil
	})

	job := &Job{ID: "j1", Type: JobTypePendingCharges, Status: JobStatusPending, Payload: map[string]interface{}{"trigger": "cron"}, MaxRetries: 3}
	queue.processJob(context.Background(), job)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, JobStatusCompleted, job.Status)
}

func TestQueue_ProcessJobFailures(t *testing.T) {
	queue := NewQueueWithClient(unreachableRedisClient(t), 1)
	queue.Register(JobTypeGatewayWebhook, func(ctx context.Context, job *Job) error {
		return errors.New("gateway down")
	})

	job := &Job{ID: "j2", Type: JobTypeGatewayWebhook, Status: JobStatusPending, MaxRetries: 0}
	queue.processJob(context.Background(), job)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "gateway down", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)

	unknown := &Job{ID: "j3", Type: JobType("image_processing"), Status: JobStatusPending}
	queue.processJob(context.Background(), unknown)
	assert.Equal(t, JobStatusFailed, unknown.Status)
	assert.Contains(t, unknown.ErrorMsg, "unknown job type")
}

func TestQueue_EnqueueWithoutRedis(t *testing.T) {
	queue := NewQueueWithClient(unreachableRedisClient(t), 1)
	_, err := queue.EnqueueJob(JobTypePendingCharges, PendingChargesJobPayload{Trigger: "manual"}.ToMap())
	assert.Error(t, err)
}

func TestQueue_RoundTripWithRedis(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueueWithClient(client, 2)

	done := make(chan *Job, 1)
	queue.Register(JobTypeGatewayWebhook, func(ctx context.Context, job *Job) error {
		done <- job
		return nil
	})

	enqueued, err := queue.EnqueueJobWithRetries(JobTypeGatewayWebhook, GatewayWebhookJobPayload{
		WebhookEventID: 7, EventType: "payment", ResourceID: "PAY7",
	}.ToMap(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued.MaxRetries)

	size, err := queue.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	queue.Start()
	defer queue.Stop()

	select {
	case job := <-done:
		assert.Equal(t, enqueued.ID, job.ID)
		payload, err := GatewayWebhookJobPayloadFromMap(job.Payload)
		require.NoError(t, err)
		assert.Equal(t, uint(7), payload.WebhookEventID)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	assert.True(t, waitForCondition(func() bool {
		n, _ := queue.GetProcessingSize(context.Background())
		return n == 0
	}, 2*time.Second))
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{3, 3 * time.Minute},
		{40, maxRetryDelay},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestJob_StartedAt(t *testing.T) {
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)
	processed := created.Add(2 * time.Minute)

	assert.Equal(t, processed, (&Job{CreatedAt: created, UpdatedAt: updated, ProcessedAt: &processed}).startedAt())
	assert.Equal(t, updated, (&Job{CreatedAt: created, UpdatedAt: updated}).startedAt())
	assert.Equal(t, created, (&Job{CreatedAt: created}).startedAt())
}

func TestQueue_RecoverStuckJobs(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	queue := NewQueueWithClient(client, 1)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	put := func(id string, status JobStatus, started time.Time) {
		job := &Job{ID: id, Type: JobTypeGatewayWebhook, Status: status, CreatedAt: started, UpdatedAt: started, ProcessedAt: &started}
		queue.updateJob(ctx, job)
		require.NoError(t, client.LPush(ctx, JobProcessingKey, id).Err())
	}
	put("stuck", JobStatusProcessing, now.Add(-StuckJobAge-time.Minute))
	put("busy", JobStatusProcessing, now.Add(-time.Minute))
	put("stray", JobStatusCompleted, now.Add(-time.Hour))
	require.NoError(t, client.LPush(ctx, JobProcessingKey, "gone").Err())

	n, err := queue.RecoverStuckJobs(ctx, now, StuckJobAge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, pending)

	processing, err := client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, processing)

	recovered, err := queue.loadJob(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, recovered.Status)
}

func TestQueue_RecoverStuckJobsWithoutRedis(t *testing.T) {
	queue := NewQueueWithClient(unreachableRedisClient(t), 1)
	_, err := queue.RecoverStuckJobs(context.Background(), time.Now(), StuckJobAge)
	assert.Error(t, err)
}
