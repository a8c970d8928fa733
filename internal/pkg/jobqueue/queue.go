package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mywallet/mywallet/internal/pkg/cache"
)

const (
	// Redis keys
	JobKeyPrefix     = "jobs:job:"
	JobQueueKey      = "jobs:pending"
	JobProcessingKey = "jobs:processing"
	JobStatsKey      = "jobs:stats"

	DefaultMaxRetries = 3
	DefaultWorkers    = 3
	JobTTL            = 24 * time.Hour

	// A job left in processing longer than StuckJobAge (worker crash or
	// restart mid-job) is moved back to pending.
	StuckJobAge   = 10 * time.Minute
	SweepInterval = time.Minute

	maxRetryDelay = 15 * time.Minute
	dequeueWait   = time.Second
)

// HandlerFunc processes one job. A returned error marks the job failed and
// schedules a retry while attempts remain.
type HandlerFunc func(ctx context.Context, job *Job) error

// Queue is a Redis list backed job queue. Jobs move atomically from the
// pending list to the processing list when a worker takes them.
type Queue struct {
	client  *redis.Client
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	handlersMu sync.RWMutex
	handlers   map[JobType]HandlerFunc
}

// NewQueue creates a job queue on the shared Redis client
func NewQueue(workers int) *Queue {
	return NewQueueWithClient(cache.GetClient(), workers)
}

// NewQueueWithClient creates a job queue on client
func NewQueueWithClient(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		client:   client,
		workers:  workers,
		stopCh:   make(chan struct{}),
		handlers: make(map[JobType]HandlerFunc),
	}
}

// Register installs the handler for jobType, replacing any previous one.
func (q *Queue) Register(jobType JobType, handler HandlerFunc) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[jobType] = handler
}

func (q *Queue) handler(jobType JobType) (HandlerFunc, bool) {
	q.handlersMu.RLock()
	defer q.handlersMu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Start launches the workers and the stuck job sweeper
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.sweeper(SweepInterval)
}

// Stop signals the workers and waits for in-flight jobs to finish
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
		}

		job, err := q.dequeueJob(ctx)
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
				time.Sleep(dequeueWait)
			}
			continue
		}
		log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
		q.processJob(ctx, job)
	}
}

func (q *Queue) sweeper(interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			if n, err := q.RecoverStuckJobs(context.Background(), time.Now(), StuckJobAge); err != nil {
				log.Errorf("[JobQueue] Stuck job sweep failed: %v", err)
			} else if n > 0 {
				log.Warnf("[JobQueue] Requeued %d stuck jobs", n)
			}
		}
	}
}

// RecoverStuckJobs moves jobs that have been processing for longer than
// maxAge back to pending and drops processing entries whose job data is gone.
// Handlers are idempotent, so a requeued job may safely run twice.
func (q *Queue) RecoverStuckJobs(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, id := range ids {
		job, err := q.loadJob(ctx, id)
		if err != nil || job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}
		if now.Sub(job.startedAt()) <= maxAge {
			continue
		}

		job.Status = JobStatusPending
		job.ErrorMsg = "requeued after processing timeout"
		job.UpdatedAt = now
		q.updateJob(ctx, job)

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, JobProcessingKey, 1, id)
		pipe.RPush(ctx, JobQueueKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return recovered, fmt.Errorf("requeue job %s: %w", id, err)
		}
		recovered++
	}
	return recovered, nil
}

// EnqueueJob adds a job with the default retry budget
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	return q.EnqueueJobWithRetries(jobType, payload, DefaultMaxRetries)
}

// EnqueueJobWithRetries adds a job that is attempted at most maxRetries+1 times
func (q *Queue) EnqueueJobWithRetries(jobType JobType, payload map[string]interface{}, maxRetries int) (*Job, error) {
	ctx := context.Background()
	if maxRetries < 0 {
		maxRetries = 0
	}

	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: maxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, JobQueueKey, JobProcessingKey, "RIGHT", "LEFT", dequeueWait).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.loadJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, err
	}
	return job, nil
}

func (q *Queue) loadJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("job data for %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	err := q.run(ctx, job)
	switch {
	case err == nil:
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, JobStatusCompleted)
		q.deleteJob(ctx, job.ID)
	case job.IsRetryable():
		delay := retryDelay(job.RetryCount)
		log.Infof("[JobQueue] Retrying job %s in %s (Attempt %d/%d)", job.ID, delay, job.RetryCount, job.MaxRetries)
		job.MarkAsRetrying()
		q.updateJob(ctx, job)
		time.AfterFunc(delay, func() {
			if err := q.client.LPush(context.Background(), JobQueueKey, job.ID).Err(); err != nil {
				log.Errorf("[JobQueue] Failed to requeue job %s: %v", job.ID, err)
			}
		})
	default:
		log.Errorf("[JobQueue] Job %s permanently failed after %d attempts", job.ID, job.RetryCount)
		q.updateJob(ctx, job)
		q.updateJobStats(ctx, JobStatusFailed)
	}
	q.removeFromProcessing(ctx, job.ID)
}

// run calls the registered handler and records a failure on the job.
func (q *Queue) run(ctx context.Context, job *Job) error {
	handler, ok := q.handler(job.Type)
	if !ok {
		err := fmt.Errorf("unknown job type: %s", job.Type)
		job.MarkAsFailed(err.Error())
		return err
	}
	if err := handler(ctx, job); err != nil {
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())
		return err
	}
	return nil
}

// retryDelay grows linearly with the attempt number up to maxRetryDelay.
func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * time.Minute
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing: %v", id, err)
	}
}

func (q *Queue) deleteJob(ctx context.Context, id string) {
	if err := q.client.Del(ctx, JobKeyPrefix+id).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to delete job %s: %v", id, err)
	}
}

func (q *Queue) updateJobStats(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJobStats returns the lifetime counters per job status
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[JobStatus]int64, len(raw))
	for status, count := range raw {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			stats[JobStatus(status)] = n
		}
	}
	return stats, nil
}

// GetQueueSize returns the number of pending jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of jobs being processed
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}
