package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/mywallet/mywallet/internal/pkg/env"
	"github.com/mywallet/mywallet/internal/pkg/metrics/counter"
)

const (
	DefaultPendingChargesCron = "0 5 * * *"
	DefaultWorkerCount        = 5

	// fallbackTimeout bounds in-process webhook processing when the queue
	// cannot take the job.
	fallbackTimeout = 2 * time.Minute
)

// Dependencies are the billing components the manager's jobs call into.
// Nil members disable the corresponding job type.
type Dependencies struct {
	Webhooks WebhookProcessor
	Charges  ChargeGenerator
	Archive  PayloadArchiver
}

// Manager manages the global job queue and the scheduled sweeps
type Manager struct {
	queue              *Queue
	deps               Dependencies
	cronSpec           string
	scheduler          *cron.Cron
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", strconv.Itoa(DefaultWorkerCount)))
		if err != nil {
			workerCount = DefaultWorkerCount
		}
		globalManager = NewManager(NewQueue(workerCount), env.GetEnv("PENDING_CHARGES_CRON", DefaultPendingChargesCron))
	})
	return globalManager
}

// NewManager creates a manager around queue. cronSpec is a standard five
// field expression evaluated in UTC.
func NewManager(queue *Queue, cronSpec string) *Manager {
	if cronSpec == "" {
		cronSpec = DefaultPendingChargesCron
	}
	return &Manager{
		queue:    queue,
		cronSpec: cronSpec,
		stopCh:   make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Configure registers the job handlers for deps.
func (m *Manager) Configure(deps Dependencies) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deps = deps
	if deps.Webhooks != nil {
		m.queue.Register(JobTypeGatewayWebhook, NewGatewayWebhookHandler(deps.Webhooks))
	}
	if deps.Charges != nil {
		m.queue.Register(JobTypePendingCharges, NewPendingChargesHandler(deps.Charges))
	}
	if deps.Archive != nil {
		m.queue.Register(JobTypeArchivePayload, NewArchivePayloadHandler(deps.Archive))
	}
}

// Start starts the job queue and background tasks
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	scheduler := cron.New(cron.WithLocation(time.UTC))
	if m.deps.Charges != nil {
		if _, err := scheduler.AddFunc(m.cronSpec, m.schedulePendingCharges); err != nil {
			return err
		}
		log.Infof("[JobQueue Manager] Pending charges sweep scheduled at %q (UTC)", m.cronSpec)
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	m.scheduler = scheduler
	m.scheduler.Start()

	m.counterFlushTicker = time.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.counterFlushWorker(m.stopCh, m.counterFlushTicker)

	log.Info("[JobQueue Manager] Started successfully")
	return nil
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// DispatchWebhook hands a journaled webhook event to a worker. Webhook jobs
// are never retried; the gateway redelivers on its own schedule. When the
// queue is unreachable the event is processed in a goroutine instead.
func (m *Manager) DispatchWebhook(webhookEventID uint, eventType, resourceID string) {
	if cerr := counter.AddWebhookDelivery(eventType); cerr != nil {
		log.Debugf("[JobQueue Manager] Could not count webhook delivery: %v", cerr)
	}

	payload := GatewayWebhookJobPayload{WebhookEventID: webhookEventID, EventType: eventType, ResourceID: resourceID}
	_, err := m.queue.EnqueueJobWithRetries(JobTypeGatewayWebhook, payload.ToMap(), 0)
	if err == nil {
		return
	}
	log.Warnf("[JobQueue Manager] Queue unavailable for webhook event %d, processing in-process: %v", webhookEventID, err)

	m.mu.Lock()
	processor := m.deps.Webhooks
	m.mu.Unlock()
	if processor == nil {
		log.Errorf("[JobQueue Manager] No webhook processor configured, event %d stays unprocessed", webhookEventID)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fallbackTimeout)
		defer cancel()
		processor.Process(ctx, webhookEventID, eventType, resourceID)
	}()
}

// ArchivePayload queues a raw webhook body for archival. It is a no-op when
// no archive is configured. Failures are logged only.
func (m *Manager) ArchivePayload(provider, eventID string, receivedAt time.Time, body []byte) {
	m.mu.Lock()
	enabled := m.deps.Archive != nil
	m.mu.Unlock()
	if !enabled {
		return
	}

	payload := ArchivePayloadJobPayload{Provider: provider, EventID: eventID, ReceivedAt: receivedAt, Body: string(body)}
	if _, err := m.queue.EnqueueJob(JobTypeArchivePayload, payload.ToMap()); err != nil {
		log.Warnf("[JobQueue Manager] Could not queue archive of webhook %s/%s: %v", provider, eventID, err)
	}
}

// schedulePendingCharges is the cron entry. It queues the sweep and runs it
// inline if the queue is unreachable.
func (m *Manager) schedulePendingCharges() {
	payload := PendingChargesJobPayload{Trigger: "cron"}
	_, err := m.queue.EnqueueJob(JobTypePendingCharges, payload.ToMap())
	if err == nil {
		return
	}
	log.Warnf("[JobQueue Manager] Queue unavailable for pending charges sweep, running inline: %v", err)

	m.mu.Lock()
	generator := m.deps.Charges
	m.mu.Unlock()
	if generator == nil {
		return
	}
	if _, err := RunPendingCharges(context.Background(), generator, &payload); err != nil {
		log.Errorf("[JobQueue Manager] Pending charges sweep failed: %v", err)
	}
}

// counterFlushWorker periodically drains the billing counters into the log
func (m *Manager) counterFlushWorker(stopCh <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-ticker.C:
			snapshot, err := counter.DrainAll()
			if err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
				continue
			}
			if !snapshot.Empty() {
				log.Infof("[Metrics] %s", snapshot)
			}
		}
	}
}
