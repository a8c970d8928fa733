package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/internal/pkg/jobqueue"
)

// QueueStats reads job queue counters.
type QueueStats interface {
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
}

type QueueController struct {
	queue QueueStats
}

func NewQueueController(queue QueueStats) *QueueController {
	return &QueueController{queue: queue}
}

// HandleQueueStats reports pending and processing job counts plus the
// per-status totals.
func (qc *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	pending, err := qc.queue.GetQueueSize(ctx)
	if err != nil {
		log.Errorf("[QueueController] Error getting queue size: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "queue_unavailable", "job queue is unavailable")
	}
	processing, err := qc.queue.GetProcessingSize(ctx)
	if err != nil {
		log.Errorf("[QueueController] Error getting processing size: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "queue_unavailable", "job queue is unavailable")
	}
	stats, err := qc.queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[QueueController] Error getting job stats: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "queue_unavailable", "job queue is unavailable")
	}

	byStatus := make(map[string]int64, len(stats))
	for status, n := range stats {
		byStatus[string(status)] = n
	}
	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      byStatus,
	})
}
