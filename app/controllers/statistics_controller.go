package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/internal/pkg/statistics"
)

type StatisticsProvider interface {
	Get(ctx context.Context) (statistics.Data, error)
}

type StatisticsController struct {
	stats StatisticsProvider
}

func NewStatisticsController(stats StatisticsProvider) *StatisticsController {
	return &StatisticsController{stats: stats}
}

// HandleStatistics returns the daily billing overview.
func (sc *StatisticsController) HandleStatistics(c *fiber.Ctx) error {
	data, err := sc.stats.Get(c.UserContext())
	if err != nil {
		log.Errorf("[StatisticsController] Error collecting statistics: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, codeInternal, "statistics unavailable")
	}
	return c.JSON(data)
}
