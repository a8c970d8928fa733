package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mywallet/mywallet/internal/pkg/statistics"
)

func TestQueueController_Stats(t *testing.T) {
	app := newTestApp()
	app.Get("/internal/queue", NewQueueController(&fakeQueueStats{}).HandleQueueStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal/queue", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(4), body["pending"])
	assert.Equal(t, float64(1), body["processing"])
	assert.Equal(t, map[string]any{"completed": float64(10)}, body["stats"])
}

func TestQueueController_Unavailable(t *testing.T) {
	app := newTestApp()
	app.Get("/internal/queue", NewQueueController(&fakeQueueStats{err: errors.New("redis down")}).HandleQueueStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal/queue", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type fakeStatistics struct {
	err error
}

func (f fakeStatistics) Get(ctx context.Context) (statistics.Data, error) {
	return statistics.Data{Day: "2025-03-01", PaidUsers: 5}, f.err
}

func TestStatisticsController(t *testing.T) {
	app := newTestApp()
	app.Get("/ok", NewStatisticsController(fakeStatistics{}).HandleStatistics)
	app.Get("/fail", NewStatisticsController(fakeStatistics{err: errors.New("db down")}).HandleStatistics)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil), -1)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, "2025-03-01", body["day"])
	assert.Equal(t, float64(5), body["paid_users"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/fail", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
