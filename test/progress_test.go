//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymtracker/internal/progress"
)

type progressionResponse struct {
	Data     progress.WorkoutProgression `json:"data"`
	Warnings []string                    `json:"warnings"`
}

func (s *IntegrationTestSuite) TestProgression() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	userID, token := s.newLoggedInUser(ctx, t)

	resp, err := s.doRequest(ctx, http.MethodGet, "/progression", token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var progression progress.WorkoutProgression
	decodeBody(t, resp, &progression)
	assert.Equal(t, progress.DefaultProgression(), progression)

	for _, day := range []string{"0", "2", "2"} {
		resp, err = s.postJSON(ctx, "/progression/day/"+day, token, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var completeResp progressionResponse
		decodeBody(t, resp, &completeResp)
		assert.Empty(t, completeResp.Warnings)
	}

	resp, err = s.postJSON(ctx, "/progression/day/7", token, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	var (
		currentWeek   int
		completedDays []int64
	)
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT current_week, completed_days FROM user_progression WHERE user_id = $1`, userID,
	).Scan(&currentWeek, pq.Array(&completedDays)))
	assert.Equal(t, 1, currentWeek)
	assert.Equal(t, []int64{0, 2}, completedDays)

	// mirrored progression wins on read
	_, err = s.DB.ExecContext(ctx,
		`UPDATE user_progression SET current_week = 3, completed_days = '{1}' WHERE user_id = $1`, userID)
	require.NoError(t, err)

	resp, err = s.doRequest(ctx, http.MethodGet, "/progression", token, nil)
	require.NoError(t, err)
	decodeBody(t, resp, &progression)
	assert.Equal(t, 3, progression.CurrentWeek)
	assert.Equal(t, []int{1}, progression.CompletedDays)
}

func (s *IntegrationTestSuite) TestWeightTrackingAndSync() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	userID, token := s.newLoggedInUser(ctx, t)

	resp, err := s.postJSON(ctx, "/weight/goal", token, map[string]float64{
		"initialWeight": 180,
		"goalWeight":    160,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.doRequest(ctx, http.MethodGet, "/weight/checkin/needed?week=4", token, nil)
	require.NoError(t, err)
	var needed struct {
		Week   int  `json:"week"`
		Needed bool `json:"needed"`
	}
	decodeBody(t, resp, &needed)
	assert.Equal(t, 4, needed.Week)
	assert.True(t, needed.Needed)

	resp, err = s.postJSON(ctx, "/weight/checkin", token, map[string]any{"week": 4, "weight": 172})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.doRequest(ctx, http.MethodGet, "/weight", token, nil)
	require.NoError(t, err)
	var tracking progress.WeightTracking
	decodeBody(t, resp, &tracking)
	require.NotNil(t, tracking.InitialWeight)
	assert.Equal(t, 180.0, *tracking.InitialWeight)
	require.Len(t, tracking.CheckIns, 2)
	assert.Equal(t, 1, tracking.CheckIns[0].Week)
	assert.Equal(t, 4, tracking.CheckIns[1].Week)
	assert.Equal(t, 172.0, tracking.CheckIns[1].Weight)

	var checkIns int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM weight_checkins WHERE user_id = $1`, userID,
	).Scan(&checkIns))
	assert.Equal(t, 2, checkIns)

	resp, err = s.postJSON(ctx, "/sync", token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var syncResp struct {
		Data     progress.SyncResult `json:"data"`
		Warnings []string            `json:"warnings"`
	}
	decodeBody(t, resp, &syncResp)
	assert.True(t, syncResp.Data.ProgressionSynced)
	assert.True(t, syncResp.Data.WeightTrackingSynced)
	assert.Zero(t, syncResp.Data.SessionsPending)
	assert.Empty(t, syncResp.Warnings)
}

func (s *IntegrationTestSuite) TestDataExportImport() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	_, token := s.newLoggedInUser(ctx, t)

	resp, err := s.postJSON(ctx, "/progression/day/1", token, nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	resp, err = s.doRequest(ctx, http.MethodGet, "/data/export", token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "gym-tracker-backup-")
	var export struct {
		Version     string                      `json:"version"`
		Progression progress.WorkoutProgression `json:"progression"`
	}
	decodeBody(t, resp, &export)
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, []int{1}, export.Progression.CompletedDays)

	resp, err = s.doRequest(ctx, http.MethodPost, "/data/import", token, strings.NewReader(`{"userId":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.doRequest(ctx, http.MethodGet, "/data/stats", token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Used  int64 `json:"used"`
		Total int64 `json:"total"`
	}
	decodeBody(t, resp, &stats)
	assert.Positive(t, stats.Used)
	assert.Equal(t, int64(5*1024*1024), stats.Total)
}
