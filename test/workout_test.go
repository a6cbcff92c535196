//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/workout"
)

func (s *IntegrationTestSuite) TestWorkoutFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	userID, token := s.newLoggedInUser(ctx, t)

	startParams := workout.StartParams{
		Week:    1,
		Day:     0,
		DayName: "Push",
		Exercises: []progress.SessionExercise{
			{Name: "Bench Press", Sets: 4, Reps: 8, Weight: 80},
			{Name: "Overhead Press", Sets: 3, Reps: 10, Weight: 40},
		},
	}

	// no initial weight yet
	resp, err := s.postJSON(ctx, "/workout/start", token, startParams)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.postJSON(ctx, "/weight/goal", token, map[string]float64{
		"initialWeight": 90,
		"goalWeight":    85,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.postJSON(ctx, "/workout/start", token, startParams)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var active workout.ActiveSession
	decodeBody(t, resp, &active)
	require.Len(t, active.Exercises, 2)

	resp, err = s.postJSON(ctx, "/workout/start", token, startParams)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	for _, idx := range []string{"0", "1"} {
		resp, err = s.postJSON(ctx, "/workout/exercise/"+idx+"/toggle", token, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, resp.Body.Close())
	}

	resp, err = s.postJSON(ctx, "/workout/finish", token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var finish workout.FinishResult
	decodeBody(t, resp, &finish)
	assert.True(t, finish.Saved)
	require.NotNil(t, finish.Progression)
	assert.Equal(t, []int{0}, finish.Progression.CompletedDays)
	assert.Empty(t, finish.Warnings)

	resp, err = s.doRequest(ctx, http.MethodGet, "/workout", token, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp, err = s.doRequest(ctx, http.MethodGet, "/history", token, nil)
	require.NoError(t, err)
	var history []progress.WorkoutHistoryEntry
	decodeBody(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "Bench Press", history[0].Exercises[0].Name)

	var sessions int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM workout_sessions WHERE user_id = $1`, userID,
	).Scan(&sessions))
	assert.Equal(t, 1, sessions)
}
