//go:build integration_test || all_tests

package remote

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/progress"
)

func testClientSetup(t *testing.T) (*PsqlClient, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "gymtracker",
		DBPassword:     os.Getenv("POSTGRES_PASSWORD"),
		TracingEnabled: false,
	})
	require.NoError(t, err)

	client := NewPsqlClient(dbPool)
	require.NoError(t, client.Migrate(timeoutCtx))

	return client, func() {
		dbPool.Close()
	}
}

func TestPsqlClient_Progression(t *testing.T) {
	client, shutdown := testClientSetup(t)
	defer shutdown()

	ctx := context.Background()
	userID := "it-user-progression"
	require.NoError(t, client.DeleteUserData(ctx, userID))

	_, err := client.FetchProgression(ctx, userID)
	assert.ErrorIs(t, err, progress.ErrNoRemoteRecord)

	require.NoError(t, client.UpsertProgression(ctx, userID, progress.WorkoutProgression{
		CurrentWeek:   2,
		CompletedDays: []int{0, 3},
	}))
	require.NoError(t, client.UpsertProgression(ctx, userID, progress.WorkoutProgression{
		CurrentWeek:   3,
		CompletedDays: []int{},
	}))

	got, err := client.FetchProgression(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentWeek)
	assert.Empty(t, got.CompletedDays)
}

func TestPsqlClient_WorkoutSessions(t *testing.T) {
	client, shutdown := testClientSetup(t)
	defer shutdown()

	ctx := context.Background()
	userID := "it-user-sessions"
	require.NoError(t, client.DeleteUserData(ctx, userID))

	sessions, err := client.FetchWorkoutSessions(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	now := time.Now().UTC().Truncate(time.Second)
	rpe := 8.5
	later := progress.WorkoutSession{
		Week: 1, Day: 1, DayName: "Pull",
		Exercises: []progress.SessionExercise{{Name: "Row", Sets: 4, Reps: 10, Weight: 60, RPE: &rpe}},
		StartedAt: now.Add(-time.Hour), CompletedAt: now,
	}
	earlier := progress.WorkoutSession{
		Week: 1, Day: 0, DayName: "Push",
		Exercises: []progress.SessionExercise{{Name: "Bench", Sets: 3, Reps: 8, Weight: 80}},
		StartedAt: now.Add(-26 * time.Hour), CompletedAt: now.Add(-25 * time.Hour),
	}
	require.NoError(t, client.InsertWorkoutSession(ctx, userID, later))
	require.NoError(t, client.InsertWorkoutSession(ctx, userID, earlier))

	sessions, err = client.FetchWorkoutSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "Push", sessions[0].DayName)
	assert.Equal(t, "Pull", sessions[1].DayName)
	require.NotNil(t, sessions[1].Exercises[0].RPE)
	assert.Equal(t, 8.5, *sessions[1].Exercises[0].RPE)
	assert.True(t, now.Equal(sessions[1].CompletedAt))
}

func TestPsqlClient_WeightTracking(t *testing.T) {
	client, shutdown := testClientSetup(t)
	defer shutdown()

	ctx := context.Background()
	userID := "it-user-weight"
	require.NoError(t, client.DeleteUserData(ctx, userID))

	_, err := client.FetchWeightTracking(ctx, userID)
	assert.ErrorIs(t, err, progress.ErrNoRemoteRecord)

	initial, goal := 180.0, 160.0
	require.NoError(t, client.UpsertWeightGoals(ctx, userID, &initial, &goal))

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, client.UpsertWeightCheckIn(ctx, userID, progress.WeightCheckIn{Week: 4, Weight: 175, Date: now}))
	require.NoError(t, client.UpsertWeightCheckIn(ctx, userID, progress.WeightCheckIn{Week: 1, Weight: 180, Date: now}))
	require.NoError(t, client.UpsertWeightCheckIn(ctx, userID, progress.WeightCheckIn{Week: 4, Weight: 172, Date: now}))

	tracking, err := client.FetchWeightTracking(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, tracking.InitialWeight)
	require.NotNil(t, tracking.GoalWeight)
	assert.Equal(t, 180.0, *tracking.InitialWeight)
	assert.Equal(t, 160.0, *tracking.GoalWeight)
	require.Len(t, tracking.CheckIns, 2)
	assert.Equal(t, 1, tracking.CheckIns[0].Week)
	assert.Equal(t, 4, tracking.CheckIns[1].Week)
	assert.Equal(t, 172.0, tracking.CheckIns[1].Weight)

	require.NoError(t, client.ReplaceWeightCheckIns(ctx, userID, []progress.WeightCheckIn{{Week: 1, Weight: 170, Date: now}}))
	tracking, err = client.FetchWeightTracking(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tracking.CheckIns, 1)
	assert.Equal(t, 170.0, tracking.CheckIns[0].Weight)
}
