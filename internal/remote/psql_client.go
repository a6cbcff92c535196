package remote

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed schema.sql
var schema string

// PsqlClient mirrors the progress data of users into postgres.
type PsqlClient struct {
	db *pgxpool.Pool

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

func NewPsqlClient(db *pgxpool.Pool) *PsqlClient {
	return &PsqlClient{
		db:      db,
		NowFunc: time.Now,
	}
}

// Migrate creates the tables when missing.
func (c *PsqlClient) Migrate(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.migrate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := c.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (c *PsqlClient) FetchProgression(ctx context.Context, userID string) (_ *progress.WorkoutProgression, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.progression.fetch")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var currentWeek int32
	var completedDays []int32
	err = c.db.QueryRow(
		ctx,
		`SELECT current_week, completed_days FROM user_progression WHERE user_id = $1;`,
		userID,
	).Scan(&currentWeek, &completedDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, progress.ErrNoRemoteRecord
	}
	if err != nil {
		return nil, fmt.Errorf("query progression: %w", err)
	}

	days := make([]int, 0, len(completedDays))
	for _, d := range completedDays {
		days = append(days, int(d))
	}

	return &progress.WorkoutProgression{
		CurrentWeek:   int(currentWeek),
		CompletedDays: days,
	}, nil
}

func (c *PsqlClient) UpsertProgression(ctx context.Context, userID string, p progress.WorkoutProgression) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.progression.upsert")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	completedDays := make([]int32, 0, len(p.CompletedDays))
	for _, d := range p.CompletedDays {
		completedDays = append(completedDays, int32(d))
	}

	_, err = c.db.Exec(
		ctx,
		`INSERT INTO user_progression (user_id, current_week, completed_days, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET current_week = EXCLUDED.current_week,
			completed_days = EXCLUDED.completed_days,
			updated_at = EXCLUDED.updated_at;`,
		userID, p.CurrentWeek, completedDays, c.NowFunc().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert progression: %w", err)
	}
	return nil
}

func (c *PsqlClient) InsertWorkoutSession(ctx context.Context, userID string, session progress.WorkoutSession) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.session.insert")
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("week", session.Week),
		attribute.Int("day", session.Day),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exercisesJson, err := json.Marshal(session.Exercises)
	if err != nil {
		return fmt.Errorf("marshal exercises: %w", err)
	}

	tag, err := c.db.Exec(
		ctx,
		`INSERT INTO workout_sessions (user_id, week, day, day_name, exercises, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		userID, session.Week, session.Day, session.DayName, exercisesJson, session.StartedAt, session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("workout session not inserted")
	}
	return nil
}

func (c *PsqlClient) FetchWorkoutSessions(ctx context.Context, userID string) (_ []progress.WorkoutSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.session.list")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := c.db.Query(
		ctx,
		`SELECT week, day, day_name, exercises, started_at, completed_at
		FROM workout_sessions
		WHERE user_id = $1
		ORDER BY completed_at ASC, id ASC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workout sessions: %w", err)
	}
	defer rows.Close()

	var sessions []progress.WorkoutSession
	for rows.Next() {
		var session progress.WorkoutSession
		var week, day int32
		var exercisesJson []byte
		if err := rows.Scan(
			&week, &day, &session.DayName, &exercisesJson, &session.StartedAt, &session.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if err := json.Unmarshal(exercisesJson, &session.Exercises); err != nil {
			return nil, fmt.Errorf("unmarshal exercises: %w", err)
		}
		session.Week = int(week)
		session.Day = int(day)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (c *PsqlClient) FetchWeightTracking(ctx context.Context, userID string) (_ *progress.WeightTracking, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.weight.fetch")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tracking := progress.WeightTracking{
		CheckIns: []progress.WeightCheckIn{},
	}
	err = c.db.QueryRow(
		ctx,
		`SELECT initial_weight, goal_weight FROM weight_tracking WHERE user_id = $1;`,
		userID,
	).Scan(&tracking.InitialWeight, &tracking.GoalWeight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, progress.ErrNoRemoteRecord
	}
	if err != nil {
		return nil, fmt.Errorf("query weight tracking: %w", err)
	}

	rows, err := c.db.Query(
		ctx,
		`SELECT week, weight, checked_at FROM weight_checkins WHERE user_id = $1 ORDER BY week ASC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query weight check-ins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var week int32
		var checkIn progress.WeightCheckIn
		if err := rows.Scan(&week, &checkIn.Weight, &checkIn.Date); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		checkIn.Week = int(week)
		tracking.CheckIns = append(tracking.CheckIns, checkIn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &tracking, nil
}

func (c *PsqlClient) UpsertWeightGoals(ctx context.Context, userID string, initialWeight, goalWeight *float64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.weight.goals.upsert")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = c.db.Exec(
		ctx,
		`INSERT INTO weight_tracking (user_id, initial_weight, goal_weight, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET initial_weight = EXCLUDED.initial_weight,
			goal_weight = EXCLUDED.goal_weight,
			updated_at = EXCLUDED.updated_at;`,
		userID, initialWeight, goalWeight, c.NowFunc().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert weight goals: %w", err)
	}
	return nil
}

func (c *PsqlClient) UpsertWeightCheckIn(ctx context.Context, userID string, checkIn progress.WeightCheckIn) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.weight.checkin.upsert")
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("week", checkIn.Week))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = c.db.Exec(
		ctx,
		`INSERT INTO weight_checkins (user_id, week, weight, checked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, week) DO UPDATE
		SET weight = EXCLUDED.weight,
			checked_at = EXCLUDED.checked_at;`,
		userID, checkIn.Week, checkIn.Weight, checkIn.Date,
	)
	if err != nil {
		return fmt.Errorf("upsert weight check-in: %w", err)
	}
	return nil
}

// ReplaceWeightCheckIns makes the stored check-ins of the user exactly checkIns.
func (c *PsqlClient) ReplaceWeightCheckIns(ctx context.Context, userID string, checkIns []progress.WeightCheckIn) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.weight.checkins.replace")
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("checkins", len(checkIns)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM weight_checkins WHERE user_id = $1;`, userID); err != nil {
		return fmt.Errorf("delete check-ins: %w", err)
	}
	for _, checkIn := range checkIns {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO weight_checkins (user_id, week, weight, checked_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, week) DO UPDATE
			SET weight = EXCLUDED.weight,
				checked_at = EXCLUDED.checked_at;`,
			userID, checkIn.Week, checkIn.Weight, checkIn.Date,
		); err != nil {
			return fmt.Errorf("insert check-in week %d: %w", checkIn.Week, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteUserData removes every remote record of the user.
func (c *PsqlClient) DeleteUserData(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "remote.psql.user.delete")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, table := range []string{"user_progression", "workout_sessions", "weight_tracking", "weight_checkins"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE user_id = $1;`, userID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}
