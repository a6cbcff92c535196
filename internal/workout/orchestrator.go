package workout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrInitialWeightRequired = errors.New("initial weight and goal must be set before the first workout")
	ErrWeightCheckInRequired = errors.New("weight check-in required for this week")
	ErrSessionActive         = errors.New("workout session already active")
	ErrNoActiveSession       = errors.New("no active workout session")
	ErrExerciseNotFound      = errors.New("exercise not found")
)

type Exercise struct {
	progress.SessionExercise
	Completed bool `json:"completed"`
}

type ActiveSession struct {
	Week      int        `json:"week"`
	Day       int        `json:"day"`
	DayName   string     `json:"dayName"`
	Exercises []Exercise `json:"exercises"`
	StartedAt time.Time  `json:"startedAt"`
}

func (s *ActiveSession) allCompleted() bool {
	if len(s.Exercises) == 0 {
		return false
	}
	for _, ex := range s.Exercises {
		if !ex.Completed {
			return false
		}
	}
	return true
}

func (s *ActiveSession) clone() *ActiveSession {
	c := *s
	c.Exercises = append([]Exercise(nil), s.Exercises...)
	return &c
}

type StartParams struct {
	Week      int                        `json:"week"`
	Day       int                        `json:"day"`
	DayName   string                     `json:"dayName"`
	Exercises []progress.SessionExercise `json:"exercises"`
}

// ExerciseUpdate carries the fields to change, nil fields stay untouched.
type ExerciseUpdate struct {
	Sets      *int     `json:"sets,omitempty"`
	Reps      *int     `json:"reps,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	RPE       *float64 `json:"rpe,omitempty"`
	Technique *string  `json:"technique,omitempty"`
}

type FinishResult struct {
	Saved       bool                         `json:"saved"`
	Progression *progress.WorkoutProgression `json:"progression,omitempty"`
	Warnings    []string                     `json:"warnings,omitempty"`
}

// Orchestrator keeps one in-memory active workout per user and, on finish,
// persists it through the progress service.
type Orchestrator struct {
	progressService *progress.Service

	mutex    sync.Mutex
	sessions map[string]*ActiveSession

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

func NewOrchestrator(progressService *progress.Service) *Orchestrator {
	return &Orchestrator{
		progressService: progressService,
		sessions:        map[string]*ActiveSession{},
		NowFunc:         time.Now,
	}
}

func (o *Orchestrator) Start(ctx context.Context, userID string, params StartParams) (_ *ActiveSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workout.start")
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("week", params.Week),
		attribute.Int("day", params.Day),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := progress.ValidateWeek(params.Week); err != nil {
		return nil, err
	}
	if err := progress.ValidateDay(params.Day); err != nil {
		return nil, err
	}
	for _, ex := range params.Exercises {
		if err := progress.ValidateExercise(ex); err != nil {
			return nil, err
		}
	}

	tracking := o.progressService.GetWeightTracking(ctx, userID)
	if tracking.InitialWeight == nil {
		return nil, ErrInitialWeightRequired
	}
	if progress.NeedsWeightCheckIn(tracking, params.Week) {
		return nil, ErrWeightCheckInRequired
	}

	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, ok := o.sessions[userID]; ok {
		return nil, ErrSessionActive
	}

	session := &ActiveSession{
		Week:      params.Week,
		Day:       params.Day,
		DayName:   params.DayName,
		Exercises: make([]Exercise, 0, len(params.Exercises)),
		StartedAt: o.NowFunc().UTC(),
	}
	for _, ex := range params.Exercises {
		session.Exercises = append(session.Exercises, Exercise{SessionExercise: ex})
	}
	o.sessions[userID] = session

	log.Debugf("workout: [%s] started week %d day %d", userID, params.Week, params.Day)
	return session.clone(), nil
}

func (o *Orchestrator) Active(userID string) (*ActiveSession, bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	session, ok := o.sessions[userID]
	if !ok {
		return nil, false
	}
	return session.clone(), true
}

func (o *Orchestrator) UpdateExercise(userID string, idx int, update ExerciseUpdate) (*ActiveSession, error) {
	return o.withExercise(userID, idx, func(ex *Exercise) error {
		changed := ex.SessionExercise
		if update.Sets != nil {
			changed.Sets = *update.Sets
		}
		if update.Reps != nil {
			changed.Reps = *update.Reps
		}
		if update.Weight != nil {
			changed.Weight = *update.Weight
		}
		if update.RPE != nil {
			rpe := *update.RPE
			changed.RPE = &rpe
		}
		if update.Technique != nil {
			changed.Technique = *update.Technique
		}
		if err := progress.ValidateExercise(changed); err != nil {
			return err
		}
		ex.SessionExercise = changed
		return nil
	})
}

func (o *Orchestrator) ToggleExercise(userID string, idx int) (*ActiveSession, error) {
	return o.withExercise(userID, idx, func(ex *Exercise) error {
		ex.Completed = !ex.Completed
		return nil
	})
}

func (o *Orchestrator) RemoveExercise(userID string, idx int) (*ActiveSession, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	session, ok := o.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if idx < 0 || idx >= len(session.Exercises) {
		return nil, fmt.Errorf("%w: index %d", ErrExerciseNotFound, idx)
	}
	session.Exercises = append(session.Exercises[:idx:idx], session.Exercises[idx+1:]...)

	return session.clone(), nil
}

func (o *Orchestrator) withExercise(userID string, idx int, mutate func(ex *Exercise) error) (*ActiveSession, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	session, ok := o.sessions[userID]
	if !ok {
		return nil, ErrNoActiveSession
	}
	if idx < 0 || idx >= len(session.Exercises) {
		return nil, fmt.Errorf("%w: index %d", ErrExerciseNotFound, idx)
	}
	if err := mutate(&session.Exercises[idx]); err != nil {
		return nil, err
	}

	return session.clone(), nil
}

func (o *Orchestrator) Cancel(userID string) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, ok := o.sessions[userID]; !ok {
		return ErrNoActiveSession
	}
	delete(o.sessions, userID)
	log.Debugf("workout: [%s] cancelled", userID)
	return nil
}

// Finish ends the active session. Only a session with every exercise completed
// is saved to the history and marks its day as completed, otherwise it is discarded.
func (o *Orchestrator) Finish(ctx context.Context, userID string, endTime time.Time) (_ *FinishResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workout.finish")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	o.mutex.Lock()
	session, ok := o.sessions[userID]
	if ok {
		delete(o.sessions, userID)
	}
	o.mutex.Unlock()

	if !ok {
		return nil, ErrNoActiveSession
	}

	if !session.allCompleted() {
		log.Infof("workout: [%s] finished with incomplete exercises, session discarded", userID)
		return &FinishResult{Saved: false}, nil
	}

	completed := progress.WorkoutSession{
		Week:        session.Week,
		Day:         session.Day,
		DayName:     session.DayName,
		Exercises:   make([]progress.SessionExercise, 0, len(session.Exercises)),
		StartedAt:   session.StartedAt,
		CompletedAt: endTime.UTC(),
	}
	for _, ex := range session.Exercises {
		completed.Exercises = append(completed.Exercises, ex.SessionExercise)
	}

	saveResult, err := o.progressService.SaveWorkoutSession(ctx, userID, completed)
	if err != nil {
		return nil, fmt.Errorf("save workout session: %w", err)
	}

	progression, dayResult, err := o.progressService.CompleteDay(ctx, userID, session.Day)
	if err != nil {
		return nil, fmt.Errorf("complete day: %w", err)
	}

	return &FinishResult{
		Saved:       true,
		Progression: &progression,
		Warnings:    append(saveResult.Warnings(), dayResult.Warnings()...),
	}, nil
}
