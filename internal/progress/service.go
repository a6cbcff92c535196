package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/securestore"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

//go:generate mockgen -source=$GOFILE -destination=remote_mocks_test.go -package=progress_test

var (
	ErrNoRemoteRecord = errors.New("no remote record")
	ErrRemoteDisabled = errors.New("remote backend not configured")
)

type remoteClient interface {
	FetchProgression(ctx context.Context, userID string) (*WorkoutProgression, error)
	UpsertProgression(ctx context.Context, userID string, progression WorkoutProgression) error
	InsertWorkoutSession(ctx context.Context, userID string, session WorkoutSession) error
	FetchWorkoutSessions(ctx context.Context, userID string) ([]WorkoutSession, error)
	FetchWeightTracking(ctx context.Context, userID string) (*WeightTracking, error)
	UpsertWeightGoals(ctx context.Context, userID string, initialWeight, goalWeight *float64) error
	UpsertWeightCheckIn(ctx context.Context, userID string, checkIn WeightCheckIn) error
	ReplaceWeightCheckIns(ctx context.Context, userID string, checkIns []WeightCheckIn) error
}

// WriteResult reports both halves of a dual write. A RemoteErr alone means
// the data is safe locally and only the mirror is behind.
type WriteResult struct {
	LocalErr  error
	RemoteErr error
}

func (r WriteResult) Warnings() []string {
	var warnings []string
	if r.LocalErr != nil {
		warnings = append(warnings, "failed to save data locally: "+r.LocalErr.Error())
	}
	if r.RemoteErr != nil {
		warnings = append(warnings, "failed to save data to the cloud, data saved locally only")
	}
	return warnings
}

type SyncResult struct {
	ProgressionSynced    bool  `json:"progressionSynced"`
	WeightTrackingSynced bool  `json:"weightTrackingSynced"`
	SessionsReplayed     int   `json:"sessionsReplayed"`
	SessionsPending      int   `json:"sessionsPending"`
	RemoteErr            error `json:"-"`
}

type Snapshot struct {
	Progression    WorkoutProgression    `json:"progression"`
	WorkoutHistory []WorkoutHistoryEntry `json:"workoutHistory"`
	WeightTracking WeightTracking        `json:"weightTracking"`
}

// Service keeps the progression, history and weight tracking of users in the
// local store and mirrors them to the optional remote backend.
type Service struct {
	store          *securestore.Store
	remote         remoteClient
	metricsManager *metrics.Manager

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

// NewService creates the service, remote may be nil for local only mode.
func NewService(store *securestore.Store, remote remoteClient, metricsManager *metrics.Manager) *Service {
	return &Service{
		store:          store,
		remote:         remote,
		metricsManager: metricsManager,
		NowFunc:        time.Now,
	}
}

func (s *Service) RemoteEnabled() bool {
	return s.remote != nil
}

func (s *Service) GetProgression(ctx context.Context, userID string) WorkoutProgression {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.progression.get")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	key := securestore.ProgressionKey(userID)
	if s.remote != nil && !s.loadPending(ctx, userID).Progression {
		remoteProgression, err := s.remote.FetchProgression(ctx, userID)
		switch {
		case err == nil && remoteProgression != nil:
			if err := remoteProgression.Validate(); err != nil {
				s.countRemoteFailure("fetch_progression")
				log.Errorf("progress: invalid remote progression [%s], checking local store: %s", userID, err)
				break
			}
			if remoteProgression.CompletedDays == nil {
				remoteProgression.CompletedDays = []int{}
			}
			if err := s.store.SetItem(ctx, key, remoteProgression); err != nil {
				log.Errorf("progress: cache remote progression [%s]: %s", userID, err)
			}
			return *remoteProgression
		case errors.Is(err, ErrNoRemoteRecord), err == nil:
			log.Debugf("progress: no remote progression for [%s], checking local store", userID)
		default:
			s.countRemoteFailure("fetch_progression")
			log.Errorf("progress: fetch remote progression [%s]: %s", userID, err)
		}
	}

	progression, err := securestore.Get[WorkoutProgression](ctx, s.store, key)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Errorf("progress: local progression [%s] unavailable, using default: %s", userID, err)
		}
		return DefaultProgression()
	}
	if progression.CompletedDays == nil {
		progression.CompletedDays = []int{}
	}

	return progression
}

func (s *Service) UpdateProgression(ctx context.Context, userID string, progression WorkoutProgression) (_ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.progression.update")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateProgression(progression); err != nil {
		return WriteResult{}, err
	}

	return s.writeProgression(ctx, userID, progression.normalized()), nil
}

// CompleteDay adds the day to the completed days of the current week. When
// the week is done, the week counter moves on in the same write.
func (s *Service) CompleteDay(ctx context.Context, userID string, day int) (_ WorkoutProgression, _ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.progression.completeday")
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("day", day))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := ValidateDay(day); err != nil {
		return WorkoutProgression{}, WriteResult{}, err
	}

	current := s.GetProgression(ctx, userID)
	next := WorkoutProgression{
		CurrentWeek:   current.CurrentWeek,
		CompletedDays: append(append([]int{}, current.CompletedDays...), day),
	}.normalized()

	if next.CurrentWeek != current.CurrentWeek {
		log.Infof("progress: [%s] finished week %d", userID, current.CurrentWeek)
	}

	return next, s.writeProgression(ctx, userID, next), nil
}

func (s *Service) writeProgression(ctx context.Context, userID string, progression WorkoutProgression) WriteResult {
	var result WriteResult
	if err := s.store.SetItem(ctx, securestore.ProgressionKey(userID), progression); err != nil {
		result.LocalErr = err
	}

	if s.remote == nil {
		return result
	}

	if err := s.remote.UpsertProgression(ctx, userID, progression); err != nil {
		s.countRemoteFailure("upsert_progression")
		log.Warnf("progress: mirror progression [%s], saved locally only: %s", userID, err)
		result.RemoteErr = err
		s.updatePending(ctx, userID, func(p *PendingSync) { p.Progression = true })
		return result
	}

	s.updatePending(ctx, userID, func(p *PendingSync) { p.Progression = false })
	return result
}

func (s *Service) GetWorkoutHistory(ctx context.Context, userID string) []WorkoutHistoryEntry {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.history.get")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	key := securestore.WorkoutHistoryKey(userID)
	if s.remote != nil && len(s.loadPending(ctx, userID).Sessions) == 0 {
		sessions, err := s.remote.FetchWorkoutSessions(ctx, userID)
		switch {
		case err == nil && len(sessions) > 0:
			if err := validateRemoteSessions(sessions); err != nil {
				s.countRemoteFailure("fetch_workout_sessions")
				log.Errorf("progress: invalid remote history [%s], checking local store: %s", userID, err)
				break
			}
			history := make([]WorkoutHistoryEntry, 0, len(sessions))
			for _, session := range sessions {
				history = append(history, session.HistoryEntry())
			}
			if err := s.store.SetItem(ctx, key, history); err != nil {
				log.Errorf("progress: cache remote history [%s]: %s", userID, err)
			}
			return history
		case err == nil, errors.Is(err, ErrNoRemoteRecord):
			log.Debugf("progress: no remote history for [%s], checking local store", userID)
		default:
			s.countRemoteFailure("fetch_workout_sessions")
			log.Errorf("progress: fetch remote history [%s]: %s", userID, err)
		}
	}

	return s.localHistory(ctx, userID)
}

func (s *Service) localHistory(ctx context.Context, userID string) []WorkoutHistoryEntry {
	history, err := securestore.Get[[]WorkoutHistoryEntry](ctx, s.store, securestore.WorkoutHistoryKey(userID))
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Errorf("progress: local history [%s] unavailable: %s", userID, err)
		}
		return []WorkoutHistoryEntry{}
	}
	if history == nil {
		history = []WorkoutHistoryEntry{}
	}
	return history
}

// SaveWorkoutSession appends the session to the local history and inserts it
// remotely. A session that could not be mirrored is queued for SyncAllData.
func (s *Service) SaveWorkoutSession(ctx context.Context, userID string, session WorkoutSession) (_ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.history.save")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateSession(session); err != nil {
		return WriteResult{}, err
	}

	var result WriteResult
	history := append(s.localHistory(ctx, userID), session.HistoryEntry())
	if err := s.store.SetItem(ctx, securestore.WorkoutHistoryKey(userID), history); err != nil {
		result.LocalErr = err
	} else if s.metricsManager != nil {
		s.metricsManager.CounterWorkoutsSaved.Inc()
	}

	if s.remote == nil {
		return result, nil
	}

	if err := s.remote.InsertWorkoutSession(ctx, userID, session); err != nil {
		s.countRemoteFailure("insert_workout_session")
		log.Warnf("progress: mirror workout session [%s], queued for sync: %s", userID, err)
		result.RemoteErr = err
		s.updatePending(ctx, userID, func(p *PendingSync) {
			p.Sessions = append(p.Sessions, session)
		})
	}

	return result, nil
}

func (s *Service) GetWeightTracking(ctx context.Context, userID string) WeightTracking {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.weight.get")
	span.SetAttributes(attribute.String("user.id", userID))
	defer span.End()

	key := securestore.WeightTrackingKey(userID)
	if s.remote != nil && !s.loadPending(ctx, userID).WeightTracking {
		remoteTracking, err := s.remote.FetchWeightTracking(ctx, userID)
		switch {
		case err == nil && remoteTracking != nil:
			if err := validateWeightTracking(*remoteTracking); err != nil {
				s.countRemoteFailure("fetch_weight_tracking")
				log.Errorf("progress: invalid remote weight tracking [%s], checking local store: %s", userID, err)
				break
			}
			if remoteTracking.CheckIns == nil {
				remoteTracking.CheckIns = []WeightCheckIn{}
			}
			if err := s.store.SetItem(ctx, key, remoteTracking); err != nil {
				log.Errorf("progress: cache remote weight tracking [%s]: %s", userID, err)
			}
			return *remoteTracking
		case err == nil, errors.Is(err, ErrNoRemoteRecord):
			log.Debugf("progress: no remote weight tracking for [%s], checking local store", userID)
		default:
			s.countRemoteFailure("fetch_weight_tracking")
			log.Errorf("progress: fetch remote weight tracking [%s]: %s", userID, err)
		}
	}

	return s.localWeightTracking(ctx, userID)
}

func (s *Service) localWeightTracking(ctx context.Context, userID string) WeightTracking {
	tracking, err := securestore.Get[WeightTracking](ctx, s.store, securestore.WeightTrackingKey(userID))
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Errorf("progress: local weight tracking [%s] unavailable, using default: %s", userID, err)
		}
		return DefaultWeightTracking()
	}
	if tracking.CheckIns == nil {
		tracking.CheckIns = []WeightCheckIn{}
	}
	return tracking
}

func (s *Service) UpdateWeightTracking(ctx context.Context, userID string, tracking WeightTracking) (_ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.weight.update")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateWeightTracking(tracking); err != nil {
		return WriteResult{}, err
	}

	return s.writeWeightTracking(ctx, userID, tracking, tracking.CheckIns, true), nil
}

// SetInitialWeightGoal starts the weight tracking with a single week 1 check-in.
func (s *Service) SetInitialWeightGoal(ctx context.Context, userID string, initialWeight, goalWeight float64) (_ WeightTracking, _ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.weight.initial")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := ValidateWeight(initialWeight); err != nil {
		return WeightTracking{}, WriteResult{}, err
	}
	if err := ValidateWeight(goalWeight); err != nil {
		return WeightTracking{}, WriteResult{}, err
	}

	tracking := WeightTracking{
		InitialWeight: &initialWeight,
		GoalWeight:    &goalWeight,
		CheckIns: []WeightCheckIn{{
			Week:   1,
			Weight: initialWeight,
			Date:   s.NowFunc().UTC(),
		}},
	}

	return tracking, s.writeWeightTracking(ctx, userID, tracking, tracking.CheckIns, true), nil
}

func (s *Service) AddWeightCheckIn(ctx context.Context, userID string, week int, weight float64) (_ WeightTracking, _ WriteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.weight.checkin")
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("week", week))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := ValidateWeek(week); err != nil {
		return WeightTracking{}, WriteResult{}, err
	}
	if err := ValidateWeight(weight); err != nil {
		return WeightTracking{}, WriteResult{}, err
	}

	checkIn := WeightCheckIn{
		Week:   week,
		Weight: weight,
		Date:   s.NowFunc().UTC(),
	}
	tracking := s.GetWeightTracking(ctx, userID).withCheckIn(checkIn)

	return tracking, s.writeWeightTracking(ctx, userID, tracking, []WeightCheckIn{checkIn}, false), nil
}

// writeWeightTracking stores the whole tracking locally and mirrors the goals
// plus the given check-ins. With replace the remote check-ins become exactly
// the given ones.
func (s *Service) writeWeightTracking(ctx context.Context, userID string, tracking WeightTracking, changed []WeightCheckIn, replace bool) WriteResult {
	var result WriteResult
	if tracking.CheckIns == nil {
		tracking.CheckIns = []WeightCheckIn{}
	}
	if err := s.store.SetItem(ctx, securestore.WeightTrackingKey(userID), tracking); err != nil {
		result.LocalErr = err
	}

	if s.remote == nil {
		return result
	}

	if err := s.mirrorWeightTracking(ctx, userID, tracking, changed, replace); err != nil {
		s.countRemoteFailure("upsert_weight_tracking")
		log.Warnf("progress: mirror weight tracking [%s], saved locally only: %s", userID, err)
		result.RemoteErr = err
		s.updatePending(ctx, userID, func(p *PendingSync) { p.WeightTracking = true })
	}

	return result
}

func (s *Service) mirrorWeightTracking(ctx context.Context, userID string, tracking WeightTracking, checkIns []WeightCheckIn, replace bool) error {
	if err := s.remote.UpsertWeightGoals(ctx, userID, tracking.InitialWeight, tracking.GoalWeight); err != nil {
		return fmt.Errorf("upsert weight goals: %w", err)
	}
	if replace {
		if err := s.remote.ReplaceWeightCheckIns(ctx, userID, checkIns); err != nil {
			return fmt.Errorf("replace check-ins: %w", err)
		}
		return nil
	}
	for _, c := range checkIns {
		if err := s.remote.UpsertWeightCheckIn(ctx, userID, c); err != nil {
			return fmt.Errorf("upsert check-in week %d: %w", c.Week, err)
		}
	}
	return nil
}

// SyncAllData replays whatever is marked pending for the user and pushes the
// local progression again.
func (s *Service) SyncAllData(ctx context.Context, userID string) (_ SyncResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.sync")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if s.remote == nil {
		return SyncResult{}, ErrRemoteDisabled
	}

	var result SyncResult
	pending := s.loadPending(ctx, userID)

	var stillPending []WorkoutSession
	for _, session := range pending.Sessions {
		if err := s.remote.InsertWorkoutSession(ctx, userID, session); err != nil {
			result.RemoteErr = multierr.Append(result.RemoteErr, fmt.Errorf("replay session %s: %w", session.CompletedAt.Format(time.RFC3339), err))
			stillPending = append(stillPending, session)
			continue
		}
		result.SessionsReplayed++
	}
	pending.Sessions = stillPending
	result.SessionsPending = len(stillPending)

	progression, err := securestore.Get[WorkoutProgression](ctx, s.store, securestore.ProgressionKey(userID))
	switch {
	case err == nil:
		if err := s.remote.UpsertProgression(ctx, userID, progression); err != nil {
			result.RemoteErr = multierr.Append(result.RemoteErr, fmt.Errorf("upsert progression: %w", err))
			pending.Progression = true
		} else {
			pending.Progression = false
			result.ProgressionSynced = true
		}
	case errors.Is(err, securestore.ErrNotFound):
		pending.Progression = false
	default:
		log.Errorf("progress: sync, local progression [%s] unavailable: %s", userID, err)
	}

	if pending.WeightTracking {
		tracking := s.localWeightTracking(ctx, userID)
		if err := s.mirrorWeightTracking(ctx, userID, tracking, tracking.CheckIns, true); err != nil {
			result.RemoteErr = multierr.Append(result.RemoteErr, err)
		} else {
			pending.WeightTracking = false
			result.WeightTrackingSynced = true
		}
	}

	s.savePending(ctx, userID, pending)
	if result.RemoteErr != nil {
		s.countRemoteFailure("sync_all")
		log.Warnf("progress: sync [%s] incomplete: %s", userID, result.RemoteErr)
	}

	return result, nil
}

// ImportFromBackend refreshes the local caches of the user from the remote backend.
func (s *Service) ImportFromBackend(ctx context.Context, userID string) (_ *Snapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.import")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if s.remote == nil {
		return nil, ErrRemoteDisabled
	}

	return &Snapshot{
		Progression:    s.GetProgression(ctx, userID),
		WorkoutHistory: s.GetWorkoutHistory(ctx, userID),
		WeightTracking: s.GetWeightTracking(ctx, userID),
	}, nil
}

func (s *Service) PendingSync(ctx context.Context, userID string) PendingSync {
	return s.loadPending(ctx, userID)
}

func (s *Service) loadPending(ctx context.Context, userID string) PendingSync {
	pending, err := securestore.Get[PendingSync](ctx, s.store, securestore.PendingSyncKey(userID))
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			log.Errorf("progress: pending sync markers [%s] unavailable: %s", userID, err)
		}
		return PendingSync{}
	}
	return pending
}

func (s *Service) updatePending(ctx context.Context, userID string, mutate func(p *PendingSync)) {
	pending := s.loadPending(ctx, userID)
	before := pending.Empty()
	mutate(&pending)
	if before && pending.Empty() {
		return
	}
	s.savePending(ctx, userID, pending)
}

func (s *Service) savePending(ctx context.Context, userID string, pending PendingSync) {
	key := securestore.PendingSyncKey(userID)
	if pending.Empty() {
		if err := s.store.RemoveItem(ctx, key); err != nil {
			log.Errorf("progress: clear pending sync markers [%s]: %s", userID, err)
		}
		return
	}
	if err := s.store.SetItem(ctx, key, pending); err != nil {
		log.Errorf("progress: save pending sync markers [%s]: %s", userID, err)
	}
}

func (s *Service) countRemoteFailure(operation string) {
	if s.metricsManager == nil {
		return
	}
	s.metricsManager.CounterRemoteSyncFailures.WithLabelValues(operation).Inc()
}
