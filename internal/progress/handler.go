package progress

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type writeResponse struct {
	Data     any      `json:"data,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type weightGoalRequest struct {
	InitialWeight float64 `json:"initialWeight"`
	GoalWeight    float64 `json:"goalWeight"`
}

type checkInRequest struct {
	Week   int     `json:"week"`
	Weight float64 `json:"weight"`
}

type checkInNeededResponse struct {
	Week   int  `json:"week"`
	Needed bool `json:"needed"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleGetProgression(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.get")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	pkg.WriteJSONOK(w, handler.service.GetProgression(ctx, userID))
}

func (handler *Handler) HandleUpdateProgression(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.update")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var progression WorkoutProgression
	if err := json.NewDecoder(r.Body).Decode(&progression); err != nil {
		http.Error(w, "error, invalid progression", http.StatusBadRequest)
		return
	}

	result, err := handler.service.UpdateProgression(ctx, userID, progression)
	if err != nil {
		writeInputError(w, err)
		return
	}

	writeResult(w, progression.normalized(), result)
}

func (handler *Handler) HandleCompleteDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progression.completeday")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	day, err := strconv.Atoi(mux.Vars(r)["day"])
	if err != nil {
		http.Error(w, "error, day must be a number", http.StatusBadRequest)
		return
	}

	progression, result, err := handler.service.CompleteDay(ctx, userID, day)
	if err != nil {
		writeInputError(w, err)
		return
	}

	writeResult(w, progression, result)
}

func (handler *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.get")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	pkg.WriteJSONOK(w, handler.service.GetWorkoutHistory(ctx, userID))
}

func (handler *Handler) HandleSaveSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.save")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var session WorkoutSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		http.Error(w, "error, invalid workout session", http.StatusBadRequest)
		return
	}

	result, err := handler.service.SaveWorkoutSession(ctx, userID, session)
	if err != nil {
		writeInputError(w, err)
		return
	}

	writeResult(w, session.HistoryEntry(), result)
}

func (handler *Handler) HandleGetWeightTracking(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.weight.get")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	pkg.WriteJSONOK(w, handler.service.GetWeightTracking(ctx, userID))
}

func (handler *Handler) HandleSetWeightGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.weight.goal")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req weightGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "error, invalid weight goal", http.StatusBadRequest)
		return
	}

	tracking, result, err := handler.service.SetInitialWeightGoal(ctx, userID, req.InitialWeight, req.GoalWeight)
	if err != nil {
		writeInputError(w, err)
		return
	}

	writeResult(w, tracking, result)
}

func (handler *Handler) HandleAddCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.weight.checkin")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "error, invalid check-in", http.StatusBadRequest)
		return
	}

	tracking, result, err := handler.service.AddWeightCheckIn(ctx, userID, req.Week, req.Weight)
	if err != nil {
		writeInputError(w, err)
		return
	}

	writeResult(w, tracking, result)
}

func (handler *Handler) HandleCheckInNeeded(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.weight.checkin.needed")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	week := handler.service.GetProgression(ctx, userID).CurrentWeek
	if weekParam := r.URL.Query().Get("week"); weekParam != "" {
		parsed, err := strconv.Atoi(weekParam)
		if err != nil {
			http.Error(w, "error, week must be a number", http.StatusBadRequest)
			return
		}
		week = parsed
	}

	pkg.WriteJSONOK(w, checkInNeededResponse{
		Week:   week,
		Needed: NeedsWeightCheckIn(handler.service.GetWeightTracking(ctx, userID), week),
	})
}

func (handler *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sync")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := handler.service.SyncAllData(ctx, userID)
	if errors.Is(err, ErrRemoteDisabled) {
		http.Error(w, "remote sync not enabled", http.StatusServiceUnavailable)
		return
	} else if err != nil {
		log.Errorf("sync [%s]: %s", userID, err)
		http.Error(w, "error, sync failed", http.StatusInternalServerError)
		return
	}

	resp := writeResponse{Data: result}
	if result.RemoteErr != nil {
		resp.Warnings = []string{"some data could not be synced: " + result.RemoteErr.Error()}
	}
	pkg.WriteJSONOK(w, resp)
}

// HandleImportFromBackend refreshes the local caches of the user from the remote backend.
func (handler *Handler) HandleImportFromBackend(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sync.import")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := handler.service.ImportFromBackend(ctx, userID)
	if errors.Is(err, ErrRemoteDisabled) {
		http.Error(w, "remote sync not enabled", http.StatusServiceUnavailable)
		return
	} else if err != nil {
		log.Errorf("import from backend [%s]: %s", userID, err)
		http.Error(w, "error, import from backend failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONOK(w, snapshot)
}

func writeResult(w http.ResponseWriter, data any, result WriteResult) {
	if result.LocalErr != nil {
		log.Errorf("local write failed: %s", result.LocalErr)
	}
	pkg.WriteJSONOK(w, writeResponse{
		Data:     data,
		Warnings: result.Warnings(),
	})
}

func writeInputError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Errorf("progress request failed: %s", err)
	http.Error(w, "error, request failed", http.StatusInternalServerError)
}
