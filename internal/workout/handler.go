package workout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	orchestrator *Orchestrator
}

func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{
		orchestrator: orchestrator,
	}
}

func (handler *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.start")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var params StartParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "error, invalid start request", http.StatusBadRequest)
		return
	}

	session, err := handler.orchestrator.Start(ctx, userID, params)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteJSON(w, session, http.StatusCreated)
}

func (handler *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := pkg.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, ok := handler.orchestrator.Active(userID)
	if !ok {
		http.Error(w, ErrNoActiveSession.Error(), http.StatusNotFound)
		return
	}

	pkg.WriteJSONOK(w, session)
}

func (handler *Handler) HandleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	userID, ok := pkg.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		http.Error(w, "error, exercise index must be a number", http.StatusBadRequest)
		return
	}

	var update ExerciseUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "error, invalid exercise update", http.StatusBadRequest)
		return
	}

	session, err := handler.orchestrator.UpdateExercise(userID, idx, update)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteJSONOK(w, session)
}

func (handler *Handler) HandleToggleExercise(w http.ResponseWriter, r *http.Request) {
	userID, ok := pkg.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		http.Error(w, "error, exercise index must be a number", http.StatusBadRequest)
		return
	}

	session, err := handler.orchestrator.ToggleExercise(userID, idx)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteJSONOK(w, session)
}

func (handler *Handler) HandleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	userID, ok := pkg.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil {
		http.Error(w, "error, exercise index must be a number", http.StatusBadRequest)
		return
	}

	session, err := handler.orchestrator.RemoveExercise(userID, idx)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteJSONOK(w, session)
}

func (handler *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := pkg.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := handler.orchestrator.Cancel(userID); err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteTextResponseOK(w, "cancelled")
}

func (handler *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.finish")
	defer span.End()

	userID, ok := pkg.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := handler.orchestrator.Finish(ctx, userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteJSONOK(w, result)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progress.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInitialWeightRequired), errors.Is(err, ErrWeightCheckInRequired):
		http.Error(w, err.Error(), http.StatusPreconditionRequired)
	case errors.Is(err, ErrSessionActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrExerciseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Errorf("workout request failed: %s", err)
		http.Error(w, "error, workout request failed", http.StatusInternalServerError)
	}
}
