package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	Start(ctx context.Context, userID int, name string) (*Workout, error)
	Stop(ctx context.Context, userID, workoutID int) (*StopResult, error)
	StartExercise(ctx context.Context, userID int, req AddExerciseRequest) (*Exercise, error)
	LogSet(ctx context.Context, userID int, req LogSetRequest) (*Set, error)
	History(ctx context.Context, userID int) ([]HistoryEntry, error)
	Exercises(ctx context.Context, userID, workoutID int) ([]Exercise, error)
}

type StartWorkoutResponse struct {
	ID          int       `json:"id"`
	UserID      int       `json:"userId"`
	WorkoutName string    `json:"workoutName"`
	Date        time.Time `json:"date"`
}

type StopWorkoutResponse struct {
	Message string   `json:"message"`
	Workout *Workout `json:"workout,omitempty"`
}

type ExerciseResponse struct {
	Message  string    `json:"message"`
	Exercise *Exercise `json:"exercise"`
}

type SetResponse struct {
	Message string `json:"message"`
	Set     *Set   `json:"set"`
}

type Handler struct {
	service workoutsService
}

func NewHandler(service workoutsService) *Handler {
	return &Handler{
		service: service,
	}
}

// SetupRoutes registers the workout routes. All of them require an authenticated user.
func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/start", handler.HandleStart).Methods("POST", "OPTIONS").Name("workouts-start")
	router.HandleFunc("/stop", handler.HandleStop).Methods("POST", "OPTIONS").Name("workouts-stop")
	router.HandleFunc("/exercises", handler.HandleStartExercise).Methods("POST", "OPTIONS").Name("workouts-exercises-start")
	router.HandleFunc("/sets", handler.HandleLogSet).Methods("POST", "OPTIONS").Name("workouts-sets-log")
	router.HandleFunc("/history", handler.HandleHistory).Methods("GET", "OPTIONS").Name("workouts-history")
	router.HandleFunc("/{workoutId:[0-9]+}/exercises", handler.HandleExercises).Methods("GET", "OPTIONS").Name("workouts-exercises")
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Debugf("workouts handler, unmarshal json params: %s", err)
		http.Error(w, "Incomplete information", http.StatusBadRequest)
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Message, http.StatusBadRequest)
	case errors.Is(err, ErrWorkoutNotFound):
		http.Error(w, "Workout not found", http.StatusNotFound)
	case errors.Is(err, ErrExerciseNotFound):
		http.Error(w, "Exercise not found", http.StatusNotFound)
	case errors.Is(err, ErrNotOwner):
		http.Error(w, "User not authorized", http.StatusUnauthorized)
	case errors.Is(err, ErrWorkoutStopped):
		http.Error(w, "Workout has already been stopped", http.StatusBadRequest)
	case errors.Is(err, ErrNoWorkouts):
		http.Error(w, "No workouts found", http.StatusNotFound)
	case errors.Is(err, ErrNoExercises):
		http.Error(w, "No exercises found", http.StatusNotFound)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func userIDOrUnauthorized(ctx context.Context, w http.ResponseWriter) (int, bool) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "Not authorized, please login", http.StatusUnauthorized)
	}
	return userID, ok
}

func (handler *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.start")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	var req struct {
		WorkoutName string `json:"workoutName"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	workout, err := handler.service.Start(ctx, userID, req.WorkoutName)
	if err != nil {
		writeServiceError(w, "start workout", err)
		return
	}

	log.Debugf("workout %d started by user %d", workout.ID, userID)
	pkg.WriteJSONResponse(w, StartWorkoutResponse{
		ID:          workout.ID,
		UserID:      workout.UserID,
		WorkoutName: workout.Name,
		Date:        workout.StartedAt,
	}, http.StatusCreated)
}

func (handler *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stop")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	var req struct {
		WorkoutID int `json:"workoutId"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := handler.service.Stop(ctx, userID, req.WorkoutID)
	if err != nil {
		writeServiceError(w, "stop workout", err)
		return
	}

	if result.Deleted {
		pkg.WriteMessageResponse(w, "Successfully stopped workout, 0 exercises completed", http.StatusOK)
		return
	}

	pkg.WriteJSONResponse(w, StopWorkoutResponse{
		Message: fmt.Sprintf("Successfully stopped workout, %d exercises completed", result.ExercisesCompleted),
		Workout: result.Workout,
	}, http.StatusOK)
}

func (handler *Handler) HandleStartExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.startExercise")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	var req AddExerciseRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	exercise, err := handler.service.StartExercise(ctx, userID, req)
	if err != nil {
		writeServiceError(w, "start exercise", err)
		return
	}

	pkg.WriteJSONResponse(w, ExerciseResponse{
		Message:  "Successfully started exercise",
		Exercise: exercise,
	}, http.StatusCreated)
}

func (handler *Handler) HandleLogSet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.logSet")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	var req LogSetRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	set, err := handler.service.LogSet(ctx, userID, req)
	if err != nil {
		writeServiceError(w, "log set", err)
		return
	}

	pkg.WriteJSONResponse(w, SetResponse{
		Message: "Successfully logged set",
		Set:     set,
	}, http.StatusCreated)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.history")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	history, err := handler.service.History(ctx, userID)
	if err != nil {
		writeServiceError(w, "workout history", err)
		return
	}

	pkg.WriteJSONResponse(w, history, http.StatusOK)
}

func (handler *Handler) HandleExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.exercises")
	defer span.End()

	userID, ok := userIDOrUnauthorized(ctx, w)
	if !ok {
		return
	}

	workoutID, err := strconv.Atoi(mux.Vars(r)["workoutId"])
	if err != nil {
		http.Error(w, "error, workout id NaN", http.StatusBadRequest)
		return
	}

	exercises, err := handler.service.Exercises(ctx, userID, workoutID)
	if err != nil {
		writeServiceError(w, "workout exercises", err)
		return
	}

	pkg.WriteJSONResponse(w, exercises, http.StatusOK)
}
