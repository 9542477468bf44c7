package workouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fittrack/internal/events"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/internal/users"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Start(ctx context.Context, userID int, name string, startedAt time.Time) (*Workout, error)
	Get(ctx context.Context, id int) (*Workout, error)
	Delete(ctx context.Context, id int) error
	CountLoggedExercises(ctx context.Context, workoutID int) (int, error)
	Complete(ctx context.Context, params CompletedWorkout) (*Workout, int, error)
	AddExercise(ctx context.Context, exercise Exercise) (*Exercise, error)
	GetExercise(ctx context.Context, id int) (*Exercise, error)
	LogSet(ctx context.Context, workoutID int, set Set) (*Set, error)
	History(ctx context.Context, userID int) ([]HistoryEntry, error)
	ExercisesWithSets(ctx context.Context, workoutID int) ([]Exercise, error)
}

type usersGetter interface {
	GetByID(ctx context.Context, id int) (*users.User, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type AddExerciseRequest struct {
	WorkoutID    int    `json:"workoutId"`
	ExerciseName string `json:"exerciseName"`
	Image        string `json:"image,omitempty"`
}

type LogSetRequest struct {
	ExerciseID int     `json:"exerciseId"`
	Weight     float64 `json:"weight"`
	Reps       int     `json:"reps"`
	TimeTaken  string  `json:"timeTaken"`
}

type StopResult struct {
	Workout            *Workout
	ExercisesCompleted int
	// Deleted is set when the workout had no logged exercises and was discarded.
	Deleted bool
}

type Service struct {
	repo           workoutsRepo
	usersRepo      usersGetter
	publisher      eventPublisher
	metricsManager *metrics.Manager
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewService(
	repo workoutsRepo,
	usersRepo usersGetter,
	publisher eventPublisher,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		repo:           repo,
		usersRepo:      usersRepo,
		publisher:      publisher,
		metricsManager: metricsManager,
		Now:            time.Now,
	}
}

func (s *Service) Start(ctx context.Context, userID int, name string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, newValidationError("Please add a workout name")
	}

	return s.repo.Start(ctx, userID, name, s.Now())
}

// ownedWorkout loads the workout and checks it belongs to the user.
func (s *Service) ownedWorkout(ctx context.Context, userID, workoutID int) (*Workout, error) {
	workout, err := s.repo.Get(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.UserID != userID {
		return nil, ErrNotOwner
	}
	return workout, nil
}

// Stop completes the workout. A workout without any logged exercise is deleted instead
// and nothing else changes.
func (s *Service) Stop(ctx context.Context, userID, workoutID int) (_ *StopResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.stop")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	if workoutID <= 0 {
		return nil, newValidationError("Incomplete information")
	}

	workout, err := s.ownedWorkout(ctx, userID, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.Completed {
		return nil, ErrWorkoutStopped
	}

	loggedExercises, err := s.repo.CountLoggedExercises(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("count logged exercises: %w", err)
	}
	if loggedExercises == 0 {
		if err := s.repo.Delete(ctx, workoutID); err != nil {
			return nil, fmt.Errorf("delete empty workout: %w", err)
		}
		log.Debugf("workout %d stopped without logged exercises, deleted", workoutID)
		return &StopResult{Deleted: true}, nil
	}

	user, err := s.usersRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get workout owner: %w", err)
	}

	now := s.Now()
	durationMs := now.Sub(workout.StartedAt).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}
	streak := users.NextStreak(user.WorkoutStreak, user.LastCompletedWorkout, now)

	stopped, workoutsCompleted, err := s.repo.Complete(ctx, CompletedWorkout{
		WorkoutID:   workoutID,
		UserID:      userID,
		DurationMs:  durationMs,
		CompletedAt: now,
		Streak:      streak,
	})
	if err != nil {
		return nil, err
	}
	s.metricsManager.CounterWorkoutsCompleted.Inc()

	event := events.NewWorkoutCompletedEvent(events.WorkoutCompleted{
		UserID:            userID,
		WorkoutID:         stopped.ID,
		WorkoutName:       stopped.Name,
		DurationMs:        durationMs,
		ExercisesLogged:   loggedExercises,
		WorkoutsCompleted: workoutsCompleted,
		Streak:            streak,
		CompletedAt:       now,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Errorf("publish workout completed event for workout %d: %s", stopped.ID, err)
	}

	return &StopResult{
		Workout:            stopped,
		ExercisesCompleted: loggedExercises,
	}, nil
}

func (s *Service) StartExercise(ctx context.Context, userID int, req AddExerciseRequest) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.startExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	req.ExerciseName = strings.TrimSpace(req.ExerciseName)
	if req.WorkoutID <= 0 || req.ExerciseName == "" {
		return nil, newValidationError("Incomplete information")
	}

	workout, err := s.ownedWorkout(ctx, userID, req.WorkoutID)
	if err != nil {
		return nil, err
	}
	if workout.Completed {
		return nil, ErrWorkoutStopped
	}

	return s.repo.AddExercise(ctx, Exercise{
		WorkoutID: workout.ID,
		Name:      req.ExerciseName,
		Image:     strings.TrimSpace(req.Image),
		CreatedAt: s.Now(),
	})
}

func (s *Service) LogSet(ctx context.Context, userID int, req LogSetRequest) (_ *Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.logSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	req.TimeTaken = strings.TrimSpace(req.TimeTaken)
	if req.ExerciseID <= 0 || req.TimeTaken == "" {
		return nil, newValidationError("Incomplete information")
	}
	if req.Weight <= 0 || req.Reps <= 0 {
		return nil, newValidationError("Weight and reps must be greater than 0")
	}
	if !ValidTimeTaken(req.TimeTaken) {
		return nil, newValidationError("Time taken must be in minutes:seconds format")
	}

	exercise, err := s.repo.GetExercise(ctx, req.ExerciseID)
	if err != nil {
		return nil, err
	}
	workout, err := s.ownedWorkout(ctx, userID, exercise.WorkoutID)
	if err != nil {
		return nil, err
	}
	if workout.Completed {
		return nil, ErrWorkoutStopped
	}

	return s.repo.LogSet(ctx, workout.ID, Set{
		ExerciseID: exercise.ID,
		Weight:     req.Weight,
		Reps:       req.Reps,
		TimeTaken:  req.TimeTaken,
		CreatedAt:  s.Now(),
	})
}

func (s *Service) History(ctx context.Context, userID int) (_ []HistoryEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	history, err := s.repo.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNoWorkouts
	}
	return history, nil
}

func (s *Service) Exercises(ctx context.Context, userID, workoutID int) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.exercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := s.ownedWorkout(ctx, userID, workoutID); err != nil {
		return nil, err
	}

	exercises, err := s.repo.ExercisesWithSets(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, ErrNoExercises
	}
	return exercises, nil
}
