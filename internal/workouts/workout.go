package workouts

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrWorkoutNotFound  = errors.New("workout not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrNotOwner         = errors.New("user not authorized")
	ErrWorkoutStopped   = errors.New("workout has already been stopped")
	ErrNoWorkouts       = errors.New("no workouts found")
	ErrNoExercises      = errors.New("no exercises found")
)

// ValidationError carries a message meant for the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

var timeTakenRegex = regexp.MustCompile(`^\d{1,2}:[0-5]\d$`)

type Workout struct {
	ID             int       `json:"id"`
	UserID         int       `json:"userId"`
	Name           string    `json:"workoutName"`
	StartedAt      time.Time `json:"date"`
	Completed      bool      `json:"completed"`
	DurationMs     *int64    `json:"duration,omitempty"`
	ExerciseLogged bool      `json:"exerciseLogged"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Exercise struct {
	ID        int       `json:"id"`
	WorkoutID int       `json:"workoutId"`
	Name      string    `json:"exerciseName"`
	Image     string    `json:"image,omitempty"`
	SetLogged bool      `json:"setLogged"`
	CreatedAt time.Time `json:"createdAt"`
	Sets      []Set     `json:"sets"`
}

type Set struct {
	ID         int       `json:"id"`
	ExerciseID int       `json:"exerciseId"`
	Weight     float64   `json:"weight"`
	Reps       int       `json:"reps"`
	TimeTaken  string    `json:"timeTaken"`
	CreatedAt  time.Time `json:"createdAt"`
}

type HistoryEntry struct {
	Workout
	ExercisesCompleted int `json:"exercisesCompleted"`
}

// CompletedWorkout is what a stop persists: the workout and the owner's updated counters.
type CompletedWorkout struct {
	WorkoutID   int
	UserID      int
	DurationMs  int64
	CompletedAt time.Time
	Streak      int
}

// ValidTimeTaken accepts m:ss and mm:ss with seconds below 60.
func ValidTimeTaken(timeTaken string) bool {
	return timeTakenRegex.MatchString(timeTaken)
}

// TimeTakenMinutes converts a "minutes:seconds" string to fractional minutes.
// Anything ValidTimeTaken rejects counts as 0.
func TimeTakenMinutes(timeTaken string) float64 {
	timeTaken = strings.TrimSpace(timeTaken)
	if !ValidTimeTaken(timeTaken) {
		return 0
	}
	minStr, secStr, _ := strings.Cut(timeTaken, ":")
	minutes, err := strconv.Atoi(minStr)
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(secStr)
	if err != nil {
		return 0
	}
	return float64(minutes) + float64(seconds)/60
}
