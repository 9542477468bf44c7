package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const TypeWorkoutCompleted = "workout.completed"

// Event is the envelope written to the broker. Key decides the partition.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Key        string    `json:"-"`
	Payload    any       `json:"payload"`
}

type WorkoutCompleted struct {
	UserID            int       `json:"userId"`
	WorkoutID         int       `json:"workoutId"`
	WorkoutName       string    `json:"workoutName"`
	DurationMs        int64     `json:"durationMs"`
	ExercisesLogged   int       `json:"exercisesLogged"`
	WorkoutsCompleted int       `json:"workoutsCompleted"`
	Streak            int       `json:"streak"`
	CompletedAt       time.Time `json:"completedAt"`
}

func NewWorkoutCompletedEvent(payload WorkoutCompleted) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeWorkoutCompleted,
		OccurredAt: payload.CompletedAt,
		Key:        strconv.Itoa(payload.UserID),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
