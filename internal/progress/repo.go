package progress

import (
	"context"
	"fmt"

	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) CompletedWorkouts(ctx context.Context, userID int, window Window) (_ []WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progress.completedWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.Int("user.id", userID),
		attribute.String("window.start", window.Start.String()),
	)

	rows, err := r.db.Query(
		ctx,
		`SELECT id, started_at, created_at, completed, duration_ms
			FROM workouts
			WHERE user_id = $1
				AND completed = TRUE
				AND duration_ms IS NOT NULL
				AND started_at >= $2 AND started_at <= $3
			ORDER BY created_at, id;`,
		userID, window.Start, window.End,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		records   []WorkoutRecord
		ids       []int
		indexByID = map[int]int{}
	)
	for rows.Next() {
		var w WorkoutRecord
		if err := rows.Scan(&w.ID, &w.StartedAt, &w.CreatedAt, &w.Completed, &w.DurationMs); err != nil {
			return nil, err
		}
		indexByID[w.ID] = len(records)
		ids = append(ids, w.ID)
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	exercises, err := r.loggedExercises(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("logged exercises: %w", err)
	}
	for _, e := range exercises {
		i := indexByID[e.workoutID]
		records[i].Exercises = append(records[i].Exercises, e.ExerciseRecord)
	}

	return records, nil
}

type exerciseRow struct {
	ExerciseRecord
	id        int
	workoutID int
}

// loggedExercises loads the exercises with a logged set for the given workouts,
// in creation order, with the time taken of their sets.
func (r *Repo) loggedExercises(ctx context.Context, workoutIDs []int) ([]exerciseRow, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, workout_id, name
			FROM exercises
			WHERE workout_id = ANY($1) AND set_logged = TRUE
			ORDER BY created_at, id;`,
		workoutIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		exercises []exerciseRow
		ids       []int
		indexByID = map[int]int{}
	)
	for rows.Next() {
		var e exerciseRow
		if err := rows.Scan(&e.id, &e.workoutID, &e.Name); err != nil {
			return nil, err
		}
		indexByID[e.id] = len(exercises)
		ids = append(ids, e.id)
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(exercises) == 0 {
		return nil, nil
	}

	setRows, err := r.db.Query(
		ctx,
		`SELECT exercise_id, time_taken
			FROM sets
			WHERE exercise_id = ANY($1)
			ORDER BY created_at, id;`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer setRows.Close()

	for setRows.Next() {
		var (
			exerciseID int
			timeTaken  string
		)
		if err := setRows.Scan(&exerciseID, &timeTaken); err != nil {
			return nil, err
		}
		i := indexByID[exerciseID]
		exercises[i].SetsTimes = append(exercises[i].SetsTimes, timeTaken)
	}

	return exercises, setRows.Err()
}
