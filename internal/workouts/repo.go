package workouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const workoutColumns = `id, user_id, name, started_at, completed, duration_ms, exercise_logged, created_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanWorkout(row pgx.Row) (*Workout, error) {
	var w Workout
	if err := row.Scan(
		&w.ID, &w.UserID, &w.Name, &w.StartedAt, &w.Completed, &w.DurationMs, &w.ExerciseLogged, &w.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repo) Start(ctx context.Context, userID int, name string, startedAt time.Time) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	row := r.db.QueryRow(
		ctx,
		`INSERT INTO workouts (user_id, name, started_at, created_at)
			VALUES ($1, $2, $3, $3)
			RETURNING `+workoutColumns+`;`,
		userID, name, startedAt,
	)
	w, err := scanWorkout(row)
	if err != nil {
		return nil, fmt.Errorf("insert workout for user %d: %w", userID, err)
	}
	return w, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	return scanWorkout(r.db.QueryRow(
		ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE id = $1;`,
		id,
	))
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM workouts WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// CountLoggedExercises counts the exercises of a workout that have at least one logged set.
func (r *Repo) CountLoggedExercises(ctx context.Context, workoutID int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.countLoggedExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM exercises WHERE workout_id = $1 AND set_logged = TRUE;`,
		workoutID,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Complete marks the workout completed and updates the owner's counters in one transaction.
// It returns the stopped workout and the owner's new completed workouts count.
func (r *Repo) Complete(ctx context.Context, params CompletedWorkout) (_ *Workout, _ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.complete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", params.WorkoutID), attribute.Int("user.id", params.UserID))

	var (
		workout           *Workout
		workoutsCompleted int
	)
	if err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		workout, err = scanWorkout(tx.QueryRow(
			ctx,
			`UPDATE workouts SET completed = TRUE, duration_ms = $1
				WHERE id = $2 AND completed = FALSE
				RETURNING `+workoutColumns+`;`,
			params.DurationMs, params.WorkoutID,
		))
		if err != nil {
			if errors.Is(err, ErrWorkoutNotFound) {
				return ErrWorkoutStopped
			}
			return err
		}

		return tx.QueryRow(
			ctx,
			`UPDATE users
				SET workouts_completed = workouts_completed + 1,
					workout_done = TRUE,
					workout_streak = $1,
					last_completed_workout = $2,
					updated_at = $2
				WHERE id = $3
				RETURNING workouts_completed;`,
			params.Streak, params.CompletedAt, params.UserID,
		).Scan(&workoutsCompleted)
	}); err != nil {
		return nil, 0, err
	}

	return workout, workoutsCompleted, nil
}

func (r *Repo) AddExercise(ctx context.Context, exercise Exercise) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.addExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", exercise.WorkoutID))

	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now()
	}

	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO exercises (workout_id, name, image, created_at)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING id;`,
		exercise.WorkoutID, exercise.Name, exercise.Image, exercise.CreatedAt,
	).Scan(&exercise.ID); err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	exercise.Sets = []Set{}
	return &exercise, nil
}

func (r *Repo) GetExercise(ctx context.Context, id int) (_ *Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.getExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var e Exercise
	if err := r.db.QueryRow(
		ctx,
		`SELECT id, workout_id, name, COALESCE(image, ''), set_logged, created_at
			FROM exercises WHERE id = $1;`,
		id,
	).Scan(&e.ID, &e.WorkoutID, &e.Name, &e.Image, &e.SetLogged, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return &e, nil
}

// LogSet stores the set and flags both its exercise and workout as having logged work.
func (r *Repo) LogSet(ctx context.Context, workoutID int, set Set) (_ *Set, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.logSet")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("exercise.id", set.ExerciseID), attribute.Int("workout.id", workoutID))

	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now()
	}

	if err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(
			ctx,
			`INSERT INTO sets (exercise_id, weight, reps, time_taken, created_at)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id;`,
			set.ExerciseID, set.Weight, set.Reps, set.TimeTaken, set.CreatedAt,
		).Scan(&set.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE exercises SET set_logged = TRUE WHERE id = $1;`, set.ExerciseID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE workouts SET exercise_logged = TRUE WHERE id = $1;`, workoutID)
		return err
	}); err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}

	return &set, nil
}

// History lists the user's workouts with logged exercises, oldest first.
func (r *Repo) History(ctx context.Context, userID int) (_ []HistoryEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`SELECT w.id, w.user_id, w.name, w.started_at, w.completed, w.duration_ms, w.exercise_logged, w.created_at,
				(SELECT COUNT(*) FROM exercises e WHERE e.workout_id = w.id AND e.set_logged = TRUE)
			FROM workouts w
			WHERE w.user_id = $1 AND w.exercise_logged = TRUE
			ORDER BY w.created_at, w.id;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.Name, &h.StartedAt, &h.Completed, &h.DurationMs, &h.ExerciseLogged, &h.CreatedAt,
			&h.ExercisesCompleted,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// ExercisesWithSets lists the workout's exercises in creation order, each with its sets.
func (r *Repo) ExercisesWithSets(ctx context.Context, workoutID int) (_ []Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.exercisesWithSets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", workoutID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, workout_id, name, COALESCE(image, ''), set_logged, created_at
			FROM exercises WHERE workout_id = $1
			ORDER BY created_at, id;`,
		workoutID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		exercises []Exercise
		ids       []int
		indexByID = map[int]int{}
	)
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.WorkoutID, &e.Name, &e.Image, &e.SetLogged, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Sets = []Set{}
		indexByID[e.ID] = len(exercises)
		ids = append(ids, e.ID)
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
		`SELECT id, exercise_id, weight, reps, time_taken, created_at
			FROM sets WHERE exercise_id = ANY($1)
			ORDER BY created_at, id;`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var s Set
		if err := setRows.Scan(&s.ID, &s.ExerciseID, &s.Weight, &s.Reps, &s.TimeTaken, &s.CreatedAt); err != nil {
			return nil, err
		}
		i := indexByID[s.ExerciseID]
		exercises[i].Sets = append(exercises[i].Sets, s)
	}

	return exercises, setRows.Err()
}
