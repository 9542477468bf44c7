package users

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

const userColumns = `id, name, email, password_hash, COALESCE(phone, ''), COALESCE(age, 0), COALESCE(workout_time, ''),
	verified, workout_done, workouts_completed, workout_streak, last_completed_workout, created_at, updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Age, &u.WorkoutTime,
		&u.Verified, &u.WorkoutDone, &u.WorkoutsCompleted, &u.WorkoutStreak, &u.LastCompletedWorkout,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repo) Add(ctx context.Context, user User) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	var id int
	if err := r.db.QueryRow(
		ctx,
		`INSERT INTO users (name, email, password_hash, verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id;`,
		user.Name, user.Email, user.PasswordHash, user.Verified, user.CreatedAt, user.UpdatedAt,
	).Scan(&id); err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrEmailAlreadyUsed
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	span.SetAttributes(attribute.Int("user.id", id))
	user.ID = id
	return &user, nil
}

func (r *Repo) GetByID(ctx context.Context, id int) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getById")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return scanUser(r.db.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1;`,
		id,
	))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.getByEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return scanUser(r.db.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1;`,
		NormalizeEmail(email),
	))
}

func (r *Repo) SetVerified(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.setVerified")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE users SET verified = TRUE, updated_at = now() WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) UpdatePassword(ctx context.Context, id int, passwordHash string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updatePassword")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2;`,
		passwordHash, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) UpdateProfile(ctx context.Context, id int, update ProfileUpdate) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	return scanUser(r.db.QueryRow(
		ctx,
		`UPDATE users SET
				name = COALESCE($1, name),
				phone = COALESCE($2, phone),
				age = COALESCE($3, age),
				workout_time = COALESCE($4, workout_time),
				updated_at = now()
			WHERE id = $5
			RETURNING `+userColumns+`;`,
		update.Name, update.Phone, update.Age, update.WorkoutTime, id,
	))
}

// ResetWorkoutDone clears the "workout done today" flag of all users.
func (r *Repo) ResetWorkoutDone(ctx context.Context) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.resetWorkoutDone")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `UPDATE users SET workout_done = FALSE WHERE workout_done;`)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("rows", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

// ListReminderCandidates returns verified users that did not work out today
// and whose preferred workout time falls into the given hour.
func (r *Repo) ListReminderCandidates(ctx context.Context, hour int) (_ []User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.listReminderCandidates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("hour", hour))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+userColumns+` FROM users
			WHERE verified AND NOT workout_done AND workout_time LIKE $1
			ORDER BY id;`,
		fmt.Sprintf("%02d:%%", hour),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
