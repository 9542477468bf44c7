package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

//go:generate mockgen -source=$GOFILE -destination=daily_reset_mocks_test.go -package=jobs_test

type workoutDoneResetter interface {
	ResetWorkoutDone(ctx context.Context) (int64, error)
}

type expiredTokensPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DailyResetJob clears the "workout done today" flag of every user and drops expired
// one-time tokens.
type DailyResetJob struct {
	users  workoutDoneResetter
	tokens expiredTokensPurger
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewDailyResetJob(users workoutDoneResetter, tokens expiredTokensPurger) *DailyResetJob {
	return &DailyResetJob{
		users:  users,
		tokens: tokens,
		Now:    time.Now,
	}
}

func (j *DailyResetJob) Name() string {
	return "daily-reset"
}

func (j *DailyResetJob) Run(ctx context.Context) error {
	var err error

	reset, resetErr := j.users.ResetWorkoutDone(ctx)
	if resetErr != nil {
		err = multierr.Append(err, fmt.Errorf("reset workout done: %w", resetErr))
	} else {
		log.Infof("daily reset: workout done flag cleared for %d users", reset)
	}

	purged, purgeErr := j.tokens.PurgeExpired(ctx, j.Now())
	if purgeErr != nil {
		err = multierr.Append(err, fmt.Errorf("purge expired tokens: %w", purgeErr))
	} else {
		log.Debugf("daily reset: %d expired tokens purged", purged)
	}

	return err
}
