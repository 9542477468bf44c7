package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fittrack/internal/mailer"
	"github.com/2beens/fittrack/internal/users"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	oneDay              = 24 * 60 * 60
	remindedCacheExpire = oneDay // seconds
	remindedCacheSize   = 1024 * 1024
)

//go:generate mockgen -source=$GOFILE -destination=reminders_mocks_test.go -package=jobs_test

type reminderCandidates interface {
	ListReminderCandidates(ctx context.Context, hour int) ([]users.User, error)
}

type reminderSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// RemindersJob emails verified users who have not worked out today and whose preferred
// workout time falls in the current hour. A user gets at most one reminder per day, even
// when the job runs more often than hourly.
type RemindersJob struct {
	users    reminderCandidates
	sender   reminderSender
	appName  string
	reminded *freecache.Cache
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewRemindersJob(users reminderCandidates, sender reminderSender, appName string) *RemindersJob {
	return &RemindersJob{
		users:    users,
		sender:   sender,
		appName:  appName,
		reminded: freecache.NewCache(remindedCacheSize),
		Now:      time.Now,
	}
}

func (j *RemindersJob) Name() string {
	return "reminders"
}

func remindedKey(userID int, now time.Time) []byte {
	return []byte(fmt.Sprintf("reminded::%d::%s", userID, now.Format(time.DateOnly)))
}

// Run keeps going when a single send fails; all failures are returned combined.
func (j *RemindersJob) Run(ctx context.Context) error {
	now := j.Now()
	hour := now.Hour()
	candidates, err := j.users.ListReminderCandidates(ctx, hour)
	if err != nil {
		return fmt.Errorf("list reminder candidates: %w", err)
	}

	var (
		sendErrs error
		sent     int
		skipped  int
	)
	for _, u := range candidates {
		key := remindedKey(u.ID, now)
		if _, err := j.reminded.Get(key); err == nil {
			skipped++
			continue
		}

		msg, err := mailer.ReminderEmail(u.Email, u.Name, u.WorkoutTime, u.WorkoutStreak, j.appName)
		if err == nil {
			err = j.sender.Send(ctx, msg)
		}
		if err != nil {
			log.Warnf("reminder for user %d: %s", u.ID, err)
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("user %d: %w", u.ID, err))
			continue
		}
		if err := j.reminded.Set(key, []byte{1}, remindedCacheExpire); err != nil {
			log.Errorf("failed to mark user %d as reminded: %s", u.ID, err)
		}
		sent++
	}

	log.Infof("reminders: %d/%d sent for hour %02d, %d already reminded today", sent, len(candidates), hour, skipped)
	return sendErrs
}
