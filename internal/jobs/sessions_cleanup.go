package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=sessions_cleanup_mocks_test.go -package=jobs_test

const SessionsCleanupInterval = 8 * time.Hour

type sessionsCleaner interface {
	ScanAndClean(ctx context.Context) (int, error)
}

// SessionsCleanupJob drops expired sessions from the session registry.
type SessionsCleanupJob struct {
	sessions sessionsCleaner
}

func NewSessionsCleanupJob(sessions sessionsCleaner) *SessionsCleanupJob {
	return &SessionsCleanupJob{
		sessions: sessions,
	}
}

func (j *SessionsCleanupJob) Name() string {
	return "sessions-cleanup"
}

func (j *SessionsCleanupJob) Run(ctx context.Context) error {
	removed, err := j.sessions.ScanAndClean(ctx)
	if err != nil {
		return err
	}
	log.Debugf("sessions cleanup: %d expired sessions removed", removed)
	return nil
}
