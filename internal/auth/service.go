package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * time.Hour
	sessionKeyPrefix = "fittrack-session||"
	sessionsSetKey   = "fittrack-sessions"
)

// Service issues and revokes session tokens. A session is a signed JWT whose id (jti)
// must also be present in redis, so a logout revokes the token before it expires.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	tokenConfig TokenConfig
	// ability to inject session id generator func (for unit and dev testing)
	NewSessionID func() string
}

func NewAuthService(
	ttl time.Duration,
	tokenConfig TokenConfig,
	redisClient *redis.Client,
) *Service {
	return &Service{
		ttl:          ttl,
		tokenConfig:  tokenConfig,
		redisClient:  redisClient,
		NewSessionID: uuid.NewString,
	}
}

func (as *Service) TTL() time.Duration {
	return as.ttl
}

func (as *Service) Login(ctx context.Context, userID int, createdAt time.Time) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sessionID := as.NewSessionID()
	token, err := signToken(as.tokenConfig, userID, sessionID, createdAt, as.ttl)
	if err != nil {
		return "", err
	}

	sessionKey := sessionKeyPrefix + sessionID
	cmdSet := as.redisClient.Set(ctx, sessionKey, userID, as.ttl)
	if err := cmdSet.Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	// add session id to the set of sessions
	cmdSAdd := as.redisClient.SAdd(ctx, sessionsSetKey, sessionID)
	if err := cmdSAdd.Err(); err != nil {
		return "", fmt.Errorf("register session: %w", err)
	}

	return token, nil
}

// Logout revokes the session behind the token. Returns false if the session was already gone.
func (as *Service) Logout(ctx context.Context, token string) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.logout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	claims, err := parseToken(as.tokenConfig, token, false)
	if err != nil {
		return false, err
	}

	sessionKey := sessionKeyPrefix + claims.SessionID
	cmdDel := as.redisClient.Del(ctx, sessionKey)
	if err := cmdDel.Err(); err != nil {
		return false, err
	}

	// remove session id from the set of sessions
	cmdSRem := as.redisClient.SRem(ctx, sessionsSetKey, claims.SessionID)
	if err := cmdSRem.Err(); err != nil {
		return false, err
	}

	return cmdDel.Val() > 0, nil
}

// ScanAndClean will run through all registered sessions and drop the ones whose key expired.
func (as *Service) ScanAndClean(ctx context.Context) (int, error) {
	cmd := as.redisClient.SMembers(ctx, sessionsSetKey)
	if err := cmd.Err(); err != nil {
		return 0, fmt.Errorf("get sessions: %w", err)
	}

	sessionIDs := cmd.Val()
	if len(sessionIDs) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return 0, nil
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(sessionIDs))
	var toRemove []string
	for _, sessionID := range sessionIDs {
		err := as.redisClient.Get(ctx, sessionKeyPrefix+sessionID).Err()
		if errors.Is(err, redis.Nil) {
			toRemove = append(toRemove, sessionID)
			continue
		}
		if err != nil {
			log.Errorf("=> auth service, scan and clean session %s: %s", sessionID, err)
		}
	}

	removed := 0
	for _, sessionID := range toRemove {
		if err := as.redisClient.SRem(ctx, sessionsSetKey, sessionID).Err(); err != nil {
			log.Errorf("=> auth service, clean session %s: %s", sessionID, err)
			continue
		}
		removed++
	}

	log.Debugf("=> auth service, scan and clean done, removed %d sessions", removed)
	return removed, nil
}
