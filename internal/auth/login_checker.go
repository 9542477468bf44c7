package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	tokenConfig TokenConfig
	redisClient *redis.Client
}

func NewLoginChecker(tokenConfig TokenConfig, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		tokenConfig: tokenConfig,
		redisClient: redisClient,
	}
}

// IsLogged reports whether the token is a valid, non-revoked session, and whose it is.
// Malformed, expired and revoked tokens yield (0, false, nil).
func (c *LoginChecker) IsLogged(ctx context.Context, token string) (_ int, _ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "loginChecker.isLogged")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	claims, parseErr := parseToken(c.tokenConfig, token, true)
	if parseErr != nil {
		return 0, false, nil
	}

	cmd := c.redisClient.Get(ctx, sessionKeyPrefix+claims.SessionID)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	storedUserID, err := strconv.Atoi(cmd.Val())
	if err != nil {
		return 0, false, err
	}
	if storedUserID != claims.UserID {
		return 0, false, nil
	}

	return claims.UserID, true, nil
}
