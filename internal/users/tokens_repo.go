package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type TokenKind string

const (
	TokenKindVerifyEmail   TokenKind = "verify_email"
	TokenKindResetPassword TokenKind = "reset_password"

	TokenTTL = 30 * time.Minute
)

// NewPlainToken returns a random one-time token for the user: 32 random bytes, hex encoded,
// followed by the user id.
func NewPlainToken(userID int) (string, error) {
	randomHex, err := pkg.GenerateRandomHex(32)
	if err != nil {
		return "", err
	}
	return randomHex + strconv.Itoa(userID), nil
}

// TokensRepo stores one-time user tokens. Only the sha256 hash of a token is persisted.
type TokensRepo struct {
	db *pgxpool.Pool
}

func NewTokensRepo(db *pgxpool.Pool) *TokensRepo {
	return &TokensRepo{
		db: db,
	}
}

// Issue creates a new token of the given kind, replacing the previous one of the same kind.
func (r *TokensRepo) Issue(ctx context.Context, userID int, kind TokenKind, now time.Time) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.issue")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID), attribute.String("kind", string(kind)))

	plain, err := NewPlainToken(userID)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	if err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`DELETE FROM user_tokens WHERE user_id = $1 AND kind = $2;`,
			userID, string(kind),
		); err != nil {
			return err
		}
		_, err := tx.Exec(
			ctx,
			`INSERT INTO user_tokens (user_id, kind, token_hash, created_at, expires_at)
				VALUES ($1, $2, $3, $4, $5);`,
			userID, string(kind), pkg.SHA256Hex(plain), now, now.Add(TokenTTL),
		)
		return err
	}); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	return plain, nil
}

// Consume deletes a valid token and returns the user it belongs to.
func (r *TokensRepo) Consume(ctx context.Context, token string, kind TokenKind, now time.Time) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.consume")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("kind", string(kind)))

	var userID int
	if err := r.db.QueryRow(
		ctx,
		`DELETE FROM user_tokens
			WHERE token_hash = $1 AND kind = $2 AND expires_at > $3
			RETURNING user_id;`,
		pkg.SHA256Hex(token), string(kind), now,
	).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrTokenInvalid
		}
		return 0, err
	}

	return userID, nil
}

func (r *TokensRepo) PurgeExpired(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.purgeExpired")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `DELETE FROM user_tokens WHERE expires_at <= $1;`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
