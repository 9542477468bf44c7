package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/mailer"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=users_test

type usersRepo interface {
	Add(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetVerified(ctx context.Context, id int) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateProfile(ctx context.Context, id int, update ProfileUpdate) (*User, error)
}

type tokensRepo interface {
	Issue(ctx context.Context, userID int, kind TokenKind, now time.Time) (string, error)
	Consume(ctx context.Context, token string, kind TokenKind, now time.Time) (int, error)
}

type sessionManager interface {
	Login(ctx context.Context, userID int, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type emailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CompleteRegistrationRequest struct {
	Phone       string `json:"phone"`
	Age         int    `json:"age"`
	WorkoutTime string `json:"workoutTime"`
}

type ServiceConfig struct {
	FrontendURL string
	AppName     string
}

type Service struct {
	repo           usersRepo
	tokens         tokensRepo
	sessions       sessionManager
	emails         emailSender
	config         ServiceConfig
	metricsManager *metrics.Manager
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewService(
	repo usersRepo,
	tokens tokensRepo,
	sessions sessionManager,
	emails emailSender,
	config ServiceConfig,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		repo:           repo,
		tokens:         tokens,
		sessions:       sessions,
		emails:         emails,
		config:         config,
		metricsManager: metricsManager,
		Now:            time.Now,
	}
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.config.FrontendURL, "/") + "/" + path + "/" + token
}

// Register creates an unverified user and emails them the verification link.
// A failed email is logged only, the account is created anyway.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.register")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, newValidationError("Please fill in all required fields")
	}
	if len(req.Password) < MinPasswordLength {
		return nil, newValidationError(fmt.Sprintf("Password must at least be %d characters", MinPasswordLength))
	}
	if !ValidEmail(req.Email) {
		return nil, newValidationError("Please enter a valid email")
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailAlreadyUsed
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	passwordHash, err := pkg.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now()
	user, err := s.repo.Add(ctx, User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("add user: %w", err)
	}
	s.metricsManager.CounterRegistrations.Inc()

	if err := s.sendTokenEmail(ctx, user, TokenKindVerifyEmail, now); err != nil {
		log.Errorf("register user %d, send verification email: %s", user.ID, err)
	}

	return user, nil
}

func (s *Service) sendTokenEmail(ctx context.Context, user *User, kind TokenKind, now time.Time) error {
	token, err := s.tokens.Issue(ctx, user.ID, kind, now)
	if err != nil {
		return fmt.Errorf("issue %s token: %w", kind, err)
	}

	var msg mailer.Message
	switch kind {
	case TokenKindVerifyEmail:
		msg, err = mailer.VerificationEmail(user.Email, user.Name, s.link("verifyEmail", token), s.config.AppName)
	case TokenKindResetPassword:
		msg, err = mailer.ResetPasswordEmail(user.Email, user.Name, s.link("resetPassword", token), s.config.AppName)
	default:
		return fmt.Errorf("unknown token kind: %s", kind)
	}
	if err != nil {
		return err
	}

	return s.emails.Send(ctx, msg)
}

// VerifyEmail consumes the verification token, marks the user verified and starts a session.
func (s *Service) VerifyEmail(ctx context.Context, token string) (_ *User, _ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.verifyEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := s.Now()
	userID, err := s.tokens.Consume(ctx, token, TokenKindVerifyEmail, now)
	if err != nil {
		return nil, "", err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if err := s.repo.SetVerified(ctx, user.ID); err != nil {
		return nil, "", fmt.Errorf("set verified: %w", err)
	}
	user.Verified = true

	sessionToken, err := s.sessions.Login(ctx, user.ID, now)
	if err != nil {
		return nil, "", fmt.Errorf("start session: %w", err)
	}

	return user, sessionToken, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (_ *User, _ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", newValidationError("Please add email and password")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user by email: %w", err)
	}

	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		log.Tracef("failed login attempt for user: %d", user.ID)
		return nil, "", ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, "", ErrNotVerified
	}

	sessionToken, err := s.sessions.Login(ctx, user.ID, s.Now())
	if err != nil {
		return nil, "", fmt.Errorf("start session: %w", err)
	}

	return user, sessionToken, nil
}

// Logout revokes the session. Missing or malformed tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.logout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if token == "" {
		return nil
	}

	if _, err := s.sessions.Logout(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
			return nil
		}
		return err
	}
	return nil
}

// ForgotPassword emails a reset link when the user exists. Unknown emails are silently ignored.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.forgotPassword")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	email = NormalizeEmail(email)
	if email == "" {
		return newValidationError("Please add an email")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Tracef("forgot password for unknown email")
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	return s.sendTokenEmail(ctx, user, TokenKindResetPassword, s.Now())
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.resetPassword")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if len(password) < MinPasswordLength {
		return newValidationError(fmt.Sprintf("Password must at least be %d characters", MinPasswordLength))
	}

	userID, err := s.tokens.Consume(ctx, token, TokenKindResetPassword, s.Now())
	if err != nil {
		return err
	}

	passwordHash, err := pkg.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) CompleteRegistration(ctx context.Context, userID int, req CompleteRegistrationRequest) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.completeRegistration")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	req.Phone = strings.TrimSpace(req.Phone)
	req.WorkoutTime = strings.TrimSpace(req.WorkoutTime)
	if req.Phone == "" || req.Age == 0 || req.WorkoutTime == "" {
		return nil, newValidationError("Please enter all fields")
	}

	update := ProfileUpdate{
		Phone:       &req.Phone,
		Age:         &req.Age,
		WorkoutTime: &req.WorkoutTime,
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	return s.repo.UpdateProfile(ctx, userID, update)
}

func (s *Service) Get(ctx context.Context, userID int) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int, update ProfileUpdate) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.updateProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if update.IsEmpty() {
		return nil, newValidationError("Nothing to update")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	return s.repo.UpdateProfile(ctx, userID, update)
}
