package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/middleware"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=users_test

type usersService interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	VerifyEmail(ctx context.Context, token string) (*User, string, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
	Logout(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	CompleteRegistration(ctx context.Context, userID int, req CompleteRegistrationRequest) (*User, error)
	Get(ctx context.Context, userID int) (*User, error)
	UpdateProfile(ctx context.Context, userID int, update ProfileUpdate) (*User, error)
}

type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

type AccountResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Token    string `json:"token,omitempty"`
}

type VerifyEmailResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type Handler struct {
	service      usersService
	cookieConfig CookieConfig
}

func NewHandler(service usersService, cookieConfig CookieConfig) *Handler {
	return &Handler{
		service:      service,
		cookieConfig: cookieConfig,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	allowedPerMin int,
) {
	router.HandleFunc("/verifyEmail/{token}", handler.HandleVerifyEmail).Methods("GET", "OPTIONS").Name("users-verify-email")
	router.HandleFunc("/logout", handler.HandleLogout).Methods("GET", "OPTIONS").Name("users-logout")
	router.HandleFunc("/resetPassword/{token}", handler.HandleResetPassword).Methods("PUT", "OPTIONS").Name("users-reset-password")
	router.HandleFunc("/completeRegistration", handler.HandleCompleteRegistration).Methods("POST", "OPTIONS").Name("users-complete-registration")
	router.HandleFunc("/me", handler.HandleGetMe).Methods("GET", "OPTIONS").Name("users-me")
	router.HandleFunc("/me", handler.HandleUpdateMe).Methods("PATCH", "OPTIONS").Name("users-me-update")

	// registration, login and forgot password are limited per client ip
	limited := router.NewRoute().Subrouter()
	limited.HandleFunc("/register", handler.HandleRegister).Methods("POST", "OPTIONS").Name("users-register")
	limited.HandleFunc("/login", handler.HandleLogin).Methods("POST", "OPTIONS").Name("users-login")
	limited.HandleFunc("/forgotPassword", handler.HandleForgotPassword).Methods("POST", "OPTIONS").Name("users-forgot-password")
	limited.Use(middleware.RateLimit(rateLimiter, "users-auth", allowedPerMin, metricsManager))
}

func (handler *Handler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(handler.cookieConfig.TTL.Seconds()),
		Expires:  time.Now().Add(handler.cookieConfig.TTL),
		HttpOnly: true,
		Secure:   handler.cookieConfig.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

func (handler *Handler) expireTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   handler.cookieConfig.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Debugf("users handler, unmarshal json params: %s", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes. Validation messages go to the client as-is.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Message, http.StatusBadRequest)
	case errors.Is(err, ErrEmailAlreadyUsed):
		http.Error(w, "Email has already been used", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, "Invalid email or password", http.StatusBadRequest)
	case errors.Is(err, ErrNotVerified):
		http.Error(w, "Please verify your email first", http.StatusForbidden)
	case errors.Is(err, ErrTokenInvalid):
		http.Error(w, "Invalid or Expired token", http.StatusNotFound)
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	default:
		log.Errorf("%s: %s", op, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func accountResponse(user *User, token string) AccountResponse {
	return AccountResponse{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Verified: user.Verified,
		Token:    token,
	}
}

func (handler *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := handler.service.Register(ctx, req)
	if err != nil {
		writeServiceError(w, "register user", err)
		return
	}

	log.Debugf("new user registered: %d", user.ID)
	pkg.WriteJSONResponse(w, accountResponse(user, ""), http.StatusCreated)
}

func (handler *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.verifyEmail")
	defer span.End()

	token := mux.Vars(r)["token"]
	if token == "" {
		http.Error(w, "Invalid or Expired token", http.StatusNotFound)
		return
	}

	_, sessionToken, err := handler.service.VerifyEmail(ctx, token)
	if err != nil {
		writeServiceError(w, "verify email", err)
		return
	}

	handler.setTokenCookie(w, sessionToken)
	pkg.WriteJSONResponse(w, VerifyEmailResponse{
		Message: "Successfully verified email",
		Token:   sessionToken,
	}, http.StatusOK)
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.login")
	defer span.End()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, sessionToken, err := handler.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}

	handler.setTokenCookie(w, sessionToken)
	pkg.WriteJSONResponse(w, accountResponse(user, sessionToken), http.StatusOK)
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.logout")
	defer span.End()

	if err := handler.service.Logout(ctx, middleware.TokenFromRequest(r)); err != nil {
		log.Errorf("logout: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	handler.expireTokenCookie(w)
	pkg.WriteMessageResponse(w, "Successfully logged out", http.StatusOK)
}

func (handler *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.forgotPassword")
	defer span.End()

	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := handler.service.ForgotPassword(ctx, req.Email); err != nil {
		writeServiceError(w, "forgot password", err)
		return
	}

	pkg.WriteMessageResponse(w, "If the email is registered, a reset link has been sent", http.StatusOK)
}

func (handler *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.resetPassword")
	defer span.End()

	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := handler.service.ResetPassword(ctx, mux.Vars(r)["token"], req.Password); err != nil {
		writeServiceError(w, "reset password", err)
		return
	}

	pkg.WriteMessageResponse(w, "Password successfully reset", http.StatusOK)
}

func (handler *Handler) HandleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.completeRegistration")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "Not authorized, please login", http.StatusUnauthorized)
		return
	}

	var req CompleteRegistrationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := handler.service.CompleteRegistration(ctx, userID, req)
	if err != nil {
		writeServiceError(w, "complete registration", err)
		return
	}

	pkg.WriteJSONResponse(w, struct {
		Message string `json:"message"`
		User    *User  `json:"user"`
	}{
		Message: "Registration completed successfully",
		User:    user,
	}, http.StatusOK)
}

func (handler *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.me")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "Not authorized, please login", http.StatusUnauthorized)
		return
	}

	user, err := handler.service.Get(ctx, userID)
	if err != nil {
		writeServiceError(w, "get user", err)
		return
	}

	pkg.WriteJSONResponse(w, user, http.StatusOK)
}

func (handler *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.updateMe")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "Not authorized, please login", http.StatusUnauthorized)
		return
	}

	var update ProfileUpdate
	if !decodeJSONBody(w, r, &update) {
		return
	}

	user, err := handler.service.UpdateProfile(ctx, userID, update)
	if err != nil {
		writeServiceError(w, "update profile", err)
		return
	}

	pkg.WriteJSONResponse(w, user, http.StatusOK)
}
