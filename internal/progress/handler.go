package progress

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/internal/users"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=progress_test

type progressComputer interface {
	Compute(ctx context.Context, user *users.User, now time.Time) (*Report, error)
}

type usersGetter interface {
	GetByID(ctx context.Context, id int) (*users.User, error)
}

type Handler struct {
	aggregator progressComputer
	usersRepo  usersGetter
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewHandler(aggregator progressComputer, usersRepo usersGetter) *Handler {
	return &Handler{
		aggregator: aggregator,
		usersRepo:  usersRepo,
		Now:        time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/progress", handler.HandleProgress).Methods("GET", "OPTIONS").Name("workouts-progress")
}

// HandleProgress computes the report for the logged user. The optional tz query param
// (IANA name) selects the location the week/month/year windows are computed in.
func (handler *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "Not authorized, please login", http.StatusUnauthorized)
		return
	}

	now := handler.Now()
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			http.Error(w, "error, invalid tz", http.StatusBadRequest)
			return
		}
		now = now.In(loc)
	}

	user, err := handler.usersRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Errorf("progress, get user %d: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	report, err := handler.aggregator.Compute(ctx, user, now)
	if err != nil {
		log.Errorf("progress, compute for user %d: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, report, http.StatusOK)
}
