package users

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyUsed   = errors.New("email has already been used")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified")
	ErrTokenInvalid       = errors.New("invalid or expired token")
)

// ValidationError carries a message meant for the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

const MinPasswordLength = 6

var (
	emailRegex       = regexp.MustCompile(`^[^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*@([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}$`)
	phoneRegex       = regexp.MustCompile(`^\d{4}-\d{7}$`)
	workoutTimeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

type User struct {
	ID                   int        `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"-"`
	Phone                string     `json:"phone,omitempty"`
	Age                  int        `json:"age,omitempty"`
	WorkoutTime          string     `json:"workoutTime,omitempty"`
	Verified             bool       `json:"verified"`
	WorkoutDone          bool       `json:"workoutDone"`
	WorkoutsCompleted    int        `json:"workoutsCompleted"`
	WorkoutStreak        int        `json:"workoutStreak"`
	LastCompletedWorkout *time.Time `json:"lastCompletedWorkout,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ProfileUpdate holds the optional profile fields; nil fields are left unchanged.
type ProfileUpdate struct {
	Name        *string `json:"name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Age         *int    `json:"age,omitempty"`
	WorkoutTime *string `json:"workoutTime,omitempty"`
}

func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Age == nil && p.WorkoutTime == nil
}

func (p ProfileUpdate) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return newValidationError("Please add a name")
	}
	if p.Phone != nil && !ValidPhone(*p.Phone) {
		return newValidationError("Please enter a valid phone number")
	}
	if p.Age != nil && (*p.Age < 1 || *p.Age > 120) {
		return newValidationError("Please enter a valid age")
	}
	if p.WorkoutTime != nil && !ValidWorkoutTime(*p.WorkoutTime) {
		return newValidationError("Please enter a valid workout time (HH:MM)")
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func ValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

func ValidWorkoutTime(workoutTime string) bool {
	return workoutTimeRegex.MatchString(workoutTime)
}

// NextStreak returns the workout streak after a workout completed at now.
// A workout on the day after the last completed one extends the streak, another one on the
// same day keeps it, anything else starts a new streak.
func NextStreak(current int, lastCompleted *time.Time, now time.Time) int {
	if lastCompleted == nil {
		return 1
	}

	last := lastCompleted.In(now.Location())
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case lastDay.Equal(today):
		return max(current, 1)
	case lastDay.AddDate(0, 0, 1).Equal(today):
		return current + 1
	default:
		return 1
	}
}
