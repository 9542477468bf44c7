package progress

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/internal/users"
	"github.com/2beens/fittrack/internal/workouts"

	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=aggregator_mocks_test.go -package=progress_test

type workoutsStore interface {
	// CompletedWorkouts returns the user's completed workouts started within the window,
	// each with its exercises that have a logged set.
	CompletedWorkouts(ctx context.Context, userID int, window Window) ([]WorkoutRecord, error)
}

// Aggregator builds progress reports. It only reads, every call recomputes from storage.
type Aggregator struct {
	store          workoutsStore
	metricsManager *metrics.Manager
}

func NewAggregator(store workoutsStore, metricsManager *metrics.Manager) *Aggregator {
	return &Aggregator{
		store:          store,
		metricsManager: metricsManager,
	}
}

func (a *Aggregator) Compute(ctx context.Context, user *users.User, now time.Time) (_ *Report, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.compute")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", user.ID))

	startedAt := time.Now()
	defer func() {
		a.metricsManager.HistogramProgressDuration.Observe(time.Since(startedAt).Seconds())
	}()

	weekWindow := WeekWindow(now)
	weekRecords, err := a.store.CompletedWorkouts(ctx, user.ID, weekWindow)
	if err != nil {
		return nil, fmt.Errorf("week workouts: %w", err)
	}
	monthWindow := MonthWindow(now)
	monthRecords, err := a.store.CompletedWorkouts(ctx, user.ID, monthWindow)
	if err != nil {
		return nil, fmt.Errorf("month workouts: %w", err)
	}
	yearWindow := YearWindow(now)
	yearRecords, err := a.store.CompletedWorkouts(ctx, user.ID, yearWindow)
	if err != nil {
		return nil, fmt.Errorf("year workouts: %w", err)
	}

	week := aggregate(weekRecords, weekWindow, true)
	month := aggregate(monthRecords, monthWindow, false)
	year := aggregate(yearRecords, yearWindow, false)

	report := &Report{
		Streak: user.WorkoutStreak,
		ThisWeek: WeekSummary{
			WorkoutsCompleted: week.workoutsCompleted,
			TotalTimeSpent:    week.hours,
			DailyTimeSpent:    week.dailyHours,
			PieChart:          week.pieChart,
			PieChartTime:      week.pieChartTime,
		},
		ThisMonth: month.periodSummary(),
		ThisYear:  year.periodSummary(),
	}
	if week.workoutsCompleted > 0 {
		report.ThisWeek.AverageTimeSpent = week.hours / float64(week.workoutsCompleted)
	}

	return report, nil
}

type windowTotals struct {
	workoutsCompleted int
	hours             float64
	dailyHours        [7]float64
	pieChart          *Buckets
	pieChartTime      *Buckets
}

func (t windowTotals) periodSummary() PeriodSummary {
	return PeriodSummary{
		WorkoutsCompleted: t.workoutsCompleted,
		TimeSpent:         t.hours,
		PieChart:          t.pieChart,
		PieChartTime:      t.pieChartTime,
	}
}

// aggregate folds the eligible records of one window. Records are processed by creation
// order, which is what makes the capped buckets reproducible. Daily hours are only
// collected when rich is set.
func aggregate(records []WorkoutRecord, window Window, rich bool) windowTotals {
	totals := windowTotals{
		pieChart:     NewBuckets(),
		pieChartTime: NewBuckets(),
	}

	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, func(a, b WorkoutRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.ID - b.ID
	})

	for _, w := range ordered {
		if !w.eligible(window) {
			continue
		}
		hours := w.hours()
		totals.workoutsCompleted++
		totals.hours += hours
		if rich {
			totals.dailyHours[w.StartedAt.In(window.Start.Location()).Weekday()] += hours
		}

		for _, e := range w.Exercises {
			totals.pieChart.Add(e.Name, 1)

			timeBucket := totals.pieChartTime.BucketFor(e.Name)
			for _, timeTaken := range e.SetsTimes {
				totals.pieChartTime.AddTo(timeBucket, workouts.TimeTakenMinutes(timeTaken))
			}
		}
	}

	return totals
}
