package progress

import "time"

const msPerHour = float64(time.Hour / time.Millisecond)

type WeekSummary struct {
	WorkoutsCompleted int        `json:"workoutsCompleted"`
	TotalTimeSpent    float64    `json:"totalTimeSpent"`
	AverageTimeSpent  float64    `json:"averageTimeSpent"`
	DailyTimeSpent    [7]float64 `json:"dailyTimeSpent"`
	PieChart          *Buckets   `json:"pieChart"`
	PieChartTime      *Buckets   `json:"pieChartTime"`
}

type PeriodSummary struct {
	WorkoutsCompleted int      `json:"workoutsCompleted"`
	TimeSpent         float64  `json:"timeSpent"`
	PieChart          *Buckets `json:"pieChart"`
	PieChartTime      *Buckets `json:"pieChartTime"`
}

type Report struct {
	Streak    int           `json:"streak"`
	ThisWeek  WeekSummary   `json:"thisWeek"`
	ThisMonth PeriodSummary `json:"thisMonth"`
	ThisYear  PeriodSummary `json:"thisYear"`
}

// WorkoutRecord is a workout as read for aggregation, with its logged exercises.
type WorkoutRecord struct {
	ID         int
	StartedAt  time.Time
	CreatedAt  time.Time
	Completed  bool
	DurationMs *int64
	Exercises  []ExerciseRecord
}

// ExerciseRecord holds an exercise name and the time taken of each of its sets, in creation order.
type ExerciseRecord struct {
	Name      string
	SetsTimes []string
}

func (w WorkoutRecord) eligible(window Window) bool {
	return w.Completed && w.DurationMs != nil && window.Contains(w.StartedAt)
}

func (w WorkoutRecord) hours() float64 {
	return float64(*w.DurationMs) / msPerHour
}
