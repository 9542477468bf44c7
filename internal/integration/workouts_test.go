//go:build integration_test

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2beens/fittrack/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressResponse mirrors the progress report JSON, with pie charts as plain maps.
type progressResponse struct {
	Streak   int `json:"streak"`
	ThisWeek struct {
		WorkoutsCompleted int                `json:"workoutsCompleted"`
		TotalTimeSpent    float64            `json:"totalTimeSpent"`
		DailyTimeSpent    []float64          `json:"dailyTimeSpent"`
		PieChart          map[string]float64 `json:"pieChart"`
		PieChartTime      map[string]float64 `json:"pieChartTime"`
	} `json:"thisWeek"`
	ThisMonth struct {
		WorkoutsCompleted int `json:"workoutsCompleted"`
	} `json:"thisMonth"`
	ThisYear struct {
		WorkoutsCompleted int `json:"workoutsCompleted"`
	} `json:"thisYear"`
}

func (s *IntegrationTestSuite) startWorkout(ctx context.Context, token, name string) workouts.StartWorkoutResponse {
	t := s.T()
	resp, respBytes := doRequest(ctx, t, http.MethodPost, "/api/workouts/start", token, map[string]string{
		"workoutName": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(respBytes))

	var startResp workouts.StartWorkoutResponse
	require.NoError(t, json.Unmarshal(respBytes, &startResp))
	return startResp
}

func (s *IntegrationTestSuite) TestWorkoutLifecycleAndProgress() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account := s.registerVerified(ctx)

	started := s.startWorkout(ctx, account.Token, "Push day")
	assert.Equal(t, account.ID, started.UserID)
	assert.Equal(t, "Push day", started.WorkoutName)

	resp, respBytes := doRequest(ctx, t, http.MethodPost, "/api/workouts/exercises", account.Token, workouts.AddExerciseRequest{
		WorkoutID:    started.ID,
		ExerciseName: "Bench Press",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(respBytes))

	var exerciseResp workouts.ExerciseResponse
	require.NoError(t, json.Unmarshal(respBytes, &exerciseResp))
	require.NotNil(t, exerciseResp.Exercise)

	for _, timeTaken := range []string{"1:30", "2:00"} {
		resp, respBytes = doRequest(ctx, t, http.MethodPost, "/api/workouts/sets", account.Token, workouts.LogSetRequest{
			ExerciseID: exerciseResp.Exercise.ID,
			Weight:     80,
			Reps:       8,
			TimeTaken:  timeTaken,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(respBytes))
	}

	// malformed duration
	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/workouts/sets", account.Token, workouts.LogSetRequest{
		ExerciseID: exerciseResp.Exercise.ID,
		Weight:     80,
		Reps:       8,
		TimeTaken:  "90 seconds",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, respBytes = doRequest(ctx, t, http.MethodPost, "/api/workouts/stop", account.Token, map[string]int{
		"workoutId": started.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var stopResp workouts.StopWorkoutResponse
	require.NoError(t, json.Unmarshal(respBytes, &stopResp))
	assert.Equal(t, "Successfully stopped workout, 1 exercises completed", stopResp.Message)
	require.NotNil(t, stopResp.Workout)
	assert.True(t, stopResp.Workout.Completed)
	require.NotNil(t, stopResp.Workout.DurationMs)

	// stopped workouts take no more sets
	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/workouts/sets", account.Token, workouts.LogSetRequest{
		ExerciseID: exerciseResp.Exercise.ID,
		Weight:     80,
		Reps:       8,
		TimeTaken:  "1:00",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var workoutsCompleted, streak int
	var workoutDone bool
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT workouts_completed, workout_streak, workout_done FROM users WHERE id = $1`, account.ID,
	).Scan(&workoutsCompleted, &streak, &workoutDone))
	assert.Equal(t, 1, workoutsCompleted)
	assert.Equal(t, 1, streak)
	assert.True(t, workoutDone)

	resp, respBytes = doRequest(ctx, t, http.MethodGet, "/api/workouts/history", account.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var history []workouts.HistoryEntry
	require.NoError(t, json.Unmarshal(respBytes, &history))
	require.Len(t, history, 1)
	assert.Equal(t, started.ID, history[0].ID)
	assert.Equal(t, 1, history[0].ExercisesCompleted)

	resp, respBytes = doRequest(ctx, t, http.MethodGet, fmt.Sprintf("/api/workouts/%d/exercises", started.ID), account.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var exercises []workouts.Exercise
	require.NoError(t, json.Unmarshal(respBytes, &exercises))
	require.Len(t, exercises, 1)
	assert.Equal(t, "Bench Press", exercises[0].Name)
	assert.True(t, exercises[0].SetLogged)
	assert.Len(t, exercises[0].Sets, 2)

	resp, respBytes = doRequest(ctx, t, http.MethodGet, "/api/workouts/progress?tz=UTC", account.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))

	var progress progressResponse
	require.NoError(t, json.Unmarshal(respBytes, &progress))
	assert.Equal(t, 1, progress.Streak)
	assert.Equal(t, 1, progress.ThisWeek.WorkoutsCompleted)
	assert.Equal(t, 1, progress.ThisMonth.WorkoutsCompleted)
	assert.Equal(t, 1, progress.ThisYear.WorkoutsCompleted)
	assert.Len(t, progress.ThisWeek.DailyTimeSpent, 7)
	assert.Equal(t, map[string]float64{"Bench Press": 1}, progress.ThisWeek.PieChart)
	assert.InDelta(t, 3.5, progress.ThisWeek.PieChartTime["Bench Press"], 0.0001)
}

func (s *IntegrationTestSuite) TestStopEmptyWorkoutDeletesIt() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	account := s.registerVerified(ctx)
	started := s.startWorkout(ctx, account.Token, "Leg day")

	resp, respBytes := doRequest(ctx, t, http.MethodPost, "/api/workouts/stop", account.Token, map[string]int{
		"workoutId": started.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(respBytes))
	assert.Contains(t, string(respBytes), "Successfully stopped workout, 0 exercises completed")

	var count int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workouts WHERE id = $1`, started.ID,
	).Scan(&count))
	assert.Zero(t, count)

	var workoutsCompleted int
	require.NoError(t, s.DB.QueryRowContext(ctx,
		`SELECT workouts_completed FROM users WHERE id = $1`, account.ID,
	).Scan(&workoutsCompleted))
	assert.Zero(t, workoutsCompleted)

	// nothing completed yet
	resp, _ = doRequest(ctx, t, http.MethodGet, "/api/workouts/history", account.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestWorkoutsOfOtherUsersAreHidden() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := s.registerVerified(ctx)
	other := s.registerVerified(ctx)
	started := s.startWorkout(ctx, owner.Token, "Pull day")

	resp, _ := doRequest(ctx, t, http.MethodPost, "/api/workouts/exercises", other.Token, workouts.AddExerciseRequest{
		WorkoutID:    started.ID,
		ExerciseName: "Deadlift",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(ctx, t, http.MethodPost, "/api/workouts/stop", other.Token, map[string]int{
		"workoutId": started.ID,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
