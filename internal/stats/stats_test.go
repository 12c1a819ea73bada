package stats_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hit/internal/model"
	"hit/internal/stats"
)

func day(d int, hour int) time.Time {
	return time.Date(2024, time.January, d, hour, 0, 0, 0, time.Local)
}

func analysis(score float64, metrics ...model.FeedbackMetric) model.AnalysisResult {
	return model.AnalysisResult{
		OverallScore:       score,
		StyleDetected:      model.StyleCursive,
		Metrics:            metrics,
		SuggestedExercises: []string{"loops"},
		Transcription:      "text",
	}
}

func TestRecordSessionFirstSession(t *testing.T) {
	got := stats.RecordSession(model.UserStats{}, analysis(72), "photo", false, day(1, 9))

	assert.Equal(t, 1, got.Streak)
	assert.Equal(t, 1, got.TotalSessions)
	assert.Equal(t, float64(72), got.AverageScore)
	require.Len(t, got.History, 1)
	assert.Equal(t, "photo", got.History[0].PhotoURL)
	assert.Equal(t, day(1, 9), got.History[0].Date)
	assert.NotEmpty(t, got.History[0].ID)
}

func TestRecordSessionConsecutiveDays(t *testing.T) {
	first := stats.RecordSession(model.UserStats{}, analysis(60), "a", false, day(1, 10))
	second := stats.RecordSession(first, analysis(80), "b", false, day(2, 8))

	assert.Equal(t, 2, second.Streak)
	assert.Equal(t, 2, second.TotalSessions)
	assert.Equal(t, float64(70), second.AverageScore)
	assert.Equal(t, "b", second.History[0].PhotoURL)
	assert.Equal(t, "a", second.History[1].PhotoURL)
}

func TestRecordSessionGapResetsStreak(t *testing.T) {
	first := stats.RecordSession(model.UserStats{}, analysis(60), "a", false, day(1, 10))
	got := stats.RecordSession(first, analysis(100), "b", false, day(5, 10))

	assert.Equal(t, 1, got.Streak)
	assert.Equal(t, 2, got.TotalSessions)
	assert.Equal(t, float64(80), got.AverageScore)
}

func TestRecordSessionSameDayKeepsStreak(t *testing.T) {
	current := model.UserStats{
		Streak:        4,
		TotalSessions: 1,
		AverageScore:  50,
		History:       []model.PracticeSession{{ID: "x", Date: day(3, 7), Analysis: analysis(50)}},
	}
	got := stats.RecordSession(current, analysis(90), "p", true, day(3, 22))

	assert.Equal(t, 4, got.Streak)
	assert.Equal(t, 2, got.TotalSessions)
	assert.True(t, got.History[0].IsSpeedMode)
}

func TestRecordSessionPreviousDateInFutureKeepsStreak(t *testing.T) {
	current := model.UserStats{
		Streak:        3,
		TotalSessions: 1,
		History:       []model.PracticeSession{{ID: "x", Date: day(5, 7), Analysis: analysis(50)}},
	}
	got := stats.RecordSession(current, analysis(50), "p", false, day(3, 7))

	assert.Equal(t, 3, got.Streak)
}

func TestRecordSessionRepairsZeroStreak(t *testing.T) {
	current := model.UserStats{
		History: []model.PracticeSession{{ID: "x", Date: day(3, 7), Analysis: analysis(50)}},
	}
	got := stats.RecordSession(current, analysis(50), "p", false, day(3, 9))

	assert.Equal(t, 1, got.Streak)
}

func TestRecordSessionUsesCalendarDaysNotElapsedHours(t *testing.T) {
	// 23:30 to 00:15 the next day is under an hour but still a new day.
	first := stats.RecordSession(model.UserStats{}, analysis(60), "a", false, time.Date(2024, 3, 1, 23, 30, 0, 0, time.Local))
	got := stats.RecordSession(first, analysis(60), "b", false, time.Date(2024, 3, 2, 0, 15, 0, 0, time.Local))
	assert.Equal(t, 2, got.Streak)

	// 00:15 to 23:45 on the same day is almost 24h but the same date.
	first = stats.RecordSession(model.UserStats{}, analysis(60), "a", false, time.Date(2024, 3, 1, 0, 15, 0, 0, time.Local))
	got = stats.RecordSession(first, analysis(60), "b", false, time.Date(2024, 3, 1, 23, 45, 0, 0, time.Local))
	assert.Equal(t, 1, got.Streak)
}

func TestCalendarDaysBetweenReadsDatesInTargetZone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	// 2024-01-02 03:00 UTC is still Jan 1 in UTC-5.
	prev := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 2, 9, 0, 0, 0, zone)

	assert.Equal(t, 1, stats.CalendarDaysBetween(prev, now))
	assert.Equal(t, -1, stats.CalendarDaysBetween(now.AddDate(0, 0, 1), now))
	assert.Equal(t, 0, stats.CalendarDaysBetween(now, now))
}

func TestRecordSessionAverageRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{name: "70 and 71", scores: []float64{70, 71}, want: 71},
		{name: "0 and 1", scores: []float64{0, 1}, want: 1},
		{name: "below half", scores: []float64{70, 70, 71}, want: 70},
		{name: "above half", scores: []float64{70, 71, 71}, want: 71},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			current := model.UserStats{}
			for i, score := range tc.scores {
				current = stats.RecordSession(current, analysis(score), "p", false, day(1+i, 9))
			}
			assert.Equal(t, tc.want, current.AverageScore)
		})
	}
}

func TestRecordSessionDoesNotMutateInput(t *testing.T) {
	history := make([]model.PracticeSession, 1, 4)
	history[0] = model.PracticeSession{ID: "old", Date: day(1, 9), Analysis: analysis(40)}
	current := model.UserStats{Streak: 1, TotalSessions: 1, AverageScore: 40, History: history}

	got := stats.RecordSession(current, analysis(90), "p", false, day(2, 9))

	assert.Equal(t, 1, current.Streak)
	assert.Equal(t, 1, current.TotalSessions)
	assert.Equal(t, float64(40), current.AverageScore)
	require.Len(t, current.History, 1)
	assert.Equal(t, "old", current.History[0].ID)
	assert.Empty(t, history[:2][1].ID)
	assert.Len(t, got.History, 2)
}

func TestRecordSessionIDsAreUniqueForSameInstant(t *testing.T) {
	now := day(1, 9)
	a := stats.RecordSession(model.UserStats{}, analysis(50), "p", false, now)
	b := stats.RecordSession(model.UserStats{}, analysis(50), "p", false, now)

	assert.NotEqual(t, a.History[0].ID, b.History[0].ID)
}

func TestRecordAttemptKeepsPromptDetails(t *testing.T) {
	accuracy := 93.0
	got := stats.RecordAttempt(model.UserStats{}, stats.Attempt{
		Analysis:   analysis(80),
		PhotoRef:   "p",
		Mode:       model.ModeParagraph,
		PromptText: "The quick brown fox.",
		Accuracy:   &accuracy,
	}, day(1, 9))

	require.Len(t, got.History, 1)
	assert.Equal(t, model.ModeParagraph, got.History[0].Mode)
	assert.Equal(t, "The quick brown fox.", got.History[0].PromptText)
	require.NotNil(t, got.History[0].Accuracy)
	assert.Equal(t, 93.0, *got.History[0].Accuracy)
}

func TestComputeSkillMastery(t *testing.T) {
	history := []model.PracticeSession{
		{Analysis: analysis(80,
			model.FeedbackMetric{Label: "Clarity", Score: 80},
			model.FeedbackMetric{Label: "Slant", Score: 70},
			model.FeedbackMetric{Label: "clarity", Score: 0},
		)},
		{Analysis: analysis(90,
			model.FeedbackMetric{Label: "Clarity", Score: 90},
			model.FeedbackMetric{Label: "Spacing", Score: 85},
			model.FeedbackMetric{Label: "Spacing", Score: 80},
		)},
	}

	got := stats.ComputeSkillMastery(history)

	assert.Equal(t, []model.SkillMastery{
		{Label: "Clarity", Score: 85},
		{Label: "Consistency", Score: 0},
		{Label: "Slant", Score: 70},
		{Label: "Spacing", Score: 83},
	}, got)
}

func TestComputeSkillMasteryEmptyHistory(t *testing.T) {
	got := stats.ComputeSkillMastery(nil)

	require.Len(t, got, 4)
	for i, label := range model.SkillLabels {
		assert.Equal(t, label, got[i].Label)
		assert.Zero(t, got[i].Score)
	}
}

func TestMasteryLevel(t *testing.T) {
	assert.Equal(t, "Master Scribe", stats.MasteryLevel(90))
	assert.Equal(t, "Adept Penman", stats.MasteryLevel(89))
	assert.Equal(t, "Adept Penman", stats.MasteryLevel(75))
	assert.Equal(t, "Apprentice", stats.MasteryLevel(50))
	assert.Equal(t, "Novice Scribe", stats.MasteryLevel(49))
	assert.Equal(t, "Novice Scribe", stats.MasteryLevel(0))
}

func TestProgressChartOldestFirstLimited(t *testing.T) {
	current := model.UserStats{}
	for i := 1; i <= 12; i++ {
		a := analysis(float64(i * 5))
		if i%2 == 0 {
			wpm := float64(i)
			a.WPM = &wpm
		}
		current = stats.RecordSession(current, a, "p", false, day(i, 9))
	}

	points := stats.ProgressChart(current.History, 0)

	require.Len(t, points, stats.DefaultChartSize)
	assert.Equal(t, day(3, 9), points[0].Date)
	assert.Equal(t, float64(15), points[0].Score)
	assert.Zero(t, points[0].WPM)
	assert.Equal(t, day(12, 9), points[9].Date)
	assert.Equal(t, float64(12), points[9].WPM)
}

func TestProgressChartShortHistory(t *testing.T) {
	current := stats.RecordSession(model.UserStats{}, analysis(40), "p", false, day(1, 9))
	current = stats.RecordSession(current, analysis(60), "p", false, day(2, 9))

	points := stats.ProgressChart(current.History, 10)

	require.Len(t, points, 2)
	assert.Equal(t, float64(40), points[0].Score)
	assert.Equal(t, float64(60), points[1].Score)
}

func TestWordsPerMinute(t *testing.T) {
	assert.Equal(t, float64(10), stats.WordsPerMinute(10, 60))
	assert.Equal(t, float64(17), stats.WordsPerMinute(25, 90))
	assert.Zero(t, stats.WordsPerMinute(10, 0))
	assert.Zero(t, stats.WordsPerMinute(0, 30))
	assert.Equal(t, 9, stats.WordCount("  The quick brown fox jumps over the lazy dog. "))
}

func TestPracticeLevelAndTopWPM(t *testing.T) {
	assert.Equal(t, 1, stats.PracticeLevel(0))
	assert.Equal(t, 1, stats.PracticeLevel(4))
	assert.Equal(t, 2, stats.PracticeLevel(5))
	assert.Equal(t, 3, stats.PracticeLevel(12))

	current := model.UserStats{}
	assert.Zero(t, stats.TopWPM(current.History))
	for i, v := range []float64{12, 31, 18} {
		a := analysis(70)
		wpm := v
		a.WPM = &wpm
		current = stats.RecordSession(current, a, "p", true, day(i+1, 9))
	}
	current = stats.RecordSession(current, analysis(70), "p", false, day(5, 9))
	assert.Equal(t, float64(31), stats.TopWPM(current.History))
}
