// Package stats folds practice results into a user's running statistics and
// derives the dashboard views from that history. Everything here is pure:
// inputs are never mutated and time is always passed in.
package stats

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/constraints"

	"hit/internal/model"
)

// DefaultChartSize is how many recent sessions the progress chart shows.
const DefaultChartSize = 10

// Attempt is one finished practice attempt ready to be recorded.
type Attempt struct {
	Analysis    model.AnalysisResult
	PhotoRef    string
	IsSpeedMode bool
	Mode        model.PromptMode
	PromptText  string
	Accuracy    *float64
}

// RecordSession appends a finished attempt to current and returns the
// recomputed statistics.
func RecordSession(current model.UserStats, analysis model.AnalysisResult, photoRef string, isSpeedMode bool, now time.Time) model.UserStats {
	return RecordAttempt(current, Attempt{
		Analysis:    analysis,
		PhotoRef:    photoRef,
		IsSpeedMode: isSpeedMode,
	}, now)
}

// RecordAttempt is RecordSession with the optional prompt details attached.
func RecordAttempt(current model.UserStats, attempt Attempt, now time.Time) model.UserStats {
	session := model.PracticeSession{
		ID:          NewSessionID(now),
		Date:        now,
		PhotoURL:    attempt.PhotoRef,
		Analysis:    attempt.Analysis,
		IsSpeedMode: attempt.IsSpeedMode,
		Mode:        attempt.Mode,
		PromptText:  attempt.PromptText,
		Accuracy:    attempt.Accuracy,
	}

	history := make([]model.PracticeSession, 0, len(current.History)+1)
	history = append(history, session)
	history = append(history, current.History...)

	scores := make([]float64, 0, len(history))
	for _, s := range history {
		scores = append(scores, s.Analysis.OverallScore)
	}

	return model.UserStats{
		Streak:        nextStreak(current, now),
		TotalSessions: len(history),
		AverageScore:  RoundedMean(scores),
		History:       history,
	}
}

// NewSessionID returns an id that sorts by creation time and stays unique
// when two sessions share the same instant.
func NewSessionID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()
}

func nextStreak(current model.UserStats, now time.Time) int {
	if len(current.History) == 0 {
		return 1
	}
	streak := current.Streak
	switch diff := CalendarDaysBetween(current.History[0].Date, now); {
	case diff == 1:
		streak++
	case diff > 1:
		streak = 1
	}
	// A recorded session always counts as a practice day.
	if streak < 1 {
		streak = 1
	}
	return streak
}

// CalendarDaysBetween counts midnight boundaries from "from" to "to", both read
// as calendar dates in to's location. It is negative when from is later.
func CalendarDaysBetween(from, to time.Time) int {
	fy, fm, fd := from.In(to.Location()).Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// RoundedMean returns the arithmetic mean rounded half away from zero, or 0
// for an empty slice.
func RoundedMean[T constraints.Integer | constraints.Float](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return math.Round(sum / float64(len(values)))
}

// ComputeSkillMastery averages metric scores per tracked skill label across
// the whole history. Labels match exactly; a skill never observed scores 0.
func ComputeSkillMastery(history []model.PracticeSession) []model.SkillMastery {
	observed := make(map[string][]float64, len(model.SkillLabels))
	for _, session := range history {
		for _, metric := range session.Analysis.Metrics {
			observed[metric.Label] = append(observed[metric.Label], metric.Score)
		}
	}
	result := make([]model.SkillMastery, 0, len(model.SkillLabels))
	for _, label := range model.SkillLabels {
		result = append(result, model.SkillMastery{
			Label: label,
			Score: RoundedMean(observed[label]),
		})
	}
	return result
}

// MasteryLevel names the tier for an average score.
func MasteryLevel(score float64) string {
	switch {
	case score >= 90:
		return "Master Scribe"
	case score >= 75:
		return "Adept Penman"
	case score >= 50:
		return "Apprentice"
	default:
		return "Novice Scribe"
	}
}

// ProgressChart returns up to n of the most recent sessions, oldest first.
func ProgressChart(history []model.PracticeSession, n int) []model.ProgressPoint {
	if n <= 0 {
		n = DefaultChartSize
	}
	if len(history) < n {
		n = len(history)
	}
	points := make([]model.ProgressPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		session := history[i]
		var wpm float64
		if session.Analysis.WPM != nil {
			wpm = *session.Analysis.WPM
		}
		points = append(points, model.ProgressPoint{
			Date:  session.Date,
			Score: session.Analysis.OverallScore,
			WPM:   wpm,
		})
	}
	return points
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WordsPerMinute is words over elapsed minutes, rounded; 0 when no time passed.
func WordsPerMinute(wordCount int, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 || wordCount <= 0 {
		return 0
	}
	wpm := float64(wordCount) / (elapsedSeconds / 60)
	if math.IsInf(wpm, 0) || math.IsNaN(wpm) {
		return 0
	}
	return math.Round(wpm)
}

// PracticeLevel grows by one for every five recorded sessions.
func PracticeLevel(totalSessions int) int {
	if totalSessions < 0 {
		totalSessions = 0
	}
	return totalSessions/5 + 1
}

// TopWPM is the fastest writing speed across the history, 0 when no session
// recorded one.
func TopWPM(history []model.PracticeSession) float64 {
	var top float64
	for _, session := range history {
		if session.Analysis.WPM != nil && *session.Analysis.WPM > top {
			top = *session.Analysis.WPM
		}
	}
	return top
}
