package model

import "time"

type HandwritingStyle string

const (
	StyleCursive     HandwritingStyle = "cursive"
	StyleBlock       HandwritingStyle = "block"
	StyleCalligraphy HandwritingStyle = "calligraphy"
)

type PageFormat string

const (
	PageFourRule PageFormat = "four-rule"
	PageLined    PageFormat = "lined"
	PageUnruled  PageFormat = "unruled"
)

type PromptMode string

const (
	ModeSentence  PromptMode = "sentence"
	ModeParagraph PromptMode = "paragraph"
)

type SpeechSpeed string

const (
	SpeedNormal SpeechSpeed = "normal"
	SpeedFast   SpeechSpeed = "fast"
)

// Skill labels tracked on the dashboard, in display order.
const (
	SkillClarity     = "Clarity"
	SkillConsistency = "Consistency"
	SkillSlant       = "Slant"
	SkillSpacing     = "Spacing"
)

var SkillLabels = []string{SkillClarity, SkillConsistency, SkillSlant, SkillSpacing}

type FeedbackMetric struct {
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type AnalysisResult struct {
	OverallScore       float64          `json:"overallScore"`
	StyleDetected      HandwritingStyle `json:"styleDetected"`
	Metrics            []FeedbackMetric `json:"metrics"`
	SuggestedExercises []string         `json:"suggestedExercises"`
	Transcription      string           `json:"transcription"`
	WPM                *float64         `json:"wpm,omitempty"`
	TimeTakenSeconds   *float64         `json:"timeTakenSeconds,omitempty"`
}

// IsBetter reports whether the attempt cleared the "good work" threshold.
func (a AnalysisResult) IsBetter() bool {
	return a.OverallScore > 70
}

type PracticeSession struct {
	ID          string         `json:"id"`
	Date        time.Time      `json:"date"`
	PhotoURL    string         `json:"photoUrl"`
	Analysis    AnalysisResult `json:"analysis"`
	IsSpeedMode bool           `json:"isSpeedMode,omitempty"`
	Mode        PromptMode     `json:"mode,omitempty"`
	PromptText  string         `json:"promptText,omitempty"`
	Accuracy    *float64       `json:"accuracy,omitempty"`
}

type UserStats struct {
	Streak        int               `json:"streak"`
	TotalSessions int               `json:"totalSessions"`
	AverageScore  float64           `json:"averageScore"`
	History       []PracticeSession `json:"history"`
}

type SkillMastery struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type ProgressPoint struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
	WPM   float64   `json:"wpm"`
}

type Tip struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Icon  string `json:"icon,omitempty"`
}

type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
	Progress    int    `json:"progress"`
	Target      int    `json:"target"`
}

type Dashboard struct {
	Streak        int             `json:"streak"`
	TotalSessions int             `json:"totalSessions"`
	AverageScore  float64         `json:"averageScore"`
	MasteryLevel  string          `json:"masteryLevel"`
	Level         int             `json:"level"`
	TopWPM        float64         `json:"topWpm"`
	Skills        []SkillMastery  `json:"skills"`
	Progress      []ProgressPoint `json:"progress"`
	Tips          []Tip           `json:"tips"`
	Achievements  []Achievement   `json:"achievements"`
}

type Account struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
