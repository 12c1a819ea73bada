package service

import (
	"context"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"

	"hit/internal/auth"
	"hit/internal/content"
	"hit/internal/llm"
	"hit/internal/model"
	"hit/internal/photostore"
	"hit/internal/stats"
	"hit/internal/store"
)

var (
	ErrLLMUnavailable     = errors.New("handwriting analysis is not configured")
	ErrAnalysisBusy       = errors.New("the analysis service is busy, please try again shortly")
	ErrSpeechUnavailable  = errors.New("dictation audio is unavailable right now")
	ErrPhotoRequired      = errors.New("provide imageBase64 or photoRef")
	ErrPhotoUnreadable    = errors.New("photo could not be read")
	ErrInvalidMode        = errors.New("mode must be sentence or paragraph")
	ErrInvalidSpeed       = errors.New("speed must be normal or fast")
	ErrTextRequired       = errors.New("provide text to dictate")
	ErrInvalidElapsedTime = errors.New("elapsedSeconds must not be negative")
	ErrAuthUnavailable    = errors.New("accounts are not configured")
	ErrInvalidTimeZone    = errors.New("timeZone must be an IANA zone name such as Europe/Berlin")
)

// AnalysisError is a terminal analysis failure. PhotoRef points at the
// stored photo so the attempt can be resubmitted without uploading again.
type AnalysisError struct {
	PhotoRef string
	Err      error
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Collaborator is the external model used for prompts, analysis and speech.
type Collaborator interface {
	GeneratePrompt(ctx context.Context, mode model.PromptMode, focusLetters []string) (string, error)
	Analyze(ctx context.Context, req llm.AnalyzeRequest) (model.AnalysisResult, error)
	SynthesizeSpeech(ctx context.Context, text string, speed model.SpeechSpeed) ([]byte, error)
}

type PromptRequest struct {
	Mode         model.PromptMode
	FocusLetters []string
}

type PromptResponse struct {
	Text      string           `json:"text"`
	Mode      model.PromptMode `json:"mode"`
	WordCount int              `json:"wordCount"`
	Fallback  bool             `json:"fallback"`
}

type PracticeRequest struct {
	ImageBase64    string           `json:"imageBase64,omitempty"`
	MimeType       string           `json:"mimeType,omitempty"`
	PhotoRef       string           `json:"photoRef,omitempty"`
	ElapsedSeconds float64          `json:"elapsedSeconds"`
	WordCount      int              `json:"wordCount,omitempty"`
	PromptText     string           `json:"promptText,omitempty"`
	Mode           model.PromptMode `json:"mode,omitempty"`
	SpeedMode      bool             `json:"speedMode"`
	// TimeZone is the user's IANA zone. Streak days are counted between
	// midnights in this zone; empty means the server's zone.
	TimeZone string `json:"timeZone,omitempty"`
}

type PracticeResponse struct {
	Analysis  model.AnalysisResult  `json:"analysis"`
	Session   model.PracticeSession `json:"session"`
	Stats     model.UserStats       `json:"stats"`
	IsBetter  bool                  `json:"isBetter"`
	Persisted bool                  `json:"persisted"`
}

type DictationRequest struct {
	Text  string            `json:"text"`
	Speed model.SpeechSpeed `json:"speed"`
}

type TemplatesResponse struct {
	Formats  []content.PageTemplate `json:"formats"`
	Tips     []model.Tip            `json:"tips"`
	UsageTip string                 `json:"usageTip"`
}

// Service owns every per-user transition: prompt, practice, dictation,
// dashboard, reset. Mutations for one user key run one at a time.
type Service struct {
	stats   store.StatsRepository
	photos  photostore.Store
	library *content.Library
	llm     Collaborator
	auth    *auth.Service

	achievementRules []achievementRule
	locks            *userLocks
	now              func() time.Time
}

func New(st store.StatsRepository, photos photostore.Store, library *content.Library) *Service {
	if photos == nil {
		photos = photostore.Inline{}
	}
	if library == nil {
		library = content.NewLibrary(content.Base)
	}
	return &Service{
		stats:            st,
		photos:           photos,
		library:          library,
		achievementRules: loadAchievementRules(),
		locks:            newUserLocks(),
		now:              time.Now,
	}
}

func (s *Service) SetCollaborator(c Collaborator) {
	s.llm = c
}

func (s *Service) SetAuth(a *auth.Service) {
	s.auth = a
}

// SetClock replaces the wall clock used to date recorded sessions.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) NextPrompt(ctx context.Context, req PromptRequest) (PromptResponse, error) {
	mode, err := parseMode(req.Mode)
	if err != nil {
		return PromptResponse{}, err
	}
	if s.llm == nil {
		text := s.library.RandomPrompt(mode)
		return PromptResponse{Text: text, Mode: mode, WordCount: stats.WordCount(text)}, nil
	}

	text, err := s.llm.GeneratePrompt(ctx, mode, req.FocusLetters)
	if err != nil {
		log.Printf("generate prompt failed mode=%s: %v", mode, err)
		fallback := s.library.Fallback()
		return PromptResponse{Text: fallback, Mode: mode, WordCount: stats.WordCount(fallback), Fallback: true}, nil
	}
	return PromptResponse{Text: text, Mode: mode, WordCount: stats.WordCount(text)}, nil
}

// SubmitPractice stores the photo, analyses it and folds the result into
// the user's statistics. A failed save still returns the new statistics
// with Persisted false.
func (s *Service) SubmitPractice(ctx context.Context, userKey string, req PracticeRequest) (PracticeResponse, error) {
	if s.llm == nil {
		return PracticeResponse{}, ErrLLMUnavailable
	}
	if req.ElapsedSeconds < 0 {
		return PracticeResponse{}, ErrInvalidElapsedTime
	}
	mode := req.Mode
	if mode != "" {
		var err error
		if mode, err = parseMode(mode); err != nil {
			return PracticeResponse{}, err
		}
	}
	loc, err := resolveLocation(req.TimeZone)
	if err != nil {
		return PracticeResponse{}, err
	}

	image, mimeType, photoRef, err := s.resolvePhoto(ctx, req)
	if err != nil {
		return PracticeResponse{}, err
	}

	promptText := strings.TrimSpace(req.PromptText)
	wordCount := req.WordCount
	if wordCount <= 0 {
		wordCount = stats.WordCount(promptText)
	}

	analysis, err := s.llm.Analyze(ctx, llm.AnalyzeRequest{
		Image:          image,
		MimeType:       mimeType,
		ElapsedSeconds: req.ElapsedSeconds,
		WordCount:      wordCount,
		SpeedMode:      req.SpeedMode,
	})
	if err != nil {
		if llm.IsRateLimited(err) {
			log.Printf("analysis rate limited user=%s photo_ref=%t: %v", userKey, photoRef != "", err)
			return PracticeResponse{}, &AnalysisError{PhotoRef: photoRef, Err: ErrAnalysisBusy}
		}
		return PracticeResponse{}, &AnalysisError{PhotoRef: photoRef, Err: err}
	}

	attempt := stats.Attempt{
		Analysis:    analysis,
		PhotoRef:    photoRef,
		IsSpeedMode: req.SpeedMode,
		Mode:        mode,
		PromptText:  promptText,
	}
	if accuracy, ok := stats.TranscriptionAccuracy(promptText, analysis.Transcription); ok {
		attempt.Accuracy = &accuracy
	}

	unlock := s.locks.lock(userKey)
	defer unlock()

	current, err := s.loadStats(userKey)
	if err != nil {
		return PracticeResponse{}, err
	}
	updated := stats.RecordAttempt(current, attempt, s.now().In(loc))

	persisted := true
	if err := s.stats.Save(userKey, updated); err != nil {
		log.Printf("save stats failed user=%s: %v", userKey, err)
		persisted = false
	}

	return PracticeResponse{
		Analysis:  analysis,
		Session:   updated.History[0],
		Stats:     updated,
		IsBetter:  analysis.IsBetter(),
		Persisted: persisted,
	}, nil
}

func (s *Service) resolvePhoto(ctx context.Context, req PracticeRequest) ([]byte, string, string, error) {
	if ref := strings.TrimSpace(req.PhotoRef); ref != "" {
		data, contentType, err := s.photos.Get(ctx, ref)
		if err != nil {
			if errors.Is(err, photostore.ErrUnknownRef) {
				return nil, "", "", errors.Wrap(ErrPhotoUnreadable, err.Error())
			}
			return nil, "", "", errors.Wrap(err, "load photo")
		}
		return data, contentType, ref, nil
	}

	raw := strings.TrimSpace(req.ImageBase64)
	if raw == "" {
		return nil, "", "", ErrPhotoRequired
	}
	data, contentType, err := photostore.DecodeDataURL(raw)
	if err != nil {
		return nil, "", "", errors.Wrap(ErrPhotoUnreadable, err.Error())
	}
	if mimeType := strings.TrimSpace(req.MimeType); mimeType != "" {
		contentType = mimeType
	}
	ref, err := s.photos.Put(ctx, data, contentType)
	if err != nil {
		return nil, "", "", errors.Wrap(err, "store photo")
	}
	return data, contentType, ref, nil
}

// Dictate renders text as WAV audio at the requested pace.
func (s *Service) Dictate(ctx context.Context, req DictationRequest) ([]byte, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrTextRequired
	}
	speed := req.Speed
	switch speed {
	case "":
		speed = model.SpeedNormal
	case model.SpeedNormal, model.SpeedFast:
	default:
		return nil, ErrInvalidSpeed
	}
	if s.llm == nil {
		return nil, ErrSpeechUnavailable
	}
	pcm, err := s.llm.SynthesizeSpeech(ctx, text, speed)
	if err != nil {
		log.Printf("synthesize speech failed speed=%s: %v", speed, err)
		return nil, ErrSpeechUnavailable
	}
	return llm.PCMToWAV(pcm), nil
}

func (s *Service) Stats(userKey string) (model.UserStats, error) {
	return s.loadStats(userKey)
}

// History returns up to limit sessions, most recent first. limit <= 0 means all.
func (s *Service) History(userKey string, limit int) ([]model.PracticeSession, error) {
	current, err := s.loadStats(userKey)
	if err != nil {
		return nil, err
	}
	history := current.History
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *Service) Dashboard(userKey string) (model.Dashboard, error) {
	current, err := s.loadStats(userKey)
	if err != nil {
		return model.Dashboard{}, err
	}
	return model.Dashboard{
		Streak:        current.Streak,
		TotalSessions: current.TotalSessions,
		AverageScore:  current.AverageScore,
		MasteryLevel:  stats.MasteryLevel(current.AverageScore),
		Level:         stats.PracticeLevel(current.TotalSessions),
		TopWPM:        stats.TopWPM(current.History),
		Skills:        stats.ComputeSkillMastery(current.History),
		Progress:      stats.ProgressChart(current.History, stats.DefaultChartSize),
		Tips:          s.library.Catalog().Tips,
		Achievements:  evaluateAchievements(s.achievementRules, current),
	}, nil
}

func (s *Service) Achievements(userKey string) ([]model.Achievement, error) {
	current, err := s.loadStats(userKey)
	if err != nil {
		return nil, err
	}
	return evaluateAchievements(s.achievementRules, current), nil
}

// ResetHistory drops every recorded session for the user.
func (s *Service) ResetHistory(userKey string) error {
	unlock := s.locks.lock(userKey)
	defer unlock()
	if err := s.stats.Delete(userKey); err != nil {
		return errors.Wrapf(err, "reset stats for %s", userKey)
	}
	return nil
}

func (s *Service) Templates() TemplatesResponse {
	catalog := s.library.Catalog()
	return TemplatesResponse{
		Formats:  catalog.PageTemplates,
		Tips:     catalog.Tips,
		UsageTip: catalog.UsageTip,
	}
}

func (s *Service) SignUp(email, password, displayName string) (auth.Session, error) {
	if s.auth == nil {
		return auth.Session{}, ErrAuthUnavailable
	}
	return s.auth.SignUp(email, password, displayName)
}

func (s *Service) SignIn(email, password string) (auth.Session, error) {
	if s.auth == nil {
		return auth.Session{}, ErrAuthUnavailable
	}
	return s.auth.SignIn(email, password)
}

func (s *Service) Guest() (auth.Session, error) {
	if s.auth == nil {
		return auth.Session{}, ErrAuthUnavailable
	}
	return s.auth.Guest()
}

// Profile returns the current account behind identity. The guest has no
// stored account and is returned as is.
func (s *Service) Profile(identity auth.Identity) (auth.Identity, error) {
	if identity.Guest {
		return identity, nil
	}
	if s.auth == nil {
		return auth.Identity{}, ErrAuthUnavailable
	}
	return s.auth.Account(identity.UID)
}

func (s *Service) loadStats(userKey string) (model.UserStats, error) {
	current, ok, err := s.stats.Load(userKey)
	if err != nil {
		return model.UserStats{}, errors.Wrapf(err, "load stats for %s", userKey)
	}
	if !ok {
		return model.UserStats{History: []model.PracticeSession{}}, nil
	}
	return current, nil
}

func resolveLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTimeZone, err.Error())
	}
	return loc, nil
}

func parseMode(mode model.PromptMode) (model.PromptMode, error) {
	switch model.PromptMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case "", model.ModeSentence:
		return model.ModeSentence, nil
	case model.ModeParagraph:
		return model.ModeParagraph, nil
	default:
		return "", ErrInvalidMode
	}
}
