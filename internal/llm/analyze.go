package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/fasttemplate"

	"hit/internal/model"
	"hit/internal/stats"
)

var analysisPromptTemplate = fasttemplate.New(`Analyze this image of handwriting{{mode}}.
Metrics: Total Time {{seconds}}s, Speed: {{wpm}} WPM.

Strict Evaluation Criteria:
1. Letter Clarity: Closed tops of 'a' and 'o', distinct loops.
2. Consistency: Baseline alignment and size uniformity.
3. Spacing: Tangle prevention between lines.
4. Slant: 5-15 degrees consistency.

Label the metrics exactly "Clarity", "Consistency", "Spacing" and "Slant".
Return JSON format with specific corrective feedback.`, "{{", "}}")

var analysisSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"overallScore":  map[string]any{"type": "NUMBER"},
		"styleDetected": map[string]any{"type": "STRING", "enum": []string{"cursive", "block", "calligraphy"}},
		"transcription": map[string]any{"type": "STRING"},
		"metrics": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"label":    map[string]any{"type": "STRING"},
					"score":    map[string]any{"type": "NUMBER"},
					"feedback": map[string]any{"type": "STRING"},
				},
				"required": []string{"label", "score", "feedback"},
			},
		},
		"suggestedExercises": map[string]any{
			"type":  "ARRAY",
			"items": map[string]any{"type": "STRING"},
		},
	},
	"required": []string{"overallScore", "styleDetected", "metrics", "suggestedExercises", "transcription"},
}

type AnalyzeRequest struct {
	Image          []byte
	MimeType       string
	ElapsedSeconds float64
	WordCount      int
	SpeedMode      bool
}

// Analyze scores a photographed practice sheet. The result is all or
// nothing: a response missing any required field is ErrInvalidResponse.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (model.AnalysisResult, error) {
	if len(req.Image) == 0 {
		return model.AnalysisResult{}, ErrEmptyInput
	}
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	wpm := stats.WordsPerMinute(req.WordCount, req.ElapsedSeconds)
	seconds := req.ElapsedSeconds

	mode := ""
	if req.SpeedMode {
		mode = " (Speed Writing Mode)"
	}
	text := analysisPromptTemplate.ExecuteString(map[string]interface{}{
		"mode":    mode,
		"seconds": strconv.FormatFloat(seconds, 'f', -1, 64),
		"wpm":     strconv.FormatFloat(wpm, 'f', -1, 64),
	})

	resp, err := c.generate(ctx, c.visionModel, generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(req.Image)}},
			{Text: text},
		}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   analysisSchema,
		},
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}
	raw, err := candidateText(resp)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	result, err := parseAnalysis(raw)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	result.WPM = &wpm
	result.TimeTakenSeconds = &seconds
	return result, nil
}

func parseAnalysis(content string) (model.AnalysisResult, error) {
	var parsed struct {
		OverallScore  *float64 `json:"overallScore"`
		StyleDetected *string  `json:"styleDetected"`
		Transcription *string  `json:"transcription"`
		Metrics       *[]struct {
			Label    *string  `json:"label"`
			Score    *float64 `json:"score"`
			Feedback *string  `json:"feedback"`
		} `json:"metrics"`
		SuggestedExercises *[]string `json:"suggestedExercises"`
	}
	if err := json.Unmarshal([]byte(extractJSONPayload(content)), &parsed); err != nil {
		return model.AnalysisResult{}, errors.Wrapf(ErrInvalidResponse, "decode analysis: %v", err)
	}

	missing := make([]string, 0)
	if parsed.OverallScore == nil {
		missing = append(missing, "overallScore")
	}
	if parsed.StyleDetected == nil {
		missing = append(missing, "styleDetected")
	}
	if parsed.Metrics == nil {
		missing = append(missing, "metrics")
	}
	if parsed.SuggestedExercises == nil {
		missing = append(missing, "suggestedExercises")
	}
	if parsed.Transcription == nil {
		missing = append(missing, "transcription")
	}
	if len(missing) > 0 {
		return model.AnalysisResult{}, errors.Wrapf(ErrInvalidResponse, "analysis missing %s", strings.Join(missing, ", "))
	}

	style := model.HandwritingStyle(strings.ToLower(strings.TrimSpace(*parsed.StyleDetected)))
	switch style {
	case model.StyleCursive, model.StyleBlock, model.StyleCalligraphy:
	default:
		return model.AnalysisResult{}, errors.Wrapf(ErrInvalidResponse, "unknown style %q", *parsed.StyleDetected)
	}

	metrics := make([]model.FeedbackMetric, 0, len(*parsed.Metrics))
	for i, m := range *parsed.Metrics {
		if m.Label == nil || m.Score == nil || m.Feedback == nil {
			return model.AnalysisResult{}, errors.Wrapf(ErrInvalidResponse, "metric %d incomplete", i)
		}
		metrics = append(metrics, model.FeedbackMetric{
			Label:    strings.TrimSpace(*m.Label),
			Score:    clampScore(*m.Score),
			Feedback: strings.TrimSpace(*m.Feedback),
		})
	}

	return model.AnalysisResult{
		OverallScore:       clampScore(*parsed.OverallScore),
		StyleDetected:      style,
		Metrics:            metrics,
		SuggestedExercises: uniqueNonEmptyStrings(*parsed.SuggestedExercises),
		Transcription:      strings.TrimSpace(*parsed.Transcription),
	}, nil
}

// clampScore maps a model score onto a whole number in [0, 100].
func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Round(math.Max(0, math.Min(100, v)))
}
