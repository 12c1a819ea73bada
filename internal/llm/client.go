package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var (
	ErrInvalidResponse = errors.New("invalid llm response")
	ErrEmptyInput      = errors.New("llm input is empty")
)

type Config struct {
	BaseURL     string
	APIKey      string
	TextModel   string
	VisionModel string
	SpeechModel string
	Voice       string
	Timeout     time.Duration

	// Requests per second sent to the API; zero means unlimited.
	RequestsPerSecond float64
	Retry             RetryPolicy
}

type Client struct {
	baseURL     string
	apiKey      string
	textModel   string
	visionModel string
	speechModel string
	voice       string
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	retry       RetryPolicy
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	textModel := strings.TrimSpace(cfg.TextModel)
	if textModel == "" {
		textModel = "gemini-3-flash-preview"
	}
	visionModel := strings.TrimSpace(cfg.VisionModel)
	if visionModel == "" {
		visionModel = textModel
	}
	speechModel := strings.TrimSpace(cfg.SpeechModel)
	if speechModel == "" {
		speechModel = "gemini-2.5-flash-preview-tts"
	}
	voice := strings.TrimSpace(cfg.Voice)
	if voice == "" {
		voice = "Kore"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		textModel:   textModel,
		visionModel: visionModel,
		speechModel: speechModel,
		voice:       voice,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(limit, 1),
		retry:       cfg.Retry.withDefaults(),
	}, nil
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// generate calls models/{model}:generateContent, retrying rate limits per
// the client's policy.
func (c *Client) generate(ctx context.Context, model string, req generateRequest) (generateResponse, error) {
	return withRetry(ctx, c.retry, func(ctx context.Context) (generateResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return generateResponse{}, err
		}
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		raw, err := c.doJSON(ctx, "/v1beta/models/"+url.PathEscape(model)+":generateContent", req)
		if err != nil {
			return generateResponse{}, err
		}
		var resp generateResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return generateResponse{}, errors.Wrap(ErrInvalidResponse, err.Error())
		}
		if reason := resp.PromptFeedback.BlockReason; reason != "" {
			return generateResponse{}, errors.Wrapf(ErrInvalidResponse, "prompt blocked: %s", reason)
		}
		if len(resp.Candidates) == 0 {
			return generateResponse{}, errors.Wrap(ErrInvalidResponse, "no candidates")
		}
		return resp, nil
	})
}

func (c *Client) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, resp.Header, respBody)
	}
	return respBody, nil
}

// APIError is a non-success response that is not worth retrying.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm request failed, status=%d %s: %s", e.StatusCode, e.Status, e.Message)
}

func parseAPIError(statusCode int, header http.Header, body []byte) error {
	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	message := strings.TrimSpace(payload.Error.Message)
	if message == "" {
		message = truncateText(string(body), 300)
	}

	if statusCode == http.StatusTooManyRequests || payload.Error.Status == "RESOURCE_EXHAUSTED" {
		rl := &RateLimitError{Message: message, RetryAfter: parseRetryAfterHeader(header.Get("Retry-After"))}
		for _, detail := range payload.Error.Details {
			if !strings.HasSuffix(detail.Type, "google.rpc.RetryInfo") {
				continue
			}
			if d, err := time.ParseDuration(strings.TrimSpace(detail.RetryDelay)); err == nil && d > 0 {
				rl.RetryAfter = d
			}
		}
		return rl
	}
	return &APIError{StatusCode: statusCode, Status: payload.Error.Status, Message: message}
}

func candidateText(resp generateResponse) (string, error) {
	parts := make([]string, 0, 1)
	for _, p := range resp.Candidates[0].Content.Parts {
		if text := strings.TrimSpace(p.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", errors.Wrap(ErrInvalidResponse, "candidate has no text")
	}
	return strings.Join(parts, "\n"), nil
}

func candidateInlineData(resp generateResponse) (inlineData, error) {
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return *p.InlineData, nil
		}
	}
	return inlineData{}, errors.Wrap(ErrInvalidResponse, "candidate has no inline data")
}

func extractJSONPayload(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "{}"
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return trimmed[start : end+1]
	}
	return trimmed
}

func truncateText(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
