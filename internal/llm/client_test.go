package llm

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hit/internal/model"
)

const analysisJSON = `{
	"overallScore": 82,
	"styleDetected": "Cursive",
	"transcription": "The quick brown fox",
	"metrics": [
		{"label": "Clarity", "score": 85, "feedback": "Close the tops of your a's."},
		{"label": "Slant", "score": 120, "feedback": "Slant drifts right."}
	],
	"suggestedExercises": ["Loops drill", "Loops drill", " "]
}`

type capturedRequest struct {
	Path   string
	APIKey string
	Body   generateRequest
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, req capturedRequest)) (*Client, *[]capturedRequest, *[]time.Duration) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		req := capturedRequest{Path: r.URL.Path, APIKey: r.Header.Get("x-goog-api-key"), Body: body}
		captured = append(captured, req)
		handler(w, r, req)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	client.httpClient = server.Client()

	var slept []time.Duration
	client.retry.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return client, &captured, &slept
}

func textResponse(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(payload)
}

func TestAnalyzeSendsImageAndComputesSpeed(t *testing.T) {
	client, captured, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(textResponse(analysisJSON)))
	})

	result, err := client.Analyze(context.Background(), AnalyzeRequest{
		Image:          []byte{0xff, 0xd8, 0xff},
		ElapsedSeconds: 90,
		WordCount:      25,
		SpeedMode:      true,
	})
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, "/v1beta/models/gemini-3-flash-preview:generateContent", req.Path)
	assert.Equal(t, "test-key", req.APIKey)
	parts := req.Body.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}), parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "(Speed Writing Mode)")
	assert.Contains(t, parts[1].Text, "Total Time 90s, Speed: 17 WPM")
	assert.Equal(t, "application/json", req.Body.GenerationConfig["responseMimeType"])

	assert.Equal(t, float64(82), result.OverallScore)
	assert.Equal(t, model.StyleCursive, result.StyleDetected)
	assert.Equal(t, "The quick brown fox", result.Transcription)
	require.Len(t, result.Metrics, 2)
	assert.Equal(t, float64(100), result.Metrics[1].Score)
	assert.Equal(t, []string{"Loops drill"}, result.SuggestedExercises)
	require.NotNil(t, result.WPM)
	assert.Equal(t, float64(17), *result.WPM)
	require.NotNil(t, result.TimeTakenSeconds)
	assert.Equal(t, float64(90), *result.TimeTakenSeconds)
}

func TestAnalyzeZeroElapsedGivesZeroSpeed(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(textResponse(analysisJSON)))
	})
	result, err := client.Analyze(context.Background(), AnalyzeRequest{Image: []byte{1}, WordCount: 10})
	require.NoError(t, err)
	require.NotNil(t, result.WPM)
	assert.Zero(t, *result.WPM)
}

func TestAnalyzeRejectsEmptyImage(t *testing.T) {
	client, captured, _ := newTestClient(t, func(http.ResponseWriter, *http.Request, capturedRequest) {})
	_, err := client.Analyze(context.Background(), AnalyzeRequest{})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, *captured)
}

func TestParseAnalysisFromMarkdownFence(t *testing.T) {
	got, err := parseAnalysis("```json\n" + analysisJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, float64(82), got.OverallScore)
}

func TestParseAnalysisIsAllOrNothing(t *testing.T) {
	cases := map[string]string{
		"missing transcription": `{"overallScore":80,"styleDetected":"block","metrics":[],"suggestedExercises":[]}`,
		"missing metrics":       `{"overallScore":80,"styleDetected":"block","transcription":"x","suggestedExercises":[]}`,
		"incomplete metric":     `{"overallScore":80,"styleDetected":"block","transcription":"x","metrics":[{"label":"Clarity","score":3}],"suggestedExercises":[]}`,
		"not json":              `the handwriting looks great`,
		"unknown style":         `{"overallScore":80,"styleDetected":"Gothic scrawl","transcription":"x","metrics":[],"suggestedExercises":[]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAnalysis(content)
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestParseAnalysisRoundsScores(t *testing.T) {
	got, err := parseAnalysis(`{"overallScore":72.6,"styleDetected":" Calligraphy ","transcription":"x",` +
		`"metrics":[{"label":"Clarity","score":81.4,"feedback":"ok"},{"label":"Slant","score":-3.2,"feedback":"ok"}],"suggestedExercises":[]}`)
	require.NoError(t, err)
	assert.Equal(t, float64(73), got.OverallScore)
	assert.Equal(t, model.StyleCalligraphy, got.StyleDetected)
	require.Len(t, got.Metrics, 2)
	assert.Equal(t, float64(81), got.Metrics[0].Score)
	assert.Equal(t, float64(0), got.Metrics[1].Score)
}

func TestParseAnalysisAcceptsEmptyCollections(t *testing.T) {
	got, err := parseAnalysis(`{"overallScore":0,"styleDetected":"block","transcription":"","metrics":[],"suggestedExercises":[]}`)
	require.NoError(t, err)
	assert.Zero(t, got.OverallScore)
	assert.Empty(t, got.Metrics)
}

func TestGeneratePromptIncludesFocusLetters(t *testing.T) {
	client, captured, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(textResponse(`  "Quiet zephyrs question quaint quills."  `)))
	})

	got, err := client.GeneratePrompt(context.Background(), model.ModeSentence, []string{"q", "z", "q", ""})
	require.NoError(t, err)
	assert.Equal(t, "Quiet zephyrs question quaint quills.", got)

	text := (*captured)[0].Body.Contents[0].Parts[0].Text
	assert.Contains(t, text, "single, elegant")
	assert.Contains(t, text, "Try to include words with these letters: q, z.")
}

func TestGeneratePromptParagraphWithoutFocus(t *testing.T) {
	client, captured, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(textResponse("A long paragraph.")))
	})

	_, err := client.GeneratePrompt(context.Background(), model.ModeParagraph, nil)
	require.NoError(t, err)

	text := (*captured)[0].Body.Contents[0].Parts[0].Text
	assert.Contains(t, text, "paragraph (approx 180-250 words)")
	assert.NotContains(t, text, "Try to include")
}

func TestGeneratePromptRejectsEmptyCandidate(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	_, err := client.GeneratePrompt(context.Background(), model.ModeSentence, nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRateLimitIsRetriedWithSuggestedDelay(t *testing.T) {
	var calls int32
	client, _, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota","details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"13s"}]}}`))
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`))
		default:
			_, _ = w.Write([]byte(textResponse("Practice makes permanent.")))
		}
	})

	got, err := client.GeneratePrompt(context.Background(), model.ModeSentence, nil)
	require.NoError(t, err)
	assert.Equal(t, "Practice makes permanent.", got)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{13 * time.Second, DefaultRetryDelay}, *slept)
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	var calls int32
	client, _, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GeneratePrompt(context.Background(), model.ModeSentence, nil)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&calls))
	assert.Len(t, *slept, DefaultMaxRetries)
	assert.Equal(t, 4*time.Second, (*slept)[0])
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	var calls int32
	client, _, slept := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"status":"INTERNAL","message":"boom"}}`))
	})

	_, err := client.GeneratePrompt(context.Background(), model.ModeSentence, nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *slept)
}

func TestRetryStopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := withRetry(ctx, RetryPolicy{MaxRetries: 5, DefaultDelay: time.Hour}, func(context.Context) (string, error) {
		calls++
		return "", &RateLimitError{}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryDisabled(t *testing.T) {
	calls := 0
	_, err := withRetry(context.Background(), RetryPolicy{MaxRetries: -1}, func(context.Context) (int, error) {
		calls++
		return 0, &RateLimitError{RetryAfter: time.Millisecond}
	})
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 1, calls)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 7*time.Second, parseRetryAfterHeader("7"))
	assert.Zero(t, parseRetryAfterHeader(""))
	assert.Zero(t, parseRetryAfterHeader("soon"))
	assert.Zero(t, parseRetryAfterHeader("-3"))
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfterHeader(future), 30*time.Second)
}

func TestSynthesizeSpeechReturnsPCM(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	client, captured, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		payload, _ := json.Marshal(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{
						"mimeType": "audio/L16;codec=pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					},
				}}},
			}},
		})
		_, _ = w.Write(payload)
	})

	got, err := client.SynthesizeSpeech(context.Background(), "Write slowly.", model.SpeedFast)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	req := (*captured)[0]
	assert.Equal(t, "/v1beta/models/gemini-2.5-flash-preview-tts:generateContent", req.Path)
	assert.Equal(t, "Speak clearly but quickly, like a fast dictation: Write slowly.", req.Body.Contents[0].Parts[0].Text)
	assert.Equal(t, []any{"AUDIO"}, req.Body.GenerationConfig["responseModalities"])
	assert.True(t, strings.Contains(mustJSON(t, req.Body.GenerationConfig), `"voiceName":"Kore"`))
}

func TestSynthesizeSpeechWithoutAudioFails(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request, _ capturedRequest) {
		_, _ = w.Write([]byte(textResponse("no audio here")))
	})
	_, err := client.SynthesizeSpeech(context.Background(), "Write slowly.", model.SpeedNormal)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = client.SynthesizeSpeech(context.Background(), "   ", model.SpeedNormal)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestPCMToWAVHeader(t *testing.T) {
	pcm := make([]byte, 480)
	wav := PCMToWAV(pcm)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
