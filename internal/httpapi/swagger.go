package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

func (h *Handler) swaggerUI(w http.ResponseWriter, _ *http.Request) {
	const page = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Handwriting Improvement Tracker API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({ url: '/docs/openapi.json', dom_id: '#swagger-ui' });
  </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (h *Handler) swaggerSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openAPISpec(requestBaseURL(r)))
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	host := strings.TrimSpace(r.Host)
	if host == "" {
		host = "localhost:8080"
	}
	return scheme + "://" + host
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

func operation(id, summary string, body map[string]any, ok map[string]any, errs ...string) map[string]any {
	responses := map[string]any{}
	if ok != nil {
		responses["200"] = map[string]any{"description": "OK", "content": jsonContent(ok)}
	}
	for _, code := range errs {
		status, _ := strconv.Atoi(code)
		responses[code] = map[string]any{"description": http.StatusText(status), "content": jsonContent(ref("Error"))}
	}
	op := map[string]any{
		"summary":     summary,
		"operationId": id,
		"responses":   responses,
	}
	if body != nil {
		op["requestBody"] = map[string]any{"required": true, "content": jsonContent(body)}
	}
	return op
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

var (
	str     = map[string]any{"type": "string"}
	num     = map[string]any{"type": "number"}
	integer = map[string]any{"type": "integer"}
	boolean = map[string]any{"type": "boolean"}
	ts      = map[string]any{"type": "string", "format": "date-time"}
)

func openAPISpec(serverURL string) map[string]any {
	bearer := []map[string][]string{{"bearer": {}}}
	withAuth := func(op map[string]any) map[string]any {
		op["security"] = bearer
		return op
	}

	dictation := withAuth(operation("dictation", "Dictation audio for a practice text", ref("DictationRequest"), nil, "400", "503"))
	dictation["responses"].(map[string]any)["200"] = map[string]any{
		"description": "WAV audio",
		"content":     map[string]any{"audio/wav": map[string]any{"schema": map[string]any{"type": "string", "format": "binary"}}},
	}
	practice := withAuth(operation("practice", "Analyse a practice photo and record the session", ref("PracticeRequest"), ref("PracticeResponse"), "400", "401"))
	practiceResponses := practice["responses"].(map[string]any)
	practiceResponses["502"] = map[string]any{
		"description": "Analysis failed; resubmit with photoRef",
		"content":     jsonContent(object(map[string]any{"error": str, "photoRef": str})),
	}
	practiceResponses["503"] = map[string]any{
		"description": "Analysis not configured or busy; resubmit with photoRef when present",
		"content":     jsonContent(object(map[string]any{"error": str, "photoRef": str})),
	}
	achievements := withAuth(operation("achievements", "Achievement progress", nil,
		object(map[string]any{"achievements": arrayOf(ref("Achievement"))}), "401", "500"))
	reset := withAuth(operation("resetHistory", "Delete every recorded session", nil, nil, "401", "500"))
	reset["responses"].(map[string]any)["204"] = map[string]any{"description": "History cleared"}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Handwriting Improvement Tracker API",
			"description": "Practice prompts, handwriting analysis and progress tracking",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{{"url": serverURL}},
		"paths": map[string]any{
			"/healthz":             map[string]any{"get": operation("healthz", "Liveness", nil, object(map[string]any{"status": str}))},
			"/api/v1/auth/signup":  map[string]any{"post": operation("signUp", "Create an account", ref("Credentials"), ref("Session"), "400")},
			"/api/v1/auth/signin":  map[string]any{"post": operation("signIn", "Sign in with email and password", ref("Credentials"), ref("Session"), "400", "401")},
			"/api/v1/auth/guest":   map[string]any{"post": operation("guest", "Issue a guest token", nil, ref("Session"))},
			"/api/v1/prompt":       map[string]any{"get": withAuth(operation("prompt", "Next practice text; mode=sentence|paragraph, focus=a,o", nil, ref("Prompt"), "400"))},
			"/api/v1/practice":     map[string]any{"post": practice},
			"/api/v1/dictation":    map[string]any{"post": dictation},
			"/api/v1/stats":        map[string]any{"get": withAuth(operation("stats", "Current statistics", nil, ref("UserStats"), "401", "500"))},
			"/api/v1/history":      map[string]any{"get": withAuth(operation("history", "Sessions, most recent first", nil, object(map[string]any{"history": arrayOf(ref("PracticeSession"))}), "400", "401", "500")), "delete": reset},
			"/api/v1/dashboard":    map[string]any{"get": withAuth(operation("dashboard", "Progress summary", nil, ref("Dashboard"), "401", "500"))},
			"/api/v1/templates":    map[string]any{"get": operation("templates", "Page formats and tips", nil, ref("Templates"))},
			"/api/v1/auth/me":      map[string]any{"get": withAuth(operation("me", "Current account", nil, ref("Identity"), "401", "404"))},
			"/api/v1/achievements": map[string]any{"get": achievements},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearer": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]any{
				"Error":       object(map[string]any{"error": str}, "error"),
				"Credentials": object(map[string]any{"email": str, "password": str, "displayName": str}, "email", "password"),
				"Session": object(map[string]any{
					"uid": str, "email": str, "displayName": str, "guest": boolean, "token": str, "expiresAt": ts,
				}),
				"Prompt": object(map[string]any{"text": str, "mode": str, "wordCount": integer, "fallback": boolean}),
				"PracticeRequest": object(map[string]any{
					"imageBase64":    str,
					"mimeType":       str,
					"photoRef":       str,
					"elapsedSeconds": num,
					"wordCount":      integer,
					"promptText":     str,
					"mode":           str,
					"speedMode":      boolean,
					"timeZone":       str,
				}),
				"DictationRequest": object(map[string]any{"text": str, "speed": map[string]any{"type": "string", "enum": []string{"normal", "fast"}}}, "text"),
				"FeedbackMetric":   object(map[string]any{"label": str, "score": num, "feedback": str}),
				"AnalysisResult": object(map[string]any{
					"overallScore":       num,
					"styleDetected":      map[string]any{"type": "string", "enum": []string{"cursive", "block", "calligraphy"}},
					"metrics":            arrayOf(ref("FeedbackMetric")),
					"suggestedExercises": arrayOf(str),
					"transcription":      str,
					"wpm":                num,
					"timeTakenSeconds":   num,
				}),
				"PracticeSession": object(map[string]any{
					"id": str, "date": ts, "photoUrl": str, "analysis": ref("AnalysisResult"),
					"isSpeedMode": boolean, "mode": str, "promptText": str, "accuracy": num,
				}),
				"UserStats": object(map[string]any{
					"streak": integer, "totalSessions": integer, "averageScore": num, "history": arrayOf(ref("PracticeSession")),
				}),
				"PracticeResponse": object(map[string]any{
					"analysis": ref("AnalysisResult"), "session": ref("PracticeSession"), "stats": ref("UserStats"),
					"isBetter": boolean, "persisted": boolean,
				}),
				"Dashboard": object(map[string]any{
					"streak":        integer,
					"totalSessions": integer,
					"averageScore":  num,
					"masteryLevel":  str,
					"level":         integer,
					"topWpm":        num,
					"skills":        arrayOf(object(map[string]any{"label": str, "score": num})),
					"progress":      arrayOf(object(map[string]any{"date": ts, "score": num, "wpm": num})),
					"tips":          arrayOf(ref("Tip")),
					"achievements":  arrayOf(ref("Achievement")),
				}),
				"Achievement": object(map[string]any{
					"id": str, "name": str, "description": str, "unlocked": boolean, "progress": integer, "target": integer,
				}),
				"Identity": object(map[string]any{"uid": str, "email": str, "displayName": str, "guest": boolean}),
				"Tip": object(map[string]any{"title": str, "desc": str, "icon": str}),
				"Templates": object(map[string]any{
					"formats": arrayOf(object(map[string]any{
						"format": str, "name": str, "description": str, "rows": integer, "guidesPerRow": integer,
					})),
					"tips":     arrayOf(ref("Tip")),
					"usageTip": str,
				}),
			},
		},
	}
}
