package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"hit/internal/auth"
	"hit/internal/model"
	"hit/internal/service"
	"hit/internal/store"
)

const maxBodyBytes = 16 << 20

type Handler struct {
	svc    *service.Service
	tokens auth.TokenParser
}

// NewHandler serves svc. With a nil token parser every caller is the guest
// and bearer tokens are rejected.
func NewHandler(svc *service.Service, tokens auth.TokenParser) *Handler {
	if tokens == nil {
		tokens = guestOnly{}
	}
	return &Handler{svc: svc, tokens: tokens}
}

type guestOnly struct{}

func (guestOnly) ParseToken(string) (auth.Identity, error) {
	return auth.Identity{}, auth.ErrInvalidToken
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, "signUp", &req) {
		return
	}
	session, err := h.svc.SignUp(req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.writeAuthError(w, "signUp", req.Email, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, "signIn", &req) {
		return
	}
	session, err := h.svc.SignIn(req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, "signIn", req.Email, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) guest(w http.ResponseWriter, _ *http.Request) {
	session, err := h.svc.Guest()
	if err != nil {
		h.writeAuthError(w, "guest", "", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) writeAuthError(w http.ResponseWriter, op string, email string, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrInvalidEmail):
		log.Printf("%s bad request: email=%s err=%v", op, email, err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAccountNotFound), errors.Is(err, auth.ErrWrongPassword):
		log.Printf("%s rejected: email=%s err=%v", op, email, err)
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAuthUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("%s internal error: email=%s err=%v", op, email, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity := auth.FromContext(r.Context())
	profile, err := h.svc.Profile(identity)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, service.ErrAuthUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			log.Printf("me internal error: uid=%s err=%v", identity.UID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) prompt(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := service.PromptRequest{
		Mode:         model.PromptMode(query.Get("mode")),
		FocusLetters: splitList(query.Get("focus")),
	}
	resp, err := h.svc.NextPrompt(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("prompt internal error: mode=%s err=%v", req.Mode, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) practice(w http.ResponseWriter, r *http.Request) {
	var req service.PracticeRequest
	if !decodeBody(w, r, "practice", &req) {
		return
	}
	if strings.TrimSpace(req.TimeZone) == "" {
		req.TimeZone = r.Header.Get("X-Time-Zone")
	}
	userKey := auth.FromContext(r.Context()).UserKey()

	resp, err := h.svc.SubmitPractice(r.Context(), userKey, req)
	if err != nil {
		var analysisErr *service.AnalysisError
		switch {
		case errors.Is(err, service.ErrPhotoRequired),
			errors.Is(err, service.ErrPhotoUnreadable),
			errors.Is(err, service.ErrInvalidMode),
			errors.Is(err, service.ErrInvalidElapsedTime),
			errors.Is(err, service.ErrInvalidTimeZone):
			log.Printf("practice bad request: user=%s err=%v", userKey, err)
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrLLMUnavailable):
			log.Printf("practice unavailable: user=%s err=%v", userKey, err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrAnalysisBusy) && errors.As(err, &analysisErr):
			log.Printf("practice busy: user=%s photo_ref=%t err=%v", userKey, analysisErr.PhotoRef != "", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":    service.ErrAnalysisBusy.Error(),
				"photoRef": analysisErr.PhotoRef,
			})
		case errors.As(err, &analysisErr):
			log.Printf("practice analysis failed: user=%s photo_ref=%t err=%v", userKey, analysisErr.PhotoRef != "", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":    "handwriting analysis failed, please retry",
				"photoRef": analysisErr.PhotoRef,
			})
		default:
			log.Printf("practice internal error: user=%s err=%v", userKey, err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) dictation(w http.ResponseWriter, r *http.Request) {
	var req service.DictationRequest
	if !decodeBody(w, r, "dictation", &req) {
		return
	}
	audio, err := h.svc.Dictate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTextRequired), errors.Is(err, service.ErrInvalidSpeed):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSpeechUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			log.Printf("dictation internal error: err=%v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	userKey := auth.FromContext(r.Context()).UserKey()
	current, err := h.svc.Stats(userKey)
	if err != nil {
		log.Printf("stats internal error: user=%s err=%v", userKey, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userKey := auth.FromContext(r.Context()).UserKey()
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	history, err := h.svc.History(userKey, limit)
	if err != nil {
		log.Printf("history internal error: user=%s err=%v", userKey, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) resetHistory(w http.ResponseWriter, r *http.Request) {
	userKey := auth.FromContext(r.Context()).UserKey()
	if err := h.svc.ResetHistory(userKey); err != nil {
		log.Printf("reset internal error: user=%s err=%v", userKey, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	userKey := auth.FromContext(r.Context()).UserKey()
	dash, err := h.svc.Dashboard(userKey)
	if err != nil {
		log.Printf("dashboard internal error: user=%s err=%v", userKey, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (h *Handler) achievements(w http.ResponseWriter, r *http.Request) {
	userKey := auth.FromContext(r.Context()).UserKey()
	list, err := h.svc.Achievements(userKey)
	if err != nil {
		log.Printf("achievements internal error: user=%s err=%v", userKey, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": list})
}

func (h *Handler) templates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Templates())
}

func decodeBody(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("%s decode error: %v", op, err)
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return false
	}
	return true
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
