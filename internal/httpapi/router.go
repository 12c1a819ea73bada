package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hit/internal/auth"
)

func NewRouter(handler *Handler) http.Handler {
	mx := chi.NewRouter()
	mx.Use(withRequestLogging, withCORS, withJSONContentType)

	mx.Get("/healthz", handler.healthz)
	mx.Get("/docs", handler.swaggerUI)
	mx.Get("/docs/openapi.json", handler.swaggerSpec)

	mx.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", handler.signUp)
		r.Post("/auth/signin", handler.signIn)
		r.Post("/auth/guest", handler.guest)
		r.Get("/templates", handler.templates)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(handler.tokens, writeError))
			r.Get("/auth/me", handler.me)
			r.Get("/prompt", handler.prompt)
			r.Post("/practice", handler.practice)
			r.Post("/dictation", handler.dictation)
			r.Get("/stats", handler.stats)
			r.Get("/history", handler.history)
			r.Delete("/history", handler.resetHistory)
			r.Get("/dashboard", handler.dashboard)
			r.Get("/achievements", handler.achievements)
		})
	})

	return mx
}

func withJSONContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Header.Get("Content-Type") == "" {
			r.Header.Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s -> %d (%s) from %s", r.Method, r.URL.RequestURI(), rec.status, time.Since(start).Truncate(time.Millisecond), r.RemoteAddr)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Time-Zone")
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
