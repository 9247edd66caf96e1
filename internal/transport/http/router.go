package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// NewRouter wires every REST route, the websocket feed, and the shared middleware.
func NewRouter(service *app.QuizService, log logrus.FieldLogger) http.Handler {
	h := NewHandler(service, log)
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Get("/ws", ws.ServeWS)

	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", h.CreateQuiz)
		r.Get("/", h.ListQuizzes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetQuiz)
			r.Patch("/", h.UpdateQuiz)
			r.Post("/start", h.StartQuiz)
			r.Post("/next", h.NextQuestion)
			r.Post("/end", h.EndQuiz)
			r.Get("/qr", h.JoinInfo)
			r.Get("/questions", h.ListQuestions)
			r.Get("/participants", h.ListParticipants)
			r.Get("/leaderboard", h.Leaderboard)
		})
	})

	r.Route("/questions", func(r chi.Router) {
		r.Post("/", h.CreateQuestion)
		r.Get("/{id}", h.GetQuestion)
		r.Patch("/{id}", h.UpdateQuestion)
		r.Delete("/{id}", h.DeleteQuestion)
	})

	r.Route("/participants", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/{id}", h.GetParticipant)
		r.Patch("/{id}", h.UpdateParticipant)
		r.Get("/{id}/answers", h.ListAnswers)
	})

	r.Post("/answers", h.SubmitAnswer)
	return r
}

// WithAccessLog writes an Apache combined log line per request to out.
func WithAccessLog(out io.Writer, next http.Handler) http.Handler {
	return handlers.CombinedLoggingHandler(out, next)
}

// RequestID stamps a uuid on requests that arrive without one and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
