package http

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Handler serves the REST API on top of the quiz use cases.
type Handler struct {
	service *app.QuizService
	log     logrus.FieldLogger
}

func NewHandler(service *app.QuizService, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, log: log}
}

type messageBody struct {
	Message string `json:"message"`
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var in domain.NewQuiz
	body, err := decode(r, &in)
	if err == nil {
		var quiz domain.Quiz
		quiz, err = h.service.CreateQuiz(r.Context(), in)
		if err == nil {
			writeJSON(w, http.StatusOK, quiz)
			return
		}
	}
	writeError(w, h.log, err, "Invalid quiz data", body)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch quizzes", nil)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	detail, err := h.service.GetQuizDetail(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch quiz", nil)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	var patch domain.QuizPatch
	body, err := decode(r, &patch)
	if err == nil {
		var quiz domain.Quiz
		quiz, err = h.service.UpdateQuiz(r.Context(), id, patch)
		if err == nil {
			writeJSON(w, http.StatusOK, quiz)
			return
		}
	}
	writeError(w, h.log, err, "Failed to update quiz", body)
}

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.service.StartQuiz, "Failed to start quiz")
}

func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.service.NextQuestion, "Failed to advance quiz")
}

func (h *Handler) EndQuiz(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.service.EndQuiz, "Failed to end quiz")
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, action func(context.Context, int64) (domain.Quiz, error), message string) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	quiz, err := action(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, message, nil)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) JoinInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	info, err := h.service.JoinInfo(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to generate QR code", nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var in domain.NewQuestion
	body, err := decode(r, &in)
	if err == nil {
		var question domain.Question
		question, err = h.service.CreateQuestion(r.Context(), in)
		if err == nil {
			writeJSON(w, http.StatusOK, question)
			return
		}
	}
	writeError(w, h.log, err, "Invalid question data", body)
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	questions, err := h.service.ListQuestions(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch questions", nil)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid question id", nil)
		return
	}
	question, err := h.service.GetQuestion(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch question", nil)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *Handler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid question id", nil)
		return
	}
	var patch domain.QuestionPatch
	body, err := decode(r, &patch)
	if err == nil {
		var question domain.Question
		question, err = h.service.UpdateQuestion(r.Context(), id, patch)
		if err == nil {
			writeJSON(w, http.StatusOK, question)
			return
		}
	}
	writeError(w, h.log, err, "Failed to update question", body)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid question id", nil)
		return
	}
	deleted, err := h.service.DeleteQuestion(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to delete question", nil)
		return
	}
	if !deleted {
		writeError(w, h.log, domain.ErrQuestionNotFound, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Question deleted successfully"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in domain.NewParticipant
	body, err := decode(r, &in)
	if err == nil {
		var participant domain.Participant
		participant, err = h.service.Register(r.Context(), in)
		if err == nil {
			writeJSON(w, http.StatusOK, participant)
			return
		}
	}
	writeError(w, h.log, err, "Invalid participant data", body)
}

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	participants, err := h.service.ListParticipants(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch participants", nil)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid participant id", nil)
		return
	}
	detail, err := h.service.GetParticipantDetail(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch participant", nil)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid participant id", nil)
		return
	}
	var patch domain.ParticipantPatch
	body, err := decode(r, &patch)
	if err == nil {
		var participant domain.Participant
		participant, err = h.service.UpdateParticipant(r.Context(), id, patch)
		if err == nil {
			writeJSON(w, http.StatusOK, participant)
			return
		}
	}
	writeError(w, h.log, err, "Failed to update participant", body)
}

func (h *Handler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid participant id", nil)
		return
	}
	answers, err := h.service.ListAnswers(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch answers", nil)
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var in domain.NewAnswer
	body, err := decode(r, &in)
	if err == nil {
		var answer domain.Answer
		answer, err = h.service.SubmitAnswer(r.Context(), in)
		if err == nil {
			writeJSON(w, http.StatusOK, answer)
			return
		}
	}
	writeError(w, h.log, err, "Invalid answer data", body)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err, "Invalid quiz id", nil)
		return
	}
	board, err := h.service.Leaderboard(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err, "Failed to fetch leaderboard", nil)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}
