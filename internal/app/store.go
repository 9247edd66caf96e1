package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// QuizRepository persists quizzes. Get and Update return domain.ErrQuizNotFound for unknown ids.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error)
	GetQuiz(ctx context.Context, id int64) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, id int64, patch domain.QuizPatch) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, id int64) (bool, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// QuestionRepository persists questions. ListQuestions orders by question number.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, in domain.NewQuestion) (domain.Question, error)
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	UpdateQuestion(ctx context.Context, id int64, patch domain.QuestionPatch) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id int64) (bool, error)
	ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// ParticipantRepository persists participants in registration (id) order.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, in domain.NewParticipant) (domain.Participant, error)
	GetParticipant(ctx context.Context, id int64) (domain.Participant, error)
	UpdateParticipant(ctx context.Context, id int64, patch domain.ParticipantPatch) (domain.Participant, error)
	DeleteParticipant(ctx context.Context, id int64) (bool, error)
	ListParticipants(ctx context.Context, quizID int64) ([]domain.Participant, error)
	// FindParticipantByEmail returns domain.ErrParticipantNotFound when nobody registered the email.
	FindParticipantByEmail(ctx context.Context, quizID int64, email string) (domain.Participant, error)
}

// AnswerRepository persists immutable answers in submission (id) order.
type AnswerRepository interface {
	CreateAnswer(ctx context.Context, in domain.NewAnswer, isCorrect bool) (domain.Answer, error)
	GetAnswer(ctx context.Context, id int64) (domain.Answer, error)
	DeleteAnswer(ctx context.Context, id int64) (bool, error)
	ListAnswersByParticipant(ctx context.Context, participantID int64) ([]domain.Answer, error)
	ListAnswersByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error)
}

// Store abstracts where entities live (in-memory, Redis, Postgres).
type Store interface {
	QuizRepository
	QuestionRepository
	ParticipantRepository
	AnswerRepository
}
