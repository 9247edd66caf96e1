package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Ids are per-kind counters
// starting at 1.
type Store struct {
	now func() time.Time

	mu           sync.RWMutex
	quizzes      map[int64]domain.Quiz
	questions    map[int64]domain.Question
	participants map[int64]domain.Participant
	answers      map[int64]domain.Answer

	nextQuizID        int64
	nextQuestionID    int64
	nextParticipantID int64
	nextAnswerID      int64
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		now:          now,
		quizzes:      make(map[int64]domain.Quiz),
		questions:    make(map[int64]domain.Question),
		participants: make(map[int64]domain.Participant),
		answers:      make(map[int64]domain.Answer),
	}
}

func (s *Store) CreateQuiz(_ context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuizID++
	quiz := domain.Quiz{
		ID:                     s.nextQuizID,
		Title:                  in.Title,
		Duration:               in.Duration,
		StartDate:              in.StartDate,
		StartTime:              in.StartTime,
		Status:                 domain.StatusDraft,
		DefaultTimePerQuestion: in.DefaultTimePerQuestion,
		TimerType:              in.TimerType,
		CreatedAt:              s.now(),
	}
	s.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (s *Store) GetQuiz(_ context.Context, id int64) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) UpdateQuiz(_ context.Context, id int64, patch domain.QuizPatch) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	patch.Apply(&quiz)
	s.quizzes[id] = quiz
	return quiz, nil
}

func (s *Store) DeleteQuiz(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return false, nil
	}
	delete(s.quizzes, id)
	return true, nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateQuestion(_ context.Context, in domain.NewQuestion) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextQuestionID++
	question := domain.Question{
		ID:             s.nextQuestionID,
		QuizID:         in.QuizID,
		QuestionNumber: in.QuestionNumber,
		Type:           in.Type,
		Question:       in.Question,
		Options:        append([]string(nil), in.Options...),
		CorrectAnswer:  in.CorrectAnswer,
		Marks:          in.Marks,
		TimeLimit:      copyInt(in.TimeLimit),
	}
	s.questions[question.ID] = question
	return cloneQuestion(question), nil
}

func (s *Store) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return cloneQuestion(question), nil
}

func (s *Store) UpdateQuestion(_ context.Context, id int64, patch domain.QuestionPatch) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	question = cloneQuestion(question)
	patch.Apply(&question)
	s.questions[id] = question
	return cloneQuestion(question), nil
}

func (s *Store) DeleteQuestion(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	return true, nil
}

func (s *Store) ListQuestions(_ context.Context, quizID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0)
	for _, question := range s.questions {
		if question.QuizID == quizID {
			out = append(out, cloneQuestion(question))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionNumber != out[j].QuestionNumber {
			return out[i].QuestionNumber < out[j].QuestionNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateParticipant(_ context.Context, in domain.NewParticipant) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextParticipantID++
	participant := domain.Participant{
		ID:           s.nextParticipantID,
		QuizID:       in.QuizID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		RegisteredAt: s.now(),
	}
	s.participants[participant.ID] = participant
	return participant, nil
}

func (s *Store) GetParticipant(_ context.Context, id int64) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participant, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return participant, nil
}

func (s *Store) UpdateParticipant(_ context.Context, id int64, patch domain.ParticipantPatch) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participant, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	patch.Apply(&participant)
	s.participants[id] = participant
	return participant, nil
}

func (s *Store) DeleteParticipant(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[id]; !ok {
		return false, nil
	}
	delete(s.participants, id)
	return true, nil
}

func (s *Store) ListParticipants(_ context.Context, quizID int64) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, 0)
	for _, participant := range s.participants {
		if participant.QuizID == quizID {
			out = append(out, participant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindParticipantByEmail(_ context.Context, quizID int64, email string) (domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, participant := range s.participants {
		if participant.QuizID == quizID && participant.Email == email {
			return participant, nil
		}
	}
	return domain.Participant{}, domain.ErrParticipantNotFound
}

func (s *Store) CreateAnswer(_ context.Context, in domain.NewAnswer, isCorrect bool) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAnswerID++
	answer := domain.Answer{
		ID:            s.nextAnswerID,
		ParticipantID: in.ParticipantID,
		QuestionID:    in.QuestionID,
		Answer:        in.Answer,
		IsCorrect:     isCorrect,
		TimeSpent:     in.TimeSpent,
		SubmittedAt:   s.now(),
	}
	s.answers[answer.ID] = answer
	return answer, nil
}

func (s *Store) GetAnswer(_ context.Context, id int64) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[id]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	return answer, nil
}

func (s *Store) DeleteAnswer(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[id]; !ok {
		return false, nil
	}
	delete(s.answers, id)
	return true, nil
}

func (s *Store) ListAnswersByParticipant(_ context.Context, participantID int64) ([]domain.Answer, error) {
	return s.filterAnswers(func(a domain.Answer) bool { return a.ParticipantID == participantID }), nil
}

func (s *Store) ListAnswersByQuestion(_ context.Context, questionID int64) ([]domain.Answer, error) {
	return s.filterAnswers(func(a domain.Answer) bool { return a.QuestionID == questionID }), nil
}

func (s *Store) filterAnswers(keep func(domain.Answer) bool) []domain.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Answer, 0)
	for _, answer := range s.answers {
		if keep(answer) {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	q.TimeLimit = copyInt(q.TimeLimit)
	return q
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
