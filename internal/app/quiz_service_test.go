package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestCreateQuizStartsAsDraft(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	quiz, err := service.CreateQuiz(ctx, domain.NewQuiz{Title: "Capitals", Duration: 5, StartDate: "2024-05-01", StartTime: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, quiz.Status)
	assert.Zero(t, quiz.CurrentQuestion)
	assert.Equal(t, 30, quiz.DefaultTimePerQuestion)

	_, err = service.CreateQuiz(ctx, domain.NewQuiz{Duration: 5})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRegisterMovesDraftToWaitingOnce(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 2)

	register(t, service, quiz.ID, "alice@example.com")
	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, got.Status)

	_, err = service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	register(t, service, quiz.ID, "bob@example.com")
	got, err = service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 1)

	register(t, service, quiz.ID, "alice@example.com")
	_, err := service.Register(ctx, domain.NewParticipant{QuizID: quiz.ID, Name: "Alice again", Email: "alice@example.com", Phone: "2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	participants, err := service.ListParticipants(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)

	other := seedQuiz(t, service, 1)
	register(t, service, other.ID, "alice@example.com")
}

func TestRegisterUnknownQuiz(t *testing.T) {
	service, _ := newTestService()
	_, err := service.Register(context.Background(), domain.NewParticipant{QuizID: 404, Name: "A", Email: "a@example.com", Phone: "1"})
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestSubmitAnswerRecomputesStats(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 2)
	alice := register(t, service, quiz.ID, "alice@example.com")
	register(t, service, quiz.ID, "bob@example.com")
	questions, err := service.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)

	answer, err := service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: alice.ID, QuestionID: questions[0].ID, Answer: " paris ", TimeSpent: 5})
	require.NoError(t, err)
	assert.True(t, answer.IsCorrect)

	_, err = service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: alice.ID, QuestionID: questions[1].ID, Answer: "", TimeSpent: 30})
	require.NoError(t, err)

	detail, err := service.GetParticipantDetail(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, detail.Score)
	assert.Equal(t, 50, detail.Accuracy)
	assert.Equal(t, 18, detail.AverageResponseTime)
	assert.Equal(t, 2, detail.CurrentQuestion)
	assert.Len(t, detail.Answers, 2)
	assert.Equal(t, 1, detail.Rank)
}

func TestSubmitAnswerRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 2)
	alice := register(t, service, quiz.ID, "alice@example.com")
	questions, err := service.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)

	submission := domain.NewAnswer{ParticipantID: alice.ID, QuestionID: questions[0].ID, Answer: "Paris", TimeSpent: 1}
	_, err = service.SubmitAnswer(ctx, submission)
	require.NoError(t, err)
	_, err = service.SubmitAnswer(ctx, submission)
	assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)

	answers, err := service.ListAnswers(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)
}

func TestSubmitAnswerValidatesReferences(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 1)
	other := seedQuiz(t, service, 1)
	alice := register(t, service, quiz.ID, "alice@example.com")
	foreign, err := service.ListQuestions(ctx, other.ID)
	require.NoError(t, err)

	_, err = service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: 999, QuestionID: foreign[0].ID})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

	_, err = service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: alice.ID, QuestionID: 999})
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	_, err = service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: alice.ID, QuestionID: foreign[0].ID})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestQuizCompletesWhenEveryoneFinished(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 2)
	alice := register(t, service, quiz.ID, "alice@example.com")
	bob := register(t, service, quiz.ID, "bob@example.com")
	_, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	questions, err := service.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)

	for _, q := range questions {
		_, err := service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: alice.ID, QuestionID: q.ID, Answer: "Paris", TimeSpent: 2})
		require.NoError(t, err)
	}
	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status, "bob has not finished yet")

	for _, q := range questions {
		_, err := service.SubmitAnswer(ctx, domain.NewAnswer{ParticipantID: bob.ID, QuestionID: q.ID, Answer: "nope", TimeSpent: 2})
		require.NoError(t, err)
	}
	got, err = service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	board, err := service.Leaderboard(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, alice.ID, board[0].ID)
	assert.Equal(t, 100, board[0].Accuracy)
	assert.Equal(t, 0, board[1].Accuracy)
}

func TestGetQuizDetailIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 3)
	register(t, service, quiz.ID, "alice@example.com")

	first, err := service.GetQuizDetail(ctx, quiz.ID)
	require.NoError(t, err)
	second, err := service.GetQuizDetail(ctx, quiz.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Questions, 3)
	assert.Equal(t, 1, first.ParticipantCount)

	_, err = service.GetQuizDetail(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestDeleteQuestionTwiceReportsMissing(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 1)
	questions, err := service.ListQuestions(ctx, quiz.ID)
	require.NoError(t, err)

	deleted, err := service.DeleteQuestion(ctx, questions[0].ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = service.DeleteQuestion(ctx, questions[0].ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestJoinInfoEncodesJoinURL(t *testing.T) {
	ctx := context.Background()
	qr := &fakeQR{}
	service := app.NewQuizService(memory.NewStore(), app.Options{
		PublicHost: "quiz.example.com",
		Scheduler:  &manualScheduler{},
		QR:         qr,
		Logger:     quietLogger(),
	})
	quiz := seedQuiz(t, service, 1)

	info, err := service.JoinInfo(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://quiz.example.com/participant/1", info.URL)
	assert.Equal(t, info.URL, info.QRData)
	assert.Equal(t, info.URL, qr.content)
	assert.Equal(t, "data:image/png;base64,cG5n", info.Image)

	_, err = service.JoinInfo(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	quiz := seedQuiz(t, service, 1)

	ch, cancel, err := service.Subscribe(ctx, quiz.ID)
	require.NoError(t, err)
	defer cancel()

	initial := <-ch
	assert.Equal(t, domain.StatusDraft, initial.Status)
	assert.Empty(t, initial.Entries)

	register(t, service, quiz.ID, "alice@example.com")
	update := <-ch
	assert.Equal(t, domain.StatusWaiting, update.Status)
	require.Len(t, update.Entries, 1)
	assert.Equal(t, 1, update.Entries[0].Rank)

	_, _, err = service.Subscribe(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

// manualScheduler queues timers so tests decide when they fire.
type manualScheduler struct {
	mu      sync.Mutex
	pending []pendingTimer
}

type pendingTimer struct {
	after time.Duration
	fire  func()
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, pendingTimer{after: d, fire: f})
}

// fireNext runs the oldest pending timer outside the lock.
func (m *manualScheduler) fireNext() (time.Duration, bool) {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return 0, false
	}
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()

	next.fire()
	return next.after, true
}

func (m *manualScheduler) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type fakeQR struct {
	content string
}

func (f *fakeQR) PNG(content string) ([]byte, error) {
	f.content = content
	return []byte("png"), nil
}

func newTestService() (*app.QuizService, *manualScheduler) {
	scheduler := &manualScheduler{}
	service := app.NewQuizService(memory.NewStore(), app.Options{
		Scheduler: scheduler,
		QR:        &fakeQR{},
		Logger:    quietLogger(),
	})
	return service, scheduler
}

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

// seedQuiz creates a quiz with n Fill questions whose answer is "Paris" and whose
// time limits are 10, 20, 30... seconds.
func seedQuiz(t *testing.T, service *app.QuizService, n int) domain.Quiz {
	t.Helper()
	ctx := context.Background()
	quiz, err := service.CreateQuiz(ctx, domain.NewQuiz{
		Title:                  "Capitals",
		Duration:               10,
		StartDate:              "2024-05-01",
		StartTime:              "10:00",
		DefaultTimePerQuestion: 30,
		TimerType:              domain.TimerDifferent,
	})
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		limit := 10 * i
		_, err := service.CreateQuestion(ctx, domain.NewQuestion{
			QuizID:         quiz.ID,
			QuestionNumber: i,
			Type:           domain.QuestionFill,
			Question:       "Capital of France?",
			CorrectAnswer:  "Paris",
			Marks:          10,
			TimeLimit:      &limit,
		})
		require.NoError(t, err)
	}
	return quiz
}

func register(t *testing.T, service *app.QuizService, quizID int64, email string) domain.Participant {
	t.Helper()
	participant, err := service.Register(context.Background(), domain.NewParticipant{
		QuizID: quizID,
		Name:   email,
		Email:  email,
		Phone:  "555-0100",
	})
	require.NoError(t, err)
	return participant
}
