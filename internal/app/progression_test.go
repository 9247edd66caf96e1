package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestStartArmsTimerChainUntilCompleted(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 3)
	register(t, service, quiz.ID, "alice@example.com")

	started, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, started.Status)
	assert.Equal(t, 1, started.CurrentQuestion)

	var (
		total   time.Duration
		cursors []int
	)
	for {
		d, ok := scheduler.fireNext()
		if !ok {
			break
		}
		total += d
		got, err := service.GetQuiz(ctx, quiz.ID)
		require.NoError(t, err)
		cursors = append(cursors, got.CurrentQuestion)
	}

	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, []int{2, 3, 3}, cursors)
	assert.Equal(t, 60*time.Second, total)
}

func TestStartAgainIsNoop(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 2)

	_, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	again, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.CurrentQuestion)
	assert.Equal(t, 1, scheduler.len())
}

func TestStartRejectsEmptyAndCompletedQuizzes(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	empty := seedQuiz(t, service, 0)
	_, err := service.StartQuiz(ctx, empty.ID)
	assert.ErrorIs(t, err, domain.ErrNoQuestions)
	assert.True(t, domain.IsConflict(err))

	done := seedQuiz(t, service, 1)
	_, err = service.EndQuiz(ctx, done.ID)
	require.NoError(t, err)
	_, err = service.StartQuiz(ctx, done.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = service.StartQuiz(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestNextMakesPendingTimerStale(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 3)

	_, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	moved, err := service.NextQuestion(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.CurrentQuestion)
	require.Equal(t, 2, scheduler.len())

	// the timer armed for question 1 no longer applies
	_, ok := scheduler.fireNext()
	require.True(t, ok)
	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentQuestion)
	assert.Equal(t, 1, scheduler.len())

	// the fresh timer for question 2 advances
	d, ok := scheduler.fireNext()
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, d)
	got, err = service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentQuestion)
}

func TestNextIgnoresInactiveQuiz(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 2)

	got, err := service.NextQuestion(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Zero(t, got.CurrentQuestion)
	assert.Zero(t, scheduler.len())
}

func TestEndCompletesAndSilencesTimers(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 2)

	_, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	ended, err := service.EndQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, ended.Status)

	_, ok := scheduler.fireNext()
	require.True(t, ok)
	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.CurrentQuestion)
	assert.Zero(t, scheduler.len())
}

func TestQuestionGapUsesQuizDefault(t *testing.T) {
	ctx := context.Background()
	service, scheduler := newTestService()
	quiz := seedQuiz(t, service, 0)
	limit := 5
	for _, n := range []int{1, 3} {
		_, err := service.CreateQuestion(ctx, domain.NewQuestion{
			QuizID: quiz.ID, QuestionNumber: n, Type: domain.QuestionTrueFalse,
			Question: "Sky is blue?", CorrectAnswer: "True", TimeLimit: &limit,
		})
		require.NoError(t, err)
	}

	_, err := service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)

	d, _ := scheduler.fireNext()
	assert.Equal(t, 5*time.Second, d)
	d, _ = scheduler.fireNext()
	assert.Equal(t, 30*time.Second, d, "no question numbered 2")

	got, err := service.GetQuiz(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestWallClockAdvancesQuiz(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on real timers")
	}
	ctx := context.Background()
	service := app.NewQuizService(memory.NewStore(), app.Options{Logger: quietLogger()})
	quiz, err := service.CreateQuiz(ctx, domain.NewQuiz{Title: "Quick", Duration: 1, StartDate: "2024-05-01", StartTime: "10:00"})
	require.NoError(t, err)
	limit := 1
	_, err = service.CreateQuestion(ctx, domain.NewQuestion{
		QuizID: quiz.ID, QuestionNumber: 1, Type: domain.QuestionTrueFalse,
		Question: "Quick?", CorrectAnswer: "True", TimeLimit: &limit,
	})
	require.NoError(t, err)

	_, err = service.StartQuiz(ctx, quiz.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := service.GetQuiz(ctx, quiz.ID)
		return err == nil && got.Status == domain.StatusCompleted
	}, 5*time.Second, 50*time.Millisecond)
}
