package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"live-quiz-service/internal/domain"
)

func TestScoreTimeDecay(t *testing.T) {
	limit := 30
	quiz := domain.Quiz{DefaultTimePerQuestion: 60}
	question := domain.Question{Type: domain.QuestionMCQ, CorrectAnswer: "4", Marks: 10, TimeLimit: &limit}

	cases := []struct {
		name      string
		answer    string
		timeSpent int
		correct   bool
		points    int
	}{
		{"instant", "4", 0, true, 10},
		{"half time", "4", 15, true, 5},
		{"at limit", "4", 30, true, 0},
		{"past limit", "4", 45, true, 0},
		{"wrong instant", "5", 0, false, 0},
		{"auto submitted", "", 3, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			correct, points := Score(quiz, question, tc.answer, tc.timeSpent)
			assert.Equal(t, tc.correct, correct)
			assert.Equal(t, tc.points, points)
		})
	}
}

func TestScoreFallsBackToQuizDefault(t *testing.T) {
	quiz := domain.Quiz{DefaultTimePerQuestion: 20}
	question := domain.Question{Type: domain.QuestionTrueFalse, CorrectAnswer: "True", Marks: 10}

	_, points := Score(quiz, question, "True", 5)
	assert.Equal(t, 8, points) // round(10 * 0.75)
}

func TestIsCorrectByType(t *testing.T) {
	fill := domain.Question{Type: domain.QuestionFill, CorrectAnswer: "Paris"}
	assert.True(t, IsCorrect(fill, " paris "))
	assert.False(t, IsCorrect(fill, "London"))

	mcq := domain.Question{Type: domain.QuestionMCQ, CorrectAnswer: "Paris"}
	assert.False(t, IsCorrect(mcq, " paris "))
	assert.True(t, IsCorrect(mcq, "Paris"))

	tf := domain.Question{Type: domain.QuestionTrueFalse, CorrectAnswer: "True"}
	assert.False(t, IsCorrect(tf, "true"))
}

func TestAggregateRecomputesFromHistory(t *testing.T) {
	limit := 30
	quiz := domain.Quiz{DefaultTimePerQuestion: 30}
	questions := map[int64]domain.Question{
		1: {ID: 1, Type: domain.QuestionMCQ, CorrectAnswer: "a", Marks: 10, TimeLimit: &limit},
		2: {ID: 2, Type: domain.QuestionMCQ, CorrectAnswer: "b", Marks: 20, TimeLimit: &limit},
	}
	answers := []domain.Answer{
		{QuestionID: 1, IsCorrect: true, TimeSpent: 15},
		{QuestionID: 2, IsCorrect: false, TimeSpent: 4},
		{QuestionID: 3, IsCorrect: true, TimeSpent: 2}, // question since deleted
	}

	stats := Aggregate(quiz, questions, answers)
	assert.Equal(t, 5, stats.Score)
	assert.Equal(t, 67, stats.Accuracy)
	assert.Equal(t, 7, stats.AverageResponseTime)

	assert.Equal(t, ParticipantStats{}, Aggregate(quiz, questions, nil))
}
