package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestRankScoreThenAccuracy(t *testing.T) {
	participants := []domain.Participant{
		{ID: 1, Name: "a", Score: 50, Accuracy: 90},
		{ID: 2, Name: "b", Score: 80, Accuracy: 70},
		{ID: 3, Name: "c", Score: 80, Accuracy: 95},
	}

	board := Rank(participants)
	require.Len(t, board, 3)
	assert.Equal(t, []int64{3, 2, 1}, ids(board))
	assert.Equal(t, []int{1, 2, 3}, ranks(board))
}

func TestRankFasterWinsThenRegistrationOrder(t *testing.T) {
	participants := []domain.Participant{
		{ID: 4, Score: 10, Accuracy: 50, AverageResponseTime: 9},
		{ID: 2, Score: 10, Accuracy: 50, AverageResponseTime: 5},
		{ID: 3, Score: 10, Accuracy: 50, AverageResponseTime: 9},
	}

	board := Rank(participants)
	assert.Equal(t, []int64{2, 3, 4}, ids(board))
	assert.Equal(t, []int{1, 2, 3}, ranks(board))
	assert.Equal(t, 2, rankOf(board, 3))
	assert.Zero(t, rankOf(board, 99))
}

func TestRankDoesNotReorderInput(t *testing.T) {
	participants := []domain.Participant{{ID: 1, Score: 1}, {ID: 2, Score: 2}}
	_ = Rank(participants)
	assert.Equal(t, int64(1), participants[0].ID)
}

func ids(board []domain.LeaderboardEntry) []int64 {
	out := make([]int64, len(board))
	for i, e := range board {
		out[i] = e.ID
	}
	return out
}

func ranks(board []domain.LeaderboardEntry) []int {
	out := make([]int, len(board))
	for i, e := range board {
		out[i] = e.Rank
	}
	return out
}
