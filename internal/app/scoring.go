package app

import (
	"math"
	"strings"

	"live-quiz-service/internal/domain"
)

// IsCorrect applies the per-type correctness rule. Fill answers ignore case and
// surrounding whitespace; MCQ and TrueFalse must match exactly.
func IsCorrect(question domain.Question, answer string) bool {
	if question.Type == domain.QuestionFill {
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(question.CorrectAnswer))
	}
	return answer == question.CorrectAnswer
}

// Points awards marks scaled by how much of the time limit was left. Only call it for
// correct answers.
func Points(quiz domain.Quiz, question domain.Question, timeSpent int) int {
	maxTime := domain.EffectiveTimeLimit(quiz, &question)
	bonus := 1 - float64(timeSpent)/float64(maxTime)
	if bonus < 0 {
		bonus = 0
	}
	return int(math.Round(float64(question.Marks) * bonus))
}

// Score returns correctness and points for a single submission.
func Score(quiz domain.Quiz, question domain.Question, answer string, timeSpent int) (bool, int) {
	if !IsCorrect(question, answer) {
		return false, 0
	}
	return true, Points(quiz, question, timeSpent)
}

// ParticipantStats are the aggregates stored on a participant.
type ParticipantStats struct {
	Score               int
	Accuracy            int
	AverageResponseTime int
}

// Aggregate recomputes a participant's stats from their full answer history. Answers to
// questions that no longer exist still count towards accuracy and timing but earn nothing.
func Aggregate(quiz domain.Quiz, questions map[int64]domain.Question, answers []domain.Answer) ParticipantStats {
	if len(answers) == 0 {
		return ParticipantStats{}
	}

	var stats ParticipantStats
	correct, totalTime := 0, 0
	for _, ans := range answers {
		totalTime += ans.TimeSpent
		if !ans.IsCorrect {
			continue
		}
		correct++
		if question, ok := questions[ans.QuestionID]; ok {
			stats.Score += Points(quiz, question, ans.TimeSpent)
		}
	}

	n := float64(len(answers))
	stats.Accuracy = int(math.Round(100 * float64(correct) / n))
	stats.AverageResponseTime = int(math.Round(float64(totalTime) / n))
	return stats
}
