package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Rank orders participants by score desc, accuracy desc, average response time asc,
// then registration order (id asc). Ranks are 1-based positions; exact ties still get
// distinct consecutive ranks.
func Rank(participants []domain.Participant) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.LeaderboardEntry{
			ID:                  p.ID,
			Name:                p.Name,
			Email:               p.Email,
			Score:               p.Score,
			Accuracy:            p.Accuracy,
			AverageResponseTime: p.AverageResponseTime,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		if a.AverageResponseTime != b.AverageResponseTime {
			return a.AverageResponseTime < b.AverageResponseTime
		}
		return a.ID < b.ID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// rankOf returns the participant's rank, or 0 when absent.
func rankOf(entries []domain.LeaderboardEntry, participantID int64) int {
	for _, e := range entries {
		if e.ID == participantID {
			return e.Rank
		}
	}
	return 0
}
