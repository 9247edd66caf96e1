package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestFeedDropsStaleSnapshotsForSlowReaders(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe(domain.Leaderboard{QuizID: 1})
	defer cancel()

	for i := 1; i <= 20; i++ {
		feed.Publish(domain.Leaderboard{QuizID: 1, CurrentQuestion: i})
	}
	feed.Publish(domain.Leaderboard{QuizID: 2, CurrentQuestion: 99})

	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, 20, last.CurrentQuestion)
}

func TestFeedCancelClosesChannel(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe(domain.Leaderboard{QuizID: 3})
	require.Equal(t, 1, feed.Subscribers(3))

	<-ch
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, feed.Subscribers(3))
}

func TestFeedPrimedSnapshotArrivesBeforeNewerOnes(t *testing.T) {
	for i := 0; i < 200; i++ {
		feed := NewFeed()
		done := make(chan struct{})
		go func() {
			defer close(done)
			feed.Publish(domain.Leaderboard{QuizID: 4, CurrentQuestion: 2})
		}()
		ch, cancel := feed.Subscribe(domain.Leaderboard{QuizID: 4, CurrentQuestion: 1})
		<-done

		first := <-ch
		require.Equal(t, 1, first.CurrentQuestion, "primed snapshot must be delivered first")
		for len(ch) > 0 {
			assert.Equal(t, 2, (<-ch).CurrentQuestion)
		}
		cancel()
	}
}
