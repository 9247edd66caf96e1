package app

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// Feed fans quiz snapshots out to live subscribers, keyed by quiz id.
type Feed struct {
	mu          sync.Mutex
	subscribers map[int64]map[chan domain.Leaderboard]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[int64]map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel primed with initial. The caller must invoke the
// returned cancel function to avoid leaks.
func (f *Feed) Subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	quizID := initial.QuizID

	f.mu.Lock()
	subs, ok := f.subscribers[quizID]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.subscribers[quizID] = subs
	}
	subs[ch] = struct{}{}
	// prime before any Publish can reach the channel
	ch <- initial
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[quizID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, quizID)
		}
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber of its quiz without blocking.
func (f *Feed) Publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[lb.QuizID] {
		select {
		case ch <- lb:
		default:
			// slow reader: drop its oldest snapshot so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribers returns the live subscriber count for a quiz.
func (f *Feed) Subscribers(quizID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[quizID])
}
