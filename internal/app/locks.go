package app

import "sync"

// quizLocks hands out one mutex per quiz. Every read-check-write on a quiz's status,
// cursor, questions, or participant set runs under it. Entries are refcounted and
// dropped once nobody holds or waits on them.
type quizLocks struct {
	mu    sync.Mutex
	locks map[int64]*quizLock
}

type quizLock struct {
	sync.Mutex
	refs int
}

func newQuizLocks() *quizLocks {
	return &quizLocks{locks: make(map[int64]*quizLock)}
}

func (l *quizLocks) lock(quizID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[quizID]
	if !ok {
		m = &quizLock{}
		l.locks[quizID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, quizID)
		}
		l.mu.Unlock()
	}
}

