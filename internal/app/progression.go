package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/domain"
)

// Scheduler arms one-shot callbacks. Timers are never cancelled; a callback that
// finds the quiz has moved on does nothing.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, f func())

func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) { fn(d, f) }

// WallClock arms real timers.
var WallClock Scheduler = SchedulerFunc(func(d time.Duration, f func()) {
	time.AfterFunc(d, f)
})

// Progression drives a quiz through draft → waiting → active → completed and owns
// the timer chain that advances the question cursor.
type Progression struct {
	quizzes      QuizRepository
	questions    QuestionRepository
	participants ParticipantRepository
	scheduler    Scheduler
	locks        *quizLocks
	log          logrus.FieldLogger

	// onChange runs after every committed transition, outside the quiz lock.
	onChange func(quizID int64)
}

func newProgression(store Store, scheduler Scheduler, locks *quizLocks, log logrus.FieldLogger) *Progression {
	return &Progression{
		quizzes:      store,
		questions:    store,
		participants: store,
		scheduler:    scheduler,
		locks:        locks,
		log:          log,
		onChange:     func(int64) {},
	}
}

// Start moves a draft or waiting quiz to active on question 1 and arms its timer.
// Starting an active quiz returns it unchanged.
func (p *Progression) Start(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, changed, err := p.start(ctx, quizID)
	if changed {
		p.onChange(quizID)
	}
	return quiz, err
}

func (p *Progression) start(ctx context.Context, quizID int64) (domain.Quiz, bool, error) {
	unlock := p.locks.lock(quizID)
	defer unlock()

	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	switch quiz.Status {
	case domain.StatusActive:
		return quiz, false, nil
	case domain.StatusCompleted:
		return quiz, false, errors.Wrapf(domain.ErrInvalidTransition, "quiz %d is completed", quizID)
	}

	questions, err := p.questions.ListQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	if len(questions) == 0 {
		return quiz, false, domain.ErrNoQuestions
	}

	status, cursor := domain.StatusActive, 1
	quiz, err = p.quizzes.UpdateQuiz(ctx, quizID, domain.QuizPatch{Status: &status, CurrentQuestion: &cursor})
	if err != nil {
		return domain.Quiz{}, false, err
	}
	p.log.WithField("quiz_id", quizID).Info("quiz started")
	p.arm(quiz, questions, cursor)
	return quiz, true, nil
}

// Next advances an active quiz by one question immediately and arms a fresh timer
// for the new question. Non-active quizzes are returned unchanged.
func (p *Progression) Next(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, changed, err := p.next(ctx, quizID)
	if changed {
		p.onChange(quizID)
	}
	return quiz, err
}

func (p *Progression) next(ctx context.Context, quizID int64) (domain.Quiz, bool, error) {
	unlock := p.locks.lock(quizID)
	defer unlock()

	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	if quiz.Status != domain.StatusActive {
		return quiz, false, nil
	}
	quiz, err = p.advanceLocked(ctx, quiz)
	return quiz, err == nil, err
}

// End forces a quiz to completed from any state.
func (p *Progression) End(ctx context.Context, quizID int64) (domain.Quiz, error) {
	quiz, changed, err := p.end(ctx, quizID)
	if changed {
		p.onChange(quizID)
	}
	return quiz, err
}

func (p *Progression) end(ctx context.Context, quizID int64) (domain.Quiz, bool, error) {
	unlock := p.locks.lock(quizID)
	defer unlock()

	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	if quiz.Status == domain.StatusCompleted {
		return quiz, false, nil
	}
	quiz, err = p.completeLocked(ctx, quizID, "ended by admin")
	return quiz, err == nil, err
}

// advanceIfCurrent is the timer callback. It only advances when the quiz is still
// active on the question the timer was armed for.
func (p *Progression) advanceIfCurrent(quizID int64, expected int) {
	ctx := context.Background()
	log := p.log.WithFields(logrus.Fields{"quiz_id": quizID, "question": expected})

	advanced := func() bool {
		unlock := p.locks.lock(quizID)
		defer unlock()

		quiz, err := p.quizzes.GetQuiz(ctx, quizID)
		if err != nil {
			log.WithError(err).Warn("timer could not load quiz")
			return false
		}
		if quiz.Status != domain.StatusActive || quiz.CurrentQuestion != expected {
			log.WithFields(logrus.Fields{
				"status":  quiz.Status,
				"current": quiz.CurrentQuestion,
			}).Debug("stale timer ignored")
			return false
		}
		if _, err := p.advanceLocked(ctx, quiz); err != nil {
			log.WithError(err).Error("timer advance failed")
			return false
		}
		return true
	}()

	if advanced {
		p.onChange(quizID)
	}
}

// advanceLocked moves the cursor one question forward, completing the quiz once it
// runs past the last question. Caller holds the quiz lock and has checked status.
func (p *Progression) advanceLocked(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	questions, err := p.questions.ListQuestions(ctx, quiz.ID)
	if err != nil {
		return domain.Quiz{}, err
	}

	next := quiz.CurrentQuestion + 1
	if next > len(questions) {
		return p.completeLocked(ctx, quiz.ID, "last question elapsed")
	}

	updated, err := p.quizzes.UpdateQuiz(ctx, quiz.ID, domain.QuizPatch{CurrentQuestion: &next})
	if err != nil {
		return domain.Quiz{}, err
	}
	p.log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "question": next}).Info("advanced to next question")
	p.arm(updated, questions, next)
	return updated, nil
}

func (p *Progression) completeLocked(ctx context.Context, quizID int64, reason string) (domain.Quiz, error) {
	status := domain.StatusCompleted
	quiz, err := p.quizzes.UpdateQuiz(ctx, quizID, domain.QuizPatch{Status: &status})
	if err != nil {
		return domain.Quiz{}, err
	}
	p.log.WithFields(logrus.Fields{"quiz_id": quizID, "reason": reason}).Info("quiz completed")
	return quiz, nil
}

// markWaitingLocked moves a draft quiz to waiting on its first registration.
func (p *Progression) markWaitingLocked(ctx context.Context, quiz domain.Quiz) (bool, error) {
	if quiz.Status != domain.StatusDraft {
		return false, nil
	}
	status := domain.StatusWaiting
	if _, err := p.quizzes.UpdateQuiz(ctx, quiz.ID, domain.QuizPatch{Status: &status}); err != nil {
		return false, err
	}
	return true, nil
}

// completeIfAllFinishedLocked completes the quiz once every participant has answered
// every question.
func (p *Progression) completeIfAllFinishedLocked(ctx context.Context, quizID int64, questionCount int) (bool, error) {
	if questionCount == 0 {
		return false, nil
	}
	quiz, err := p.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	if quiz.Status == domain.StatusCompleted {
		return false, nil
	}

	participants, err := p.participants.ListParticipants(ctx, quizID)
	if err != nil {
		return false, err
	}
	if len(participants) == 0 {
		return false, nil
	}
	for _, pt := range participants {
		if pt.CurrentQuestion < questionCount {
			return false, nil
		}
	}

	if _, err := p.completeLocked(ctx, quizID, "all participants finished"); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Progression) arm(quiz domain.Quiz, questions []domain.Question, cursor int) {
	limit := domain.EffectiveTimeLimit(quiz, questionNumbered(questions, cursor))
	quizID := quiz.ID
	p.log.WithFields(logrus.Fields{
		"quiz_id":  quizID,
		"question": cursor,
		"seconds":  limit,
	}).Debug("question timer armed")
	p.scheduler.AfterFunc(time.Duration(limit)*time.Second, func() {
		p.advanceIfCurrent(quizID, cursor)
	})
}

// questionNumbered finds the question carrying number n, or nil for a gap.
func questionNumbered(questions []domain.Question, n int) *domain.Question {
	for i := range questions {
		if questions[i].QuestionNumber == n {
			return &questions[i]
		}
	}
	return nil
}
