package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"live-quiz-service/internal/domain"
)

// QRRenderer turns a join URL into a PNG image.
type QRRenderer interface {
	PNG(content string) ([]byte, error)
}

// Options tunes a QuizService. Zero values fall back to production defaults.
type Options struct {
	// PublicHost is the host participants reach the presentation layer on.
	PublicHost             string
	DefaultTimePerQuestion int
	Scheduler              Scheduler
	QR                     QRRenderer
	Logger                 logrus.FieldLogger
	Clock                  func() time.Time
}

// QuizService contains the quiz use cases.
type QuizService struct {
	store       Store
	progress    *Progression
	feed        *Feed
	locks       *quizLocks
	qr          QRRenderer
	publicHost  string
	defaultTime int
	now         func() time.Time
	log         logrus.FieldLogger
	sf          singleflight.Group
}

func NewQuizService(store Store, opts Options) *QuizService {
	if opts.Scheduler == nil {
		opts.Scheduler = WallClock
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PublicHost == "" {
		opts.PublicHost = "localhost:5000"
	}
	if opts.DefaultTimePerQuestion <= 0 {
		opts.DefaultTimePerQuestion = domain.FallbackTimePerQuestion
	}

	locks := newQuizLocks()
	s := &QuizService{
		store:       store,
		feed:        NewFeed(),
		locks:       locks,
		qr:          opts.QR,
		publicHost:  opts.PublicHost,
		defaultTime: opts.DefaultTimePerQuestion,
		now:         opts.Clock,
		log:         opts.Logger,
	}
	s.progress = newProgression(store, opts.Scheduler, locks, opts.Logger)
	s.progress.onChange = s.publish
	return s
}

// CreateQuiz stores a new draft quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	in.Normalize(s.defaultTime)
	if err := in.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	quiz, err := s.store.CreateQuiz(ctx, in)
	if err != nil {
		return domain.Quiz{}, err
	}
	s.log.WithField("quiz_id", quiz.ID).Info("quiz created")
	return quiz, nil
}

func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	return s.store.ListQuizzes(ctx)
}

func (s *QuizService) GetQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	return s.store.GetQuiz(ctx, id)
}

// GetQuizDetail returns the quiz with its ordered questions and participant count.
func (s *QuizService) GetQuizDetail(ctx context.Context, id int64) (domain.QuizDetail, error) {
	quiz, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return domain.QuizDetail{}, err
	}

	var (
		questions    []domain.Question
		participants []domain.Participant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.store.ListQuestions(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.store.ListParticipants(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.QuizDetail{}, err
	}

	if questions == nil {
		questions = []domain.Question{}
	}
	return domain.QuizDetail{
		Quiz:             quiz,
		Questions:        questions,
		ParticipantCount: len(participants),
	}, nil
}

// UpdateQuiz applies an admin patch. Lifecycle fields may only move the way the
// progression controller would move them; see checkQuizPatch.
func (s *QuizService) UpdateQuiz(ctx context.Context, id int64, patch domain.QuizPatch) (domain.Quiz, error) {
	if err := patch.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	quiz, err := func() (domain.Quiz, error) {
		unlock := s.locks.lock(id)
		defer unlock()

		current, err := s.store.GetQuiz(ctx, id)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := checkQuizPatch(current, patch); err != nil {
			return domain.Quiz{}, err
		}
		return s.store.UpdateQuiz(ctx, id, patch)
	}()
	if err != nil {
		return domain.Quiz{}, err
	}
	s.publish(id)
	return quiz, nil
}

// checkQuizPatch rejects admin edits that only start, next and end may make. The cursor
// is never patched, and status may only step draft → waiting or jump to completed.
func checkQuizPatch(quiz domain.Quiz, patch domain.QuizPatch) error {
	if patch.CurrentQuestion != nil && *patch.CurrentQuestion != quiz.CurrentQuestion {
		return errors.Wrap(domain.ErrInvalidTransition, "currentQuestion moves with start and next")
	}
	if patch.Status == nil || *patch.Status == quiz.Status {
		return nil
	}
	to := *patch.Status
	switch {
	case quiz.Status == domain.StatusDraft && to == domain.StatusWaiting:
		return nil
	case quiz.Status != domain.StatusCompleted && to == domain.StatusCompleted:
		return nil
	}
	return errors.Wrapf(domain.ErrInvalidTransition, "%s to %s", quiz.Status, to)
}

func (s *QuizService) StartQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	return s.progress.Start(ctx, id)
}

func (s *QuizService) NextQuestion(ctx context.Context, id int64) (domain.Quiz, error) {
	return s.progress.Next(ctx, id)
}

func (s *QuizService) EndQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	return s.progress.End(ctx, id)
}

// JoinURL is the link participants open to register for a quiz.
func (s *QuizService) JoinURL(quizID int64) string {
	return fmt.Sprintf("https://%s/participant/%d", s.publicHost, quizID)
}

// JoinInfo returns the join link and its QR code as a PNG data URL.
func (s *QuizService) JoinInfo(ctx context.Context, quizID int64) (domain.JoinInfo, error) {
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return domain.JoinInfo{}, err
	}
	url := s.JoinURL(quizID)
	info := domain.JoinInfo{URL: url, QRData: url}
	if s.qr == nil {
		return info, errors.New("qr renderer not configured")
	}
	png, err := s.qr.PNG(url)
	if err != nil {
		return domain.JoinInfo{}, errors.Wrap(err, "render qr code")
	}
	info.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return info, nil
}

// CreateQuestion adds a question to an existing quiz. Question numbers are unique
// within a quiz.
func (s *QuizService) CreateQuestion(ctx context.Context, in domain.NewQuestion) (domain.Question, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Question{}, err
	}

	unlock := s.locks.lock(in.QuizID)
	defer unlock()

	if _, err := s.store.GetQuiz(ctx, in.QuizID); err != nil {
		return domain.Question{}, err
	}
	if err := s.ensureNumberFree(ctx, in.QuizID, in.QuestionNumber, 0); err != nil {
		return domain.Question{}, err
	}
	return s.store.CreateQuestion(ctx, in)
}

// ensureNumberFree fails when a question other than exceptID already carries number n.
// Caller holds the quiz lock.
func (s *QuizService) ensureNumberFree(ctx context.Context, quizID int64, n int, exceptID int64) error {
	questions, err := s.store.ListQuestions(ctx, quizID)
	if err != nil {
		return err
	}
	for _, q := range questions {
		if q.QuestionNumber == n && q.ID != exceptID {
			return errors.Wrapf(domain.ErrDuplicateQuestionNumber, "question %d", n)
		}
	}
	return nil
}

func (s *QuizService) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	return s.store.ListQuestions(ctx, quizID)
}

func (s *QuizService) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	return s.store.GetQuestion(ctx, id)
}

// UpdateQuestion merges the patch onto the stored question and validates the result
// as a whole, so a patch cannot produce a question that create would have rejected.
func (s *QuizService) UpdateQuestion(ctx context.Context, id int64, patch domain.QuestionPatch) (domain.Question, error) {
	if err := patch.Validate(); err != nil {
		return domain.Question{}, err
	}
	question, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}

	unlock := s.locks.lock(question.QuizID)
	defer unlock()

	// re-read under the lock
	question, err = s.store.GetQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	merged := question
	merged.Options = append([]string(nil), question.Options...)
	patch.Apply(&merged)
	if merged.Type != domain.QuestionMCQ && len(merged.Options) > 0 {
		none := []string{}
		patch.Options = &none
		merged.Options = nil
	}
	if err := merged.Validate(); err != nil {
		return domain.Question{}, err
	}
	if merged.QuestionNumber != question.QuestionNumber {
		if err := s.ensureNumberFree(ctx, question.QuizID, merged.QuestionNumber, id); err != nil {
			return domain.Question{}, err
		}
	}
	return s.store.UpdateQuestion(ctx, id, patch)
}

// DeleteQuestion reports whether the question existed.
func (s *QuizService) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteQuestion(ctx, id)
}

// Register creates a participant, rejecting a second registration of the same email,
// and moves a draft quiz to waiting.
func (s *QuizService) Register(ctx context.Context, in domain.NewParticipant) (domain.Participant, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Participant{}, err
	}

	participant, err := func() (domain.Participant, error) {
		unlock := s.locks.lock(in.QuizID)
		defer unlock()

		quiz, err := s.store.GetQuiz(ctx, in.QuizID)
		if err != nil {
			return domain.Participant{}, err
		}
		_, err = s.store.FindParticipantByEmail(ctx, in.QuizID, in.Email)
		switch {
		case err == nil:
			return domain.Participant{}, domain.ErrAlreadyRegistered
		case !errors.Is(err, domain.ErrParticipantNotFound):
			return domain.Participant{}, err
		}

		participant, err := s.store.CreateParticipant(ctx, in)
		if err != nil {
			return domain.Participant{}, err
		}
		s.invalidateLeaderboard(in.QuizID)
		if _, err := s.progress.markWaitingLocked(ctx, quiz); err != nil {
			return domain.Participant{}, err
		}
		return participant, nil
	}()
	if err != nil {
		return domain.Participant{}, err
	}

	s.log.WithFields(logrus.Fields{"quiz_id": in.QuizID, "participant_id": participant.ID}).Info("participant registered")
	s.publish(in.QuizID)
	return participant, nil
}

func (s *QuizService) ListParticipants(ctx context.Context, quizID int64) ([]domain.Participant, error) {
	return s.store.ListParticipants(ctx, quizID)
}

func (s *QuizService) GetParticipant(ctx context.Context, id int64) (domain.Participant, error) {
	return s.store.GetParticipant(ctx, id)
}

// GetParticipantDetail returns a participant with their answers and leaderboard rank.
func (s *QuizService) GetParticipantDetail(ctx context.Context, id int64) (domain.ParticipantDetail, error) {
	participant, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return domain.ParticipantDetail{}, err
	}
	answers, err := s.store.ListAnswersByParticipant(ctx, id)
	if err != nil {
		return domain.ParticipantDetail{}, err
	}
	board, err := s.Leaderboard(ctx, participant.QuizID)
	if err != nil {
		return domain.ParticipantDetail{}, err
	}
	if answers == nil {
		answers = []domain.Answer{}
	}
	return domain.ParticipantDetail{
		Participant: participant,
		Answers:     answers,
		Rank:        rankOf(board, id),
	}, nil
}

// UpdateParticipant applies an admin patch. An email change must not collide with
// another registration for the same quiz.
func (s *QuizService) UpdateParticipant(ctx context.Context, id int64, patch domain.ParticipantPatch) (domain.Participant, error) {
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		patch.Email = &email
	}
	if err := patch.Validate(); err != nil {
		return domain.Participant{}, err
	}
	existing, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}

	participant, err := func() (domain.Participant, error) {
		unlock := s.locks.lock(existing.QuizID)
		defer unlock()

		if patch.Email != nil {
			owner, err := s.store.FindParticipantByEmail(ctx, existing.QuizID, *patch.Email)
			switch {
			case err == nil && owner.ID != id:
				return domain.Participant{}, domain.ErrAlreadyRegistered
			case err != nil && !errors.Is(err, domain.ErrParticipantNotFound):
				return domain.Participant{}, err
			}
		}
		participant, err := s.store.UpdateParticipant(ctx, id, patch)
		if err != nil {
			return domain.Participant{}, err
		}
		s.invalidateLeaderboard(existing.QuizID)
		return participant, nil
	}()
	if err != nil {
		return domain.Participant{}, err
	}
	s.publish(participant.QuizID)
	return participant, nil
}

func (s *QuizService) ListAnswers(ctx context.Context, participantID int64) ([]domain.Answer, error) {
	return s.store.ListAnswersByParticipant(ctx, participantID)
}

// SubmitAnswer scores and records an answer, recomputes the participant's aggregates from
// their full history, advances their progress cursor, and completes the quiz once every
// participant has answered every question.
func (s *QuizService) SubmitAnswer(ctx context.Context, in domain.NewAnswer) (domain.Answer, error) {
	if err := in.Validate(); err != nil {
		return domain.Answer{}, err
	}
	participant, err := s.store.GetParticipant(ctx, in.ParticipantID)
	if err != nil {
		return domain.Answer{}, err
	}
	question, err := s.store.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return domain.Answer{}, err
	}
	if question.QuizID != participant.QuizID {
		return domain.Answer{}, &domain.ValidationError{Field: "questionId", Reason: "question belongs to another quiz"}
	}

	quizID := participant.QuizID
	log := s.log.WithFields(logrus.Fields{"quiz_id": quizID, "participant_id": participant.ID})

	answer, completed, err := func() (domain.Answer, bool, error) {
		unlock := s.locks.lock(quizID)
		defer unlock()

		history, err := s.store.ListAnswersByParticipant(ctx, participant.ID)
		if err != nil {
			return domain.Answer{}, false, err
		}
		for _, prev := range history {
			if prev.QuestionID == in.QuestionID {
				return domain.Answer{}, false, domain.ErrAlreadyAnswered
			}
		}

		quiz, err := s.store.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Answer{}, false, err
		}
		questions, err := s.store.ListQuestions(ctx, quizID)
		if err != nil {
			return domain.Answer{}, false, err
		}

		answer, err := s.store.CreateAnswer(ctx, in, IsCorrect(question, in.Answer))
		if err != nil {
			return domain.Answer{}, false, err
		}
		history = append(history, answer)

		byID := make(map[int64]domain.Question, len(questions))
		for _, q := range questions {
			byID[q.ID] = q
		}
		stats := Aggregate(quiz, byID, history)

		// re-read so the cursor increments from the committed value
		current, err := s.store.GetParticipant(ctx, participant.ID)
		if err != nil {
			return domain.Answer{}, false, err
		}
		cursor := current.CurrentQuestion + 1
		if _, err := s.store.UpdateParticipant(ctx, participant.ID, domain.ParticipantPatch{
			Score:               &stats.Score,
			Accuracy:            &stats.Accuracy,
			AverageResponseTime: &stats.AverageResponseTime,
			CurrentQuestion:     &cursor,
		}); err != nil {
			return domain.Answer{}, false, err
		}
		s.invalidateLeaderboard(quizID)

		completed, err := s.progress.completeIfAllFinishedLocked(ctx, quizID, len(questions))
		if err != nil {
			return domain.Answer{}, false, err
		}
		return answer, completed, nil
	}()
	if err != nil {
		return domain.Answer{}, err
	}

	log.WithFields(logrus.Fields{
		"question_id": answer.QuestionID,
		"correct":     answer.IsCorrect,
		"completed":   completed,
	}).Debug("answer recorded")
	s.publish(quizID)
	return answer, nil
}

// Leaderboard ranks a quiz's participants. Concurrent polls for the same quiz share one
// store read; every participant write forgets the in-flight read so later callers see it.
func (s *QuizService) Leaderboard(ctx context.Context, quizID int64) ([]domain.LeaderboardEntry, error) {
	// the shared read must not die with whichever caller happened to start it
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(leaderboardKey(quizID), func() (interface{}, error) {
		return s.rank(shared, quizID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.LeaderboardEntry{}, res.Val.([]domain.LeaderboardEntry)...), nil
	}
}

func (s *QuizService) rank(ctx context.Context, quizID int64) ([]domain.LeaderboardEntry, error) {
	participants, err := s.store.ListParticipants(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return Rank(participants), nil
}

func (s *QuizService) invalidateLeaderboard(quizID int64) {
	s.sf.Forget(leaderboardKey(quizID))
}

func leaderboardKey(quizID int64) string {
	return strconv.FormatInt(quizID, 10)
}

// Snapshot captures the quiz's progress and leaderboard.
func (s *QuizService) Snapshot(ctx context.Context, quizID int64) (domain.Leaderboard, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	// snapshots feed subscribers, so they always read the store directly
	entries, err := s.rank(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.Leaderboard{
		QuizID:          quizID,
		Status:          quiz.Status,
		CurrentQuestion: quiz.CurrentQuestion,
		Entries:         entries,
		UpdatedAt:       s.now(),
	}, nil
}

// Subscribe returns a channel of snapshots for a quiz, primed with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, quizID int64) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.Snapshot(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(initial)
	return ch, cancel, nil
}

func (s *QuizService) publish(quizID int64) {
	if s.feed.Subscribers(quizID) == 0 {
		return
	}
	lb, err := s.Snapshot(context.Background(), quizID)
	if err != nil {
		s.log.WithError(err).WithField("quiz_id", quizID).Warn("snapshot for feed failed")
		return
	}
	s.feed.Publish(lb)
}
