package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// Store keeps every entity as a JSON record in Redis.
//
// Records:   quiz:{id}  question:{id}  participant:{id}  answer:{id}
// Sequences: seq:{kind}  (INCR)
// Indexes (sorted sets scored by id):
//
//	quizzes
//	quiz:{id}:questions
//	quiz:{id}:participants
//	participant:{id}:answers
//	question:{id}:answers
//
// Emails: HSET quiz:{id}:emails {email} {participantID}
type Store struct {
	client *redis.Client
	now    func() time.Time
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func (s *Store) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	id, err := s.nextID(ctx, "quiz")
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz := domain.Quiz{
		ID:                     id,
		Title:                  in.Title,
		Duration:               in.Duration,
		StartDate:              in.StartDate,
		StartTime:              in.StartTime,
		Status:                 domain.StatusDraft,
		DefaultTimePerQuestion: in.DefaultTimePerQuestion,
		TimerType:              in.TimerType,
		CreatedAt:              s.now().UTC(),
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, errors.Wrap(err, "encode quiz")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, quizKey(id), data, 0)
		pipe.ZAdd(ctx, "quizzes", redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return domain.Quiz{}, errors.Wrap(err, "store quiz")
	}
	return quiz, nil
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := s.load(ctx, quizKey(id), &quiz, domain.ErrQuizNotFound); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *Store) UpdateQuiz(ctx context.Context, id int64, patch domain.QuizPatch) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.update(ctx, quizKey(id), &quiz, domain.ErrQuizNotFound, func(redis.Pipeliner) {
		patch.Apply(&quiz)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, quizKey(id))
		pipe.ZRem(ctx, "quizzes", id)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "delete quiz")
	}
	return del.Val() > 0, nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, 0)
	err := s.list(ctx, "quizzes", quizKey, func(raw []byte) error {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return err
		}
		out = append(out, quiz)
		return nil
	})
	return out, err
}

func (s *Store) CreateQuestion(ctx context.Context, in domain.NewQuestion) (domain.Question, error) {
	id, err := s.nextID(ctx, "question")
	if err != nil {
		return domain.Question{}, err
	}
	question := domain.Question{
		ID:             id,
		QuizID:         in.QuizID,
		QuestionNumber: in.QuestionNumber,
		Type:           in.Type,
		Question:       in.Question,
		Options:        in.Options,
		CorrectAnswer:  in.CorrectAnswer,
		Marks:          in.Marks,
		TimeLimit:      in.TimeLimit,
	}
	data, err := json.Marshal(question)
	if err != nil {
		return domain.Question{}, errors.Wrap(err, "encode question")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, questionKey(id), data, 0)
		pipe.ZAdd(ctx, quizQuestionsKey(in.QuizID), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return domain.Question{}, errors.Wrap(err, "store question")
	}
	return question, nil
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var question domain.Question
	if err := s.load(ctx, questionKey(id), &question, domain.ErrQuestionNotFound); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

func (s *Store) UpdateQuestion(ctx context.Context, id int64, patch domain.QuestionPatch) (domain.Question, error) {
	var question domain.Question
	err := s.update(ctx, questionKey(id), &question, domain.ErrQuestionNotFound, func(redis.Pipeliner) {
		patch.Apply(&question)
	})
	if err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	question, err := s.GetQuestion(ctx, id)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, questionKey(id))
		pipe.ZRem(ctx, quizQuestionsKey(question.QuizID), id)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "delete question")
	}
	return del.Val() > 0, nil
}

func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	out := make([]domain.Question, 0)
	err := s.list(ctx, quizQuestionsKey(quizID), questionKey, func(raw []byte) error {
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err != nil {
			return err
		}
		out = append(out, question)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// the index is in id order; sequencing is by question number
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out, nil
}

func (s *Store) CreateParticipant(ctx context.Context, in domain.NewParticipant) (domain.Participant, error) {
	id, err := s.nextID(ctx, "participant")
	if err != nil {
		return domain.Participant{}, err
	}
	participant := domain.Participant{
		ID:           id,
		QuizID:       in.QuizID,
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		RegisteredAt: s.now().UTC(),
	}
	data, err := json.Marshal(participant)
	if err != nil {
		return domain.Participant{}, errors.Wrap(err, "encode participant")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, participantKey(id), data, 0)
		pipe.ZAdd(ctx, quizParticipantsKey(in.QuizID), redis.Z{Score: float64(id), Member: id})
		pipe.HSet(ctx, quizEmailsKey(in.QuizID), in.Email, id)
		return nil
	})
	if err != nil {
		return domain.Participant{}, errors.Wrap(err, "store participant")
	}
	return participant, nil
}

func (s *Store) GetParticipant(ctx context.Context, id int64) (domain.Participant, error) {
	var participant domain.Participant
	if err := s.load(ctx, participantKey(id), &participant, domain.ErrParticipantNotFound); err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, id int64, patch domain.ParticipantPatch) (domain.Participant, error) {
	var participant domain.Participant
	err := s.update(ctx, participantKey(id), &participant, domain.ErrParticipantNotFound, func(pipe redis.Pipeliner) {
		oldEmail := participant.Email
		patch.Apply(&participant)
		if participant.Email != oldEmail {
			pipe.HDel(ctx, quizEmailsKey(participant.QuizID), oldEmail)
			pipe.HSet(ctx, quizEmailsKey(participant.QuizID), participant.Email, id)
		}
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

func (s *Store) DeleteParticipant(ctx context.Context, id int64) (bool, error) {
	participant, err := s.GetParticipant(ctx, id)
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, participantKey(id))
		pipe.ZRem(ctx, quizParticipantsKey(participant.QuizID), id)
		pipe.HDel(ctx, quizEmailsKey(participant.QuizID), participant.Email)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "delete participant")
	}
	return del.Val() > 0, nil
}

func (s *Store) ListParticipants(ctx context.Context, quizID int64) ([]domain.Participant, error) {
	out := make([]domain.Participant, 0)
	err := s.list(ctx, quizParticipantsKey(quizID), participantKey, func(raw []byte) error {
		var participant domain.Participant
		if err := json.Unmarshal(raw, &participant); err != nil {
			return err
		}
		out = append(out, participant)
		return nil
	})
	return out, err
}

func (s *Store) FindParticipantByEmail(ctx context.Context, quizID int64, email string) (domain.Participant, error) {
	raw, err := s.client.HGet(ctx, quizEmailsKey(quizID), email).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, errors.Wrap(err, "lookup participant email")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.Participant{}, errors.Wrapf(err, "corrupt email index for quiz %d", quizID)
	}
	return s.GetParticipant(ctx, id)
}

func (s *Store) CreateAnswer(ctx context.Context, in domain.NewAnswer, isCorrect bool) (domain.Answer, error) {
	id, err := s.nextID(ctx, "answer")
	if err != nil {
		return domain.Answer{}, err
	}
	answer := domain.Answer{
		ID:            id,
		ParticipantID: in.ParticipantID,
		QuestionID:    in.QuestionID,
		Answer:        in.Answer,
		IsCorrect:     isCorrect,
		TimeSpent:     in.TimeSpent,
		SubmittedAt:   s.now().UTC(),
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return domain.Answer{}, errors.Wrap(err, "encode answer")
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		member := redis.Z{Score: float64(id), Member: id}
		pipe.Set(ctx, answerKey(id), data, 0)
		pipe.ZAdd(ctx, participantAnswersKey(in.ParticipantID), member)
		pipe.ZAdd(ctx, questionAnswersKey(in.QuestionID), member)
		return nil
	})
	if err != nil {
		return domain.Answer{}, errors.Wrap(err, "store answer")
	}
	return answer, nil
}

func (s *Store) GetAnswer(ctx context.Context, id int64) (domain.Answer, error) {
	var answer domain.Answer
	if err := s.load(ctx, answerKey(id), &answer, domain.ErrAnswerNotFound); err != nil {
		return domain.Answer{}, err
	}
	return answer, nil
}

func (s *Store) DeleteAnswer(ctx context.Context, id int64) (bool, error) {
	answer, err := s.GetAnswer(ctx, id)
	if errors.Is(err, domain.ErrAnswerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, answerKey(id))
		pipe.ZRem(ctx, participantAnswersKey(answer.ParticipantID), id)
		pipe.ZRem(ctx, questionAnswersKey(answer.QuestionID), id)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "delete answer")
	}
	return del.Val() > 0, nil
}

func (s *Store) ListAnswersByParticipant(ctx context.Context, participantID int64) ([]domain.Answer, error) {
	return s.listAnswers(ctx, participantAnswersKey(participantID))
}

func (s *Store) ListAnswersByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error) {
	return s.listAnswers(ctx, questionAnswersKey(questionID))
}

func (s *Store) listAnswers(ctx context.Context, index string) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0)
	err := s.list(ctx, index, answerKey, func(raw []byte) error {
		var answer domain.Answer
		if err := json.Unmarshal(raw, &answer); err != nil {
			return err
		}
		out = append(out, answer)
		return nil
	})
	return out, err
}

func (s *Store) nextID(ctx context.Context, kind string) (int64, error) {
	id, err := s.client.Incr(ctx, "seq:"+kind).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "allocate %s id", kind)
	}
	return id, nil
}

func (s *Store) load(ctx context.Context, key string, dst interface{}, notFound error) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", key)
	}
	return errors.Wrapf(json.Unmarshal(raw, dst), "decode %s", key)
}

// update reads the record under WATCH, lets mutate change dst (and queue index
// changes on the pipeline), then writes it back in one transaction.
func (s *Store) update(ctx context.Context, key string, dst interface{}, notFound error, mutate func(redis.Pipeliner)) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		if err != nil {
			return errors.Wrapf(err, "get %s", key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return errors.Wrapf(err, "decode %s", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			mutate(pipe)
			data, err := json.Marshal(dst)
			if err != nil {
				return errors.Wrapf(err, "encode %s", key)
			}
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return errors.Wrapf(err, "concurrent write to %s", key)
	}
	return err
}

// list walks an id index in ascending order and decodes each record. Ids whose record
// has gone are skipped.
func (s *Store) list(ctx context.Context, index string, keyOf func(int64) string, decode func([]byte) error) error {
	members, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return errors.Wrapf(err, "range %s", index)
	}
	if len(members) == 0 {
		return nil
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "corrupt member %q in %s", m, index)
		}
		keys = append(keys, keyOf(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return errors.Wrapf(err, "mget %s", index)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if err := decode([]byte(raw)); err != nil {
			return errors.Wrapf(err, "decode %s", keys[i])
		}
	}
	return nil
}

func quizKey(id int64) string        { return "quiz:" + strconv.FormatInt(id, 10) }
func questionKey(id int64) string    { return "question:" + strconv.FormatInt(id, 10) }
func participantKey(id int64) string { return "participant:" + strconv.FormatInt(id, 10) }
func answerKey(id int64) string      { return "answer:" + strconv.FormatInt(id, 10) }

func quizQuestionsKey(quizID int64) string {
	return quizKey(quizID) + ":questions"
}

func quizParticipantsKey(quizID int64) string {
	return quizKey(quizID) + ":participants"
}

func quizEmailsKey(quizID int64) string {
	return quizKey(quizID) + ":emails"
}

func participantAnswersKey(participantID int64) string {
	return participantKey(participantID) + ":answers"
}

func questionAnswersKey(questionID int64) string {
	return questionKey(questionID) + ":answers"
}
