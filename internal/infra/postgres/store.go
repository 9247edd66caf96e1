package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"live-quiz-service/internal/domain"
)

// Store persists entities in the tables created by the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse postgres url")
	}
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	return pool, nil
}

const quizColumns = `id, title, duration, start_date, start_time, status, current_question,
	default_time_per_question, timer_type, created_at`

func (s *Store) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	query := `
	INSERT INTO quizzes (title, duration, start_date, start_time, status, default_time_per_question, timer_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + quizColumns

	quiz, err := scanQuiz(s.pool.QueryRow(ctx, query,
		in.Title, in.Duration, in.StartDate, in.StartTime, domain.StatusDraft, in.DefaultTimePerQuestion, in.TimerType))
	return quiz, errors.Wrap(err, "insert quiz")
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	quiz, err := scanQuiz(s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id))
	return quiz, notFound(err, domain.ErrQuizNotFound, "select quiz")
}

func (s *Store) UpdateQuiz(ctx context.Context, id int64, patch domain.QuizPatch) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		quiz, err = scanQuiz(tx.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		patch.Apply(&quiz)
		_, err = tx.Exec(ctx, `
		UPDATE quizzes SET title = $2, duration = $3, start_date = $4, start_time = $5, status = $6,
			current_question = $7, default_time_per_question = $8, timer_type = $9
		WHERE id = $1`,
			id, quiz.Title, quiz.Duration, quiz.StartDate, quiz.StartTime, quiz.Status,
			quiz.CurrentQuestion, quiz.DefaultTimePerQuestion, quiz.TimerType)
		return err
	})
	if err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound, "update quiz")
	}
	return quiz, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) (bool, error) {
	return s.deleteByID(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+quizColumns+` FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list quizzes")
	}
	defer rows.Close()

	out := make([]domain.Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan quiz")
		}
		out = append(out, quiz)
	}
	return out, errors.Wrap(rows.Err(), "list quizzes")
}

const questionColumns = `id, quiz_id, question_number, type, question, options, correct_answer, marks, time_limit`

func (s *Store) CreateQuestion(ctx context.Context, in domain.NewQuestion) (domain.Question, error) {
	options, err := encodeOptions(in.Options)
	if err != nil {
		return domain.Question{}, err
	}
	query := `
	INSERT INTO questions (quiz_id, question_number, type, question, options, correct_answer, marks, time_limit)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + questionColumns

	question, err := scanQuestion(s.pool.QueryRow(ctx, query,
		in.QuizID, in.QuestionNumber, in.Type, in.Question, options, in.CorrectAnswer, in.Marks, in.TimeLimit))
	return question, unique(err, domain.ErrDuplicateQuestionNumber, "insert question")
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	question, err := scanQuestion(s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	return question, notFound(err, domain.ErrQuestionNotFound, "select question")
}

func (s *Store) UpdateQuestion(ctx context.Context, id int64, patch domain.QuestionPatch) (domain.Question, error) {
	var question domain.Question
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		question, err = scanQuestion(tx.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		patch.Apply(&question)
		options, err := encodeOptions(question.Options)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
		UPDATE questions SET question_number = $2, type = $3, question = $4, options = $5,
			correct_answer = $6, marks = $7, time_limit = $8
		WHERE id = $1`,
			id, question.QuestionNumber, question.Type, question.Question, options,
			question.CorrectAnswer, question.Marks, question.TimeLimit)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Question{}, domain.ErrDuplicateQuestionNumber
		}
		return domain.Question{}, notFound(err, domain.ErrQuestionNotFound, "update question")
	}
	return question, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	return s.deleteByID(ctx, `DELETE FROM questions WHERE id = $1`, id)
}

func (s *Store) ListQuestions(ctx context.Context, quizID int64) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE quiz_id = $1 ORDER BY question_number, id`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan question")
		}
		out = append(out, question)
	}
	return out, errors.Wrap(rows.Err(), "list questions")
}

const participantColumns = `id, quiz_id, name, email, phone, score, accuracy, average_response_time,
	current_question, registered_at`

func (s *Store) CreateParticipant(ctx context.Context, in domain.NewParticipant) (domain.Participant, error) {
	query := `
	INSERT INTO participants (quiz_id, name, email, phone)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + participantColumns

	participant, err := scanParticipant(s.pool.QueryRow(ctx, query, in.QuizID, in.Name, in.Email, in.Phone))
	return participant, unique(err, domain.ErrAlreadyRegistered, "insert participant")
}

func (s *Store) GetParticipant(ctx context.Context, id int64) (domain.Participant, error) {
	participant, err := scanParticipant(s.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
	return participant, notFound(err, domain.ErrParticipantNotFound, "select participant")
}

func (s *Store) UpdateParticipant(ctx context.Context, id int64, patch domain.ParticipantPatch) (domain.Participant, error) {
	var participant domain.Participant
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		participant, err = scanParticipant(tx.QueryRow(ctx,
			`SELECT `+participantColumns+` FROM participants WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		patch.Apply(&participant)
		_, err = tx.Exec(ctx, `
		UPDATE participants SET name = $2, email = $3, phone = $4, score = $5, accuracy = $6,
			average_response_time = $7, current_question = $8
		WHERE id = $1`,
			id, participant.Name, participant.Email, participant.Phone, participant.Score,
			participant.Accuracy, participant.AverageResponseTime, participant.CurrentQuestion)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Participant{}, domain.ErrAlreadyRegistered
		}
		return domain.Participant{}, notFound(err, domain.ErrParticipantNotFound, "update participant")
	}
	return participant, nil
}

func (s *Store) DeleteParticipant(ctx context.Context, id int64) (bool, error) {
	return s.deleteByID(ctx, `DELETE FROM participants WHERE id = $1`, id)
}

func (s *Store) ListParticipants(ctx context.Context, quizID int64) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE quiz_id = $1 ORDER BY id`, quizID)
	if err != nil {
		return nil, errors.Wrap(err, "list participants")
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		participant, err := scanParticipant(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan participant")
		}
		out = append(out, participant)
	}
	return out, errors.Wrap(rows.Err(), "list participants")
}

func (s *Store) FindParticipantByEmail(ctx context.Context, quizID int64, email string) (domain.Participant, error) {
	participant, err := scanParticipant(s.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE quiz_id = $1 AND email = $2`, quizID, email))
	return participant, notFound(err, domain.ErrParticipantNotFound, "find participant by email")
}

const answerColumns = `id, participant_id, question_id, answer, is_correct, time_spent, submitted_at`

func (s *Store) CreateAnswer(ctx context.Context, in domain.NewAnswer, isCorrect bool) (domain.Answer, error) {
	query := `
	INSERT INTO answers (participant_id, question_id, answer, is_correct, time_spent)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + answerColumns

	answer, err := scanAnswer(s.pool.QueryRow(ctx, query, in.ParticipantID, in.QuestionID, in.Answer, isCorrect, in.TimeSpent))
	return answer, errors.Wrap(err, "insert answer")
}

func (s *Store) GetAnswer(ctx context.Context, id int64) (domain.Answer, error) {
	answer, err := scanAnswer(s.pool.QueryRow(ctx, `SELECT `+answerColumns+` FROM answers WHERE id = $1`, id))
	return answer, notFound(err, domain.ErrAnswerNotFound, "select answer")
}

func (s *Store) DeleteAnswer(ctx context.Context, id int64) (bool, error) {
	return s.deleteByID(ctx, `DELETE FROM answers WHERE id = $1`, id)
}

func (s *Store) ListAnswersByParticipant(ctx context.Context, participantID int64) ([]domain.Answer, error) {
	return s.listAnswers(ctx, `SELECT `+answerColumns+` FROM answers WHERE participant_id = $1 ORDER BY id`, participantID)
}

func (s *Store) ListAnswersByQuestion(ctx context.Context, questionID int64) ([]domain.Answer, error) {
	return s.listAnswers(ctx, `SELECT `+answerColumns+` FROM answers WHERE question_id = $1 ORDER BY id`, questionID)
}

func (s *Store) listAnswers(ctx context.Context, query string, id int64) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "list answers")
	}
	defer rows.Close()

	out := make([]domain.Answer, 0)
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan answer")
		}
		out = append(out, answer)
	}
	return out, errors.Wrap(rows.Err(), "list answers")
}

func (s *Store) deleteByID(ctx context.Context, query string, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, errors.Wrap(err, "delete")
	}
	return tag.RowsAffected() > 0, nil
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := row.Scan(&quiz.ID, &quiz.Title, &quiz.Duration, &quiz.StartDate, &quiz.StartTime, &quiz.Status,
		&quiz.CurrentQuestion, &quiz.DefaultTimePerQuestion, &quiz.TimerType, &quiz.CreatedAt)
	return quiz, err
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		question domain.Question
		options  []byte
		limit    *int32
	)
	err := row.Scan(&question.ID, &question.QuizID, &question.QuestionNumber, &question.Type, &question.Question,
		&options, &question.CorrectAnswer, &question.Marks, &limit)
	if err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(options, &question.Options); err != nil {
		return domain.Question{}, errors.Wrap(err, "decode options")
	}
	if len(question.Options) == 0 {
		question.Options = nil
	}
	if limit != nil {
		v := int(*limit)
		question.TimeLimit = &v
	}
	return question, nil
}

func scanParticipant(row pgx.Row) (domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.ID, &p.QuizID, &p.Name, &p.Email, &p.Phone, &p.Score, &p.Accuracy,
		&p.AverageResponseTime, &p.CurrentQuestion, &p.RegisteredAt)
	return p, err
}

func scanAnswer(row pgx.Row) (domain.Answer, error) {
	var a domain.Answer
	err := row.Scan(&a.ID, &a.ParticipantID, &a.QuestionID, &a.Answer, &a.IsCorrect, &a.TimeSpent, &a.SubmittedAt)
	return a, err
}

func encodeOptions(options []string) ([]byte, error) {
	if options == nil {
		options = []string{}
	}
	data, err := json.Marshal(options)
	return data, errors.Wrap(err, "encode options")
}

// notFound maps pgx.ErrNoRows to the entity's sentinel and wraps anything else.
func notFound(err, sentinel error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return errors.Wrap(err, op)
}

// uniqueViolation is the SQLSTATE for a broken UNIQUE constraint.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// unique maps a UNIQUE constraint failure to the domain conflict and wraps anything else.
func unique(err, conflict error, op string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return conflict
	}
	return errors.Wrap(err, op)
}
