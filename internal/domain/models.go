package domain

import "time"

// QuizStatus is the lifecycle state of a quiz.
type QuizStatus string

const (
	StatusDraft     QuizStatus = "draft"
	StatusWaiting   QuizStatus = "waiting"
	StatusActive    QuizStatus = "active"
	StatusCompleted QuizStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s QuizStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusWaiting, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// TimerType tells the presentation layer whether questions share one time limit.
type TimerType string

const (
	TimerSame      TimerType = "same"
	TimerDifferent TimerType = "different"
)

func (t TimerType) Valid() bool {
	return t == TimerSame || t == TimerDifferent
}

// QuestionType selects the correctness rule used when scoring.
type QuestionType string

const (
	QuestionMCQ       QuestionType = "MCQ"
	QuestionFill      QuestionType = "Fill"
	QuestionTrueFalse QuestionType = "TrueFalse"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionFill, QuestionTrueFalse:
		return true
	}
	return false
}

// FallbackTimePerQuestion applies when neither the question nor the quiz sets a limit.
const FallbackTimePerQuestion = 30

// Quiz is a timed quiz authored by an administrator.
type Quiz struct {
	ID                     int64      `json:"id"`
	Title                  string     `json:"title"`
	Duration               int        `json:"duration"` // minutes
	StartDate              string     `json:"startDate"`
	StartTime              string     `json:"startTime"`
	Status                 QuizStatus `json:"status"`
	CurrentQuestion        int        `json:"currentQuestion"` // 0 = not started
	DefaultTimePerQuestion int        `json:"defaultTimePerQuestion"`
	TimerType              TimerType  `json:"timerType"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// Question belongs to a quiz and is sequenced by QuestionNumber.
type Question struct {
	ID             int64        `json:"id"`
	QuizID         int64        `json:"quizId"`
	QuestionNumber int          `json:"questionNumber"`
	Type           QuestionType `json:"type"`
	Question       string       `json:"question"`
	Options        []string     `json:"options"`
	CorrectAnswer  string       `json:"correctAnswer"`
	Marks          int          `json:"marks"`
	TimeLimit      *int         `json:"timeLimit"` // seconds; nil falls back to the quiz default
}

// EffectiveTimeLimit returns the number of seconds a question stays open.
// A nil question (a gap in the numbering) uses the quiz default.
func EffectiveTimeLimit(quiz Quiz, question *Question) int {
	if question != nil && question.TimeLimit != nil && *question.TimeLimit > 0 {
		return *question.TimeLimit
	}
	if quiz.DefaultTimePerQuestion > 0 {
		return quiz.DefaultTimePerQuestion
	}
	return FallbackTimePerQuestion
}

// Participant is a registered player of one quiz.
type Participant struct {
	ID                  int64     `json:"id"`
	QuizID              int64     `json:"quizId"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	Score               int       `json:"score"`
	Accuracy            int       `json:"accuracy"`            // percent
	AverageResponseTime int       `json:"averageResponseTime"` // seconds
	CurrentQuestion     int       `json:"currentQuestion"`     // answers submitted so far
	RegisteredAt        time.Time `json:"registeredAt"`
}

// Answer is one submission. It is never modified after creation.
type Answer struct {
	ID            int64     `json:"id"`
	ParticipantID int64     `json:"participantId"`
	QuestionID    int64     `json:"questionId"`
	Answer        string    `json:"answer"`
	IsCorrect     bool      `json:"isCorrect"`
	TimeSpent     int       `json:"timeSpent"` // seconds
	SubmittedAt   time.Time `json:"submittedAt"`
}

// QuizDetail is a quiz with its ordered questions and head count.
type QuizDetail struct {
	Quiz
	Questions        []Question `json:"questions"`
	ParticipantCount int        `json:"participantCount"`
}

// ParticipantDetail is a participant with their answers and current rank.
type ParticipantDetail struct {
	Participant
	Answers []Answer `json:"answers"`
	Rank    int      `json:"rank"`
}

// LeaderboardEntry is a ranked, snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	Score               int    `json:"score"`
	Accuracy            int    `json:"accuracy"`
	AverageResponseTime int    `json:"averageResponseTime"`
	Rank                int    `json:"rank"`
}

// Leaderboard captures quiz progress and the ordered scoreboard at one instant.
type Leaderboard struct {
	QuizID          int64              `json:"quizId"`
	Status          QuizStatus         `json:"status"`
	CurrentQuestion int                `json:"currentQuestion"`
	Entries         []LeaderboardEntry `json:"entries"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// JoinInfo is what participants scan or click to register.
type JoinInfo struct {
	URL    string `json:"url"`
	QRData string `json:"qrData"`
	Image  string `json:"image"`
}
