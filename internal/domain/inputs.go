package domain

import "strings"

// DefaultMarks is awarded to questions created without explicit marks.
const DefaultMarks = 10

// NewQuiz is the admin payload for creating a quiz. Status and cursor are server-owned.
type NewQuiz struct {
	Title                  string    `json:"title"`
	Duration               int       `json:"duration"`
	StartDate              string    `json:"startDate"`
	StartTime              string    `json:"startTime"`
	DefaultTimePerQuestion int       `json:"defaultTimePerQuestion"`
	TimerType              TimerType `json:"timerType"`
}

// Normalize fills server defaults for omitted optional fields.
func (in *NewQuiz) Normalize(defaultTime int) {
	in.Title = strings.TrimSpace(in.Title)
	if in.DefaultTimePerQuestion == 0 {
		in.DefaultTimePerQuestion = defaultTime
	}
	if in.TimerType == "" {
		in.TimerType = TimerSame
	}
}

func (in NewQuiz) Validate() error {
	if in.Title == "" {
		return invalid("title", "required")
	}
	if in.Duration <= 0 {
		return invalid("duration", "must be a positive number of minutes")
	}
	if strings.TrimSpace(in.StartDate) == "" {
		return invalid("startDate", "required")
	}
	if strings.TrimSpace(in.StartTime) == "" {
		return invalid("startTime", "required")
	}
	if in.DefaultTimePerQuestion <= 0 {
		return invalid("defaultTimePerQuestion", "must be positive")
	}
	if !in.TimerType.Valid() {
		return invalid("timerType", "must be same or different")
	}
	return nil
}

// NewQuestion is the admin payload for adding a question to a quiz.
type NewQuestion struct {
	QuizID         int64        `json:"quizId"`
	QuestionNumber int          `json:"questionNumber"`
	Type           QuestionType `json:"type"`
	Question       string       `json:"question"`
	Options        []string     `json:"options"`
	CorrectAnswer  string       `json:"correctAnswer"`
	Marks          int          `json:"marks"`
	TimeLimit      *int         `json:"timeLimit"`
}

func (in *NewQuestion) Normalize() {
	if in.Marks == 0 {
		in.Marks = DefaultMarks
	}
	if in.Type != QuestionMCQ {
		in.Options = nil
	}
}

func (in NewQuestion) Validate() error {
	if in.QuizID <= 0 {
		return invalid("quizId", "required")
	}
	return Question{
		QuizID:         in.QuizID,
		QuestionNumber: in.QuestionNumber,
		Type:           in.Type,
		Question:       in.Question,
		Options:        in.Options,
		CorrectAnswer:  in.CorrectAnswer,
		Marks:          in.Marks,
		TimeLimit:      in.TimeLimit,
	}.Validate()
}

// Validate checks a whole question, either as submitted or after a patch is merged.
func (q Question) Validate() error {
	if q.QuestionNumber < 1 {
		return invalid("questionNumber", "must be 1 or greater")
	}
	if !q.Type.Valid() {
		return invalid("type", "must be MCQ, Fill or TrueFalse")
	}
	if strings.TrimSpace(q.Question) == "" {
		return invalid("question", "required")
	}
	if q.CorrectAnswer == "" {
		return invalid("correctAnswer", "required")
	}
	if q.Marks <= 0 {
		return invalid("marks", "must be positive")
	}
	if q.TimeLimit != nil && *q.TimeLimit <= 0 {
		return invalid("timeLimit", "must be positive when set")
	}
	if q.Type == QuestionMCQ {
		if len(q.Options) < 2 {
			return invalid("options", "MCQ needs at least two options")
		}
		found := false
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return invalid("options", "options must not be blank")
			}
			if opt == q.CorrectAnswer {
				found = true
			}
		}
		if !found {
			return invalid("correctAnswer", "must be one of the options")
		}
	}
	return nil
}

// NewParticipant is the registration payload.
type NewParticipant struct {
	QuizID int64  `json:"quizId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

func (in *NewParticipant) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
}

func (in NewParticipant) Validate() error {
	if in.QuizID <= 0 {
		return invalid("quizId", "required")
	}
	if in.Name == "" {
		return invalid("name", "required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return invalid("email", "must be an email address")
	}
	if in.Phone == "" {
		return invalid("phone", "required")
	}
	return nil
}

// NewAnswer is a participant's submission. An empty Answer is an auto-submitted timeout.
type NewAnswer struct {
	ParticipantID int64  `json:"participantId"`
	QuestionID    int64  `json:"questionId"`
	Answer        string `json:"answer"`
	TimeSpent     int    `json:"timeSpent"`
}

func (in NewAnswer) Validate() error {
	if in.ParticipantID <= 0 {
		return invalid("participantId", "required")
	}
	if in.QuestionID <= 0 {
		return invalid("questionId", "required")
	}
	if in.TimeSpent < 0 {
		return invalid("timeSpent", "must not be negative")
	}
	return nil
}

// QuizPatch merges set fields onto a quiz; nil fields are retained.
type QuizPatch struct {
	Title                  *string     `json:"title,omitempty"`
	Duration               *int        `json:"duration,omitempty"`
	StartDate              *string     `json:"startDate,omitempty"`
	StartTime              *string     `json:"startTime,omitempty"`
	Status                 *QuizStatus `json:"status,omitempty"`
	CurrentQuestion        *int        `json:"currentQuestion,omitempty"`
	DefaultTimePerQuestion *int        `json:"defaultTimePerQuestion,omitempty"`
	TimerType              *TimerType  `json:"timerType,omitempty"`
}

func (p QuizPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown status")
	}
	if p.TimerType != nil && !p.TimerType.Valid() {
		return invalid("timerType", "must be same or different")
	}
	if p.CurrentQuestion != nil && *p.CurrentQuestion < 0 {
		return invalid("currentQuestion", "must not be negative")
	}
	return nil
}

func (p QuizPatch) Apply(q *Quiz) {
	if p.Title != nil {
		q.Title = *p.Title
	}
	if p.Duration != nil {
		q.Duration = *p.Duration
	}
	if p.StartDate != nil {
		q.StartDate = *p.StartDate
	}
	if p.StartTime != nil {
		q.StartTime = *p.StartTime
	}
	if p.Status != nil {
		q.Status = *p.Status
	}
	if p.CurrentQuestion != nil {
		q.CurrentQuestion = *p.CurrentQuestion
	}
	if p.DefaultTimePerQuestion != nil {
		q.DefaultTimePerQuestion = *p.DefaultTimePerQuestion
	}
	if p.TimerType != nil {
		q.TimerType = *p.TimerType
	}
}

// QuestionPatch merges set fields onto a question.
type QuestionPatch struct {
	QuestionNumber *int          `json:"questionNumber,omitempty"`
	Type           *QuestionType `json:"type,omitempty"`
	Question       *string       `json:"question,omitempty"`
	Options        *[]string     `json:"options,omitempty"`
	CorrectAnswer  *string       `json:"correctAnswer,omitempty"`
	Marks          *int          `json:"marks,omitempty"`
	TimeLimit      *int          `json:"timeLimit,omitempty"`
}

func (p QuestionPatch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return invalid("type", "must be MCQ, Fill or TrueFalse")
	}
	if p.QuestionNumber != nil && *p.QuestionNumber < 1 {
		return invalid("questionNumber", "must be 1 or greater")
	}
	if p.Marks != nil && *p.Marks <= 0 {
		return invalid("marks", "must be positive")
	}
	if p.TimeLimit != nil && *p.TimeLimit <= 0 {
		return invalid("timeLimit", "must be positive when set")
	}
	return nil
}

func (p QuestionPatch) Apply(q *Question) {
	if p.QuestionNumber != nil {
		q.QuestionNumber = *p.QuestionNumber
	}
	if p.Type != nil {
		q.Type = *p.Type
	}
	if p.Question != nil {
		q.Question = *p.Question
	}
	if p.Options != nil {
		q.Options = append([]string(nil), (*p.Options)...)
	}
	if p.CorrectAnswer != nil {
		q.CorrectAnswer = *p.CorrectAnswer
	}
	if p.Marks != nil {
		q.Marks = *p.Marks
	}
	if p.TimeLimit != nil {
		limit := *p.TimeLimit
		q.TimeLimit = &limit
	}
}

// ParticipantPatch merges set fields onto a participant. The quiz service uses it
// to write recomputed aggregates.
type ParticipantPatch struct {
	Name                *string `json:"name,omitempty"`
	Email               *string `json:"email,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	Score               *int    `json:"score,omitempty"`
	Accuracy            *int    `json:"accuracy,omitempty"`
	AverageResponseTime *int    `json:"averageResponseTime,omitempty"`
	CurrentQuestion     *int    `json:"currentQuestion,omitempty"`
}

func (p ParticipantPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", "must not be blank")
	}
	if p.Email != nil && !strings.Contains(*p.Email, "@") {
		return invalid("email", "must be an email address")
	}
	if p.Accuracy != nil && (*p.Accuracy < 0 || *p.Accuracy > 100) {
		return invalid("accuracy", "must be between 0 and 100")
	}
	if p.CurrentQuestion != nil && *p.CurrentQuestion < 0 {
		return invalid("currentQuestion", "must not be negative")
	}
	return nil
}

func (p ParticipantPatch) Apply(pt *Participant) {
	if p.Name != nil {
		pt.Name = *p.Name
	}
	if p.Email != nil {
		pt.Email = *p.Email
	}
	if p.Phone != nil {
		pt.Phone = *p.Phone
	}
	if p.Score != nil {
		pt.Score = *p.Score
	}
	if p.Accuracy != nil {
		pt.Accuracy = *p.Accuracy
	}
	if p.AverageResponseTime != nil {
		pt.AverageResponseTime = *p.AverageResponseTime
	}
	if p.CurrentQuestion != nil {
		pt.CurrentQuestion = *p.CurrentQuestion
	}
}
