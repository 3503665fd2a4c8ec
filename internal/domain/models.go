package domain

import (
	"math"
	"strings"
	"time"
)

// Choice letters accepted as a question's correct answer.
const (
	ChoiceA = "A"
	ChoiceB = "B"
	ChoiceC = "C"
	ChoiceD = "D"
)

// Difficulty bounds passed through to question generation.
const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// State is the quiz lifecycle position.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateEnded   State = "ended"
)

// Question models a four-choice question with a single correct letter.
type Question struct {
	Question string `json:"question" bson:"question" validate:"required"`
	ChoiceA  string `json:"choice_A" bson:"choice_A" validate:"required"`
	ChoiceB  string `json:"choice_B" bson:"choice_B" validate:"required"`
	ChoiceC  string `json:"choice_C" bson:"choice_C" validate:"required"`
	ChoiceD  string `json:"choice_D" bson:"choice_D" validate:"required"`
	Answer   string `json:"answer" bson:"answer" validate:"required,oneof=A B C D"`
}

// EvaluatedAnswer is one graded position of a response.
type EvaluatedAnswer struct {
	QuestionIndex int    `json:"question_index" bson:"question_index"`
	Answer        string `json:"answer" bson:"answer"`
	IsCorrect     bool   `json:"is_correct" bson:"is_correct"`
}

// Response is a participant's single graded submission.
type Response struct {
	Name        string            `json:"name" bson:"name"`
	Answers     []EvaluatedAnswer `json:"answers" bson:"answers"`
	Score       int               `json:"score" bson:"score"`
	SubmittedAt time.Time         `json:"submitted_at" bson:"submitted_at"`
}

// CorrectCount counts the graded answers marked correct.
func (r Response) CorrectCount() int {
	n := 0
	for _, a := range r.Answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// QuizDetails are the owner-editable descriptive fields of a quiz.
type QuizDetails struct {
	Name            string `json:"name"`
	Subject         string `json:"subject"`
	Topic           string `json:"topic"`
	DifficultyLevel int    `json:"difficulty_level"`
}

// Quiz is the aggregate root: question bank, lifecycle and response ledger.
type Quiz struct {
	ID              string     `json:"id" bson:"_id"`
	Name            string     `json:"name" bson:"name"`
	Subject         string     `json:"subject" bson:"subject"`
	Topic           string     `json:"topic" bson:"topic"`
	DifficultyLevel int        `json:"difficulty_level" bson:"difficulty_level"`
	NumQuestions    int        `json:"num_questions" bson:"num_questions"`
	Questions       []Question `json:"questions" bson:"questions"`
	Password        int        `json:"password" bson:"password"`
	CreatedBy       string     `json:"created_by" bson:"created_by"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	TriggerLink     string     `json:"trigger_link" bson:"trigger_link"`
	State           State      `json:"state" bson:"state"`
	StartTime       *time.Time `json:"start_time" bson:"start_time"`
	EndTime         *time.Time `json:"end_time" bson:"end_time"`
	ExecTime        *float64   `json:"exec_time" bson:"exec_time"` // seconds, two decimals
	TakenBy         []string   `json:"taken_by" bson:"taken_by"`
	UserResponses   []Response `json:"user_responses" bson:"user_responses"`
}

// IsStarted reports whether the quiz currently accepts submissions.
func (q Quiz) IsStarted() bool { return q.State == StateRunning }

// IsExecuted reports whether the quiz has concluded.
func (q Quiz) IsExecuted() bool { return q.State == StateEnded }

// HasParticipant reports whether name successfully started the quiz.
func (q Quiz) HasParticipant(name string) bool {
	for _, p := range q.TakenBy {
		if p == name {
			return true
		}
	}
	return false
}

// ResponseOf looks up the ledger entry for name.
func (q Quiz) ResponseOf(name string) (Response, bool) {
	for _, r := range q.UserResponses {
		if r.Name == name {
			return r, true
		}
	}
	return Response{}, false
}

// CheckOwner fails with ErrNotOwner unless owner created the quiz.
func (q Quiz) CheckOwner(owner string) error {
	if q.CreatedBy != owner {
		return ErrNotOwner
	}
	return nil
}

// CanStart validates a start (join) request against the current state.
func (q Quiz) CanStart(password int, participant string) error {
	if strings.TrimSpace(participant) == "" {
		return Validationf("participant name is required")
	}
	if q.Password != password {
		return ErrInvalidPassword
	}
	switch q.State {
	case StateCreated, StateRunning:
		return nil
	case StateEnded:
		return ErrAlreadyEnded
	default:
		return ErrInvalidState
	}
}

// Start moves CREATED to RUNNING and registers participant. On a running
// quiz it only registers participant; start_time is never re-stamped.
func (q *Quiz) Start(password int, participant string, now time.Time) error {
	if err := q.CanStart(password, participant); err != nil {
		return err
	}
	if q.State == StateCreated {
		q.State = StateRunning
		q.StartTime = &now
	}
	if !q.HasParticipant(participant) {
		q.TakenBy = append(q.TakenBy, participant)
	}
	return nil
}

// CanRecord validates a submission of answerCount answers by participant.
func (q Quiz) CanRecord(participant string, answerCount int) error {
	switch q.State {
	case StateRunning:
	case StateCreated:
		return ErrNotStarted
	case StateEnded:
		return ErrAlreadyEnded
	default:
		return ErrInvalidState
	}
	if !q.HasParticipant(participant) {
		return ErrNotRegistered
	}
	if answerCount != len(q.Questions) {
		return Validationf("number of answers (%d) does not match questions (%d)", answerCount, len(q.Questions))
	}
	if _, ok := q.ResponseOf(participant); ok {
		return ErrAlreadySubmitted
	}
	return nil
}

// Record appends resp to the ledger.
func (q *Quiz) Record(resp Response) error {
	if err := q.CanRecord(resp.Name, len(resp.Answers)); err != nil {
		return err
	}
	q.UserResponses = append(q.UserResponses, resp)
	return nil
}

// CanFinish validates an end request issued by participant.
func (q Quiz) CanFinish(participant string) error {
	switch q.State {
	case StateRunning:
	case StateCreated:
		return ErrNotStarted
	case StateEnded:
		return ErrAlreadyEnded
	default:
		return ErrInvalidState
	}
	if _, ok := q.ResponseOf(participant); !ok {
		return ErrNoResponse
	}
	return nil
}

// Finish ends the quiz for everyone and stamps end_time and exec_time.
func (q *Quiz) Finish(participant string, now time.Time) error {
	if err := q.CanFinish(participant); err != nil {
		return err
	}
	end, exec := q.FinishTimes(now)
	q.State = StateEnded
	q.EndTime = &end
	q.ExecTime = &exec
	return nil
}

// FinishTimes computes the end stamp and exec_time for an end at now,
// clamping end to start so end_time >= start_time always holds.
func (q Quiz) FinishTimes(now time.Time) (time.Time, float64) {
	if q.StartTime == nil {
		return now, 0
	}
	end := now
	if end.Before(*q.StartTime) {
		end = *q.StartTime
	}
	secs := end.Sub(*q.StartTime).Seconds()
	return end, math.Round(secs*100) / 100
}

// CanReplaceQuestion validates an owner's edit of the question at index.
func (q Quiz) CanReplaceQuestion(owner string, index int) error {
	if err := q.CheckOwner(owner); err != nil {
		return err
	}
	if index < 0 || index >= len(q.Questions) {
		return ErrQuestionNotFound
	}
	if q.State != StateCreated {
		return ErrQuestionsLocked
	}
	return nil
}

// ReplaceQuestion swaps the question at index.
func (q *Quiz) ReplaceQuestion(owner string, index int, question Question) error {
	if err := q.CanReplaceQuestion(owner, index); err != nil {
		return err
	}
	q.Questions[index] = question
	return nil
}

// ApplyDetails overwrites the descriptive fields.
func (q *Quiz) ApplyDetails(owner string, d QuizDetails) error {
	if err := q.CheckOwner(owner); err != nil {
		return err
	}
	q.Name = d.Name
	q.Subject = d.Subject
	q.Topic = d.Topic
	q.DifficultyLevel = d.DifficultyLevel
	return nil
}

// Clone returns a deep copy so stores never share slices with callers.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = append([]Question(nil), q.Questions...)
	out.TakenBy = append([]string(nil), q.TakenBy...)
	out.UserResponses = make([]Response, len(q.UserResponses))
	for i, r := range q.UserResponses {
		r.Answers = append([]EvaluatedAnswer(nil), r.Answers...)
		out.UserResponses[i] = r
	}
	if q.StartTime != nil {
		t := *q.StartTime
		out.StartTime = &t
	}
	if q.EndTime != nil {
		t := *q.EndTime
		out.EndTime = &t
	}
	if q.ExecTime != nil {
		e := *q.ExecTime
		out.ExecTime = &e
	}
	return out
}

// Parent is a quiz owner account.
type Parent struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// ScoreResult is returned by a successful submission.
type ScoreResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// QuestionOutcome is one entry of an end-of-quiz breakdown.
type QuestionOutcome struct {
	QuestionIndex int    `json:"question_index"`
	Question      string `json:"question"`
	YourAnswer    string `json:"your_answer"`
	CorrectAnswer string `json:"correct_answer"`
}

// ParticipantScore is a name and score pair.
type ParticipantScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// EndResult is the calling participant's breakdown plus everyone's scores.
type EndResult struct {
	UserScores           []ParticipantScore `json:"user_scores"`
	ExecTime             float64            `json:"exec_time"`
	Score                int                `json:"score"`
	NumberOfWrongAnswers int                `json:"number_of_wrong_answers"`
	RightQuestions       []QuestionOutcome  `json:"right_questions"`
	WrongQuestions       []QuestionOutcome  `json:"wrong_questions"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Name             string            `json:"name"`
	Score            int               `json:"score"`
	Percentage       int               `json:"percentage"`
	CorrectAnswers   int               `json:"correctAnswers"`
	IncorrectAnswers int               `json:"incorrectAnswers"`
	TimeTaken        string            `json:"timeTaken"`
	AttemptedAt      time.Time         `json:"attemptedAt"`
	Answers          []EvaluatedAnswer `json:"answers"`
}
