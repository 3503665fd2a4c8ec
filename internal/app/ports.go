package app

import (
	"context"
	"time"

	"quizzly-service/internal/domain"
)

// QuizRepository abstracts the quiz document store (in-memory, Mongo, Postgres).
// Every mutating method is a single conditional write; when its condition does
// not hold the store reports the precise domain error, never a partial update.
type QuizRepository interface {
	Insert(ctx context.Context, quiz domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListByOwner(ctx context.Context, owner string, limit int) ([]domain.Quiz, error)
	UpdateDetails(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error)
	ReplaceQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error)
	Delete(ctx context.Context, quizID, owner string) error
	// Start reports whether this call moved the quiz from created to running.
	Start(ctx context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error)
	AppendResponse(ctx context.Context, quizID string, resp domain.Response) error
	End(ctx context.Context, quizID, participant string, now time.Time) (domain.Quiz, error)
}

// ParentRepository stores parent accounts keyed by unique username.
type ParentRepository interface {
	InsertParent(ctx context.Context, parent domain.Parent) error
	FindByUsername(ctx context.Context, username string) (domain.Parent, error)
}

// QuestionGenerator produces a question bank for a new quiz.
type QuestionGenerator interface {
	Generate(ctx context.Context, subject, topic string, count, difficulty int) ([]domain.Question, error)
}

// GeneratorFunc adapts a function to QuestionGenerator.
type GeneratorFunc func(ctx context.Context, subject, topic string, count, difficulty int) ([]domain.Question, error)

func (f GeneratorFunc) Generate(ctx context.Context, subject, topic string, count, difficulty int) ([]domain.Question, error) {
	return f(ctx, subject, topic, count, difficulty)
}

// SecretHasher hashes and verifies account passwords.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// TokenIssuer turns an identity into a bearer credential and back.
type TokenIssuer interface {
	Issue(parentID string) (string, error)
	Verify(token string) (string, error)
}

// EventPublisher announces lifecycle transitions to other services.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Lifecycle event types.
const (
	EventQuizCreated   = "quiz.created"
	EventQuizStarted   = "quiz.started"
	EventQuizSubmitted = "quiz.submitted"
	EventQuizEnded     = "quiz.ended"
	EventQuizDeleted   = "quiz.deleted"
)

// QuizEvent is the payload of every lifecycle event.
type QuizEvent struct {
	QuizID      string `json:"quiz_id"`
	Participant string `json:"participant,omitempty"`
	Score       *int   `json:"score,omitempty"`
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
