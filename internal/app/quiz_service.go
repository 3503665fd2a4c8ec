package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

// DefaultMaxQuestions caps num_questions when no limit is configured.
const DefaultMaxQuestions = 50

// listLimit bounds a single owner listing.
const listLimit = 100

// QuizServiceConfig carries the settings the quiz use cases need.
type QuizServiceConfig struct {
	FrontendURL  string
	MaxQuestions int
}

// CreateQuizInput is an owner's request for a new quiz.
type CreateQuizInput struct {
	Name            string
	Subject         string
	Topic           string
	NumQuestions    int
	DifficultyLevel int
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	quizzes   QuizRepository
	generator QuestionGenerator
	events    EventPublisher
	log       logrus.FieldLogger
	cfg       QuizServiceConfig

	now         func() time.Time
	newID       func() string
	newPassword func() (int, error)
}

func NewQuizService(quizzes QuizRepository, generator QuestionGenerator, events EventPublisher, log logrus.FieldLogger, cfg QuizServiceConfig) *QuizService {
	if events == nil {
		events = NopPublisher{}
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	return &QuizService{
		quizzes:     quizzes,
		generator:   generator,
		events:      events,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
		newID:       uuid.NewString,
		newPassword: randomPassword,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *QuizService) WithClock(now func() time.Time) *QuizService {
	s.now = now
	return s
}

// Create generates a question bank and persists a quiz in the created state.
// Nothing is stored when generation fails.
func (s *QuizService) Create(ctx context.Context, owner string, in CreateQuizInput) (domain.Quiz, error) {
	if err := s.validateCreate(in); err != nil {
		return domain.Quiz{}, err
	}

	questions, err := s.generator.Generate(ctx, in.Subject, in.Topic, in.NumQuestions, in.DifficultyLevel)
	if err != nil {
		if domain.KindOf(err) != "" {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, domain.Upstreamf("failed to generate questions: %v", err)
	}
	if len(questions) < in.NumQuestions {
		return domain.Quiz{}, domain.Upstreamf("failed to generate questions: got %d of %d", len(questions), in.NumQuestions)
	}
	questions = questions[:in.NumQuestions]
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return domain.Quiz{}, domain.Upstreamf("generated question %d is malformed: %v", i, err)
		}
	}

	password, err := s.newPassword()
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("generate password: %w", err)
	}

	id := s.newID()
	quiz := domain.Quiz{
		ID:              id,
		Name:            strings.TrimSpace(in.Name),
		Subject:         strings.TrimSpace(in.Subject),
		Topic:           strings.TrimSpace(in.Topic),
		DifficultyLevel: in.DifficultyLevel,
		NumQuestions:    in.NumQuestions,
		Questions:       questions,
		Password:        password,
		CreatedBy:       owner,
		CreatedAt:       s.stamp(),
		TriggerLink:     strings.TrimRight(s.cfg.FrontendURL, "/") + "/take-quiz/" + id,
		State:           domain.StateCreated,
		TakenBy:         []string{},
		UserResponses:   []domain.Response{},
	}
	if err := s.quizzes.Insert(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}

	s.log.WithFields(logrus.Fields{"quiz_id": id, "owner": owner, "questions": len(questions)}).Info("quiz created")
	s.publish(ctx, EventQuizCreated, QuizEvent{QuizID: id})
	return quiz, nil
}

func (s *QuizService) validateCreate(in CreateQuizInput) error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Topic) == "" {
		return domain.Validationf("name, subject and topic are required")
	}
	if in.NumQuestions <= 0 {
		return domain.Validationf("num_questions must be positive")
	}
	if in.NumQuestions > s.cfg.MaxQuestions {
		return domain.Validationf("num_questions must be at most %d", s.cfg.MaxQuestions)
	}
	return validateDifficulty(in.DifficultyLevel)
}

func validateDifficulty(level int) error {
	if level < domain.MinDifficulty || level > domain.MaxDifficulty {
		return domain.Validationf("difficulty_level must be between %d and %d", domain.MinDifficulty, domain.MaxDifficulty)
	}
	return nil
}

// Get loads a quiz by id.
func (s *QuizService) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// List returns the owner's quizzes, newest first.
func (s *QuizService) List(ctx context.Context, owner string) ([]domain.Quiz, error) {
	return s.quizzes.ListByOwner(ctx, owner, listLimit)
}

// Update overwrites the descriptive fields of an owned quiz.
func (s *QuizService) Update(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	details.Name = strings.TrimSpace(details.Name)
	details.Subject = strings.TrimSpace(details.Subject)
	details.Topic = strings.TrimSpace(details.Topic)
	if details.Name == "" || details.Subject == "" || details.Topic == "" {
		return domain.Quiz{}, domain.Validationf("name, subject and topic are required")
	}
	if err := validateDifficulty(details.DifficultyLevel); err != nil {
		return domain.Quiz{}, err
	}
	return s.quizzes.UpdateDetails(ctx, quizID, owner, details)
}

// Delete removes an owned quiz and its ledger.
func (s *QuizService) Delete(ctx context.Context, quizID, owner string) error {
	if err := s.quizzes.Delete(ctx, quizID, owner); err != nil {
		return err
	}
	s.log.WithField("quiz_id", quizID).Info("quiz deleted")
	s.publish(ctx, EventQuizDeleted, QuizEvent{QuizID: quizID})
	return nil
}

// EditQuestion replaces the question at index while the quiz is still created.
func (s *QuizService) EditQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	if err := question.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	return s.quizzes.ReplaceQuestion(ctx, quizID, owner, index, question)
}

// Start joins participant to the quiz, starting it on the first call. The
// boolean reports whether the quiz was already running before this call.
func (s *QuizService) Start(ctx context.Context, quizID string, password int, participant string) (domain.Quiz, bool, error) {
	participant = strings.TrimSpace(participant)
	now := s.stamp()
	quiz, started, err := s.quizzes.Start(ctx, quizID, password, participant, now)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "participant": participant}).Info("participant started quiz")
	s.publish(ctx, EventQuizStarted, QuizEvent{QuizID: quizID, Participant: participant})
	return quiz, !started, nil
}

// Submit grades answers and appends them to the ledger. The quiz stays running.
func (s *QuizService) Submit(ctx context.Context, quizID, participant string, answers []string) (domain.ScoreResult, error) {
	participant = strings.TrimSpace(participant)
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if err := quiz.CanRecord(participant, len(answers)); err != nil {
		return domain.ScoreResult{}, err
	}

	evaluated, score := Evaluate(quiz.Questions, answers)
	resp := domain.Response{
		Name:        participant,
		Answers:     evaluated,
		Score:       score,
		SubmittedAt: s.stamp(),
	}
	if err := s.quizzes.AppendResponse(ctx, quizID, resp); err != nil {
		return domain.ScoreResult{}, err
	}

	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "participant": participant, "score": score}).Info("answers submitted")
	s.publish(ctx, EventQuizSubmitted, QuizEvent{QuizID: quizID, Participant: participant, Score: &score})
	return domain.ScoreResult{Score: score, Total: len(quiz.Questions)}, nil
}

// End terminates the quiz for everyone and returns participant's breakdown.
func (s *QuizService) End(ctx context.Context, quizID, participant string) (domain.EndResult, error) {
	participant = strings.TrimSpace(participant)
	quiz, err := s.quizzes.End(ctx, quizID, participant, s.stamp())
	if err != nil {
		return domain.EndResult{}, err
	}
	resp, ok := quiz.ResponseOf(participant)
	if !ok {
		return domain.EndResult{}, domain.ErrNoResponse
	}

	right, wrong := Breakdown(quiz.Questions, resp)
	scores := make([]domain.ParticipantScore, 0, len(quiz.UserResponses))
	for _, r := range quiz.UserResponses {
		scores = append(scores, domain.ParticipantScore{Name: r.Name, Score: r.Score})
	}
	result := domain.EndResult{
		UserScores:           scores,
		Score:                resp.Score,
		NumberOfWrongAnswers: len(wrong),
		RightQuestions:       right,
		WrongQuestions:       wrong,
	}
	if quiz.ExecTime != nil {
		result.ExecTime = *quiz.ExecTime
	}

	s.log.WithFields(logrus.Fields{"quiz_id": quizID, "participant": participant}).Info("quiz ended")
	s.publish(ctx, EventQuizEnded, QuizEvent{QuizID: quizID, Participant: participant})
	return result, nil
}

// Leaderboard ranks the current ledger.
func (s *QuizService) Leaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return RankLeaderboard(quiz, s.now().UTC()), nil
}

func (s *QuizService) publish(ctx context.Context, eventType string, payload QuizEvent) {
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("publish event failed")
	}
}

// randomPassword draws a 4-digit PIN in [1000, 9999].
func randomPassword() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 1000, nil
}

// stamp is the current time at the millisecond precision every store keeps.
func (s *QuizService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
