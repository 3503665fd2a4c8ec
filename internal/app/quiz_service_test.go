package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"quizzly-service/internal/app"
	"quizzly-service/internal/domain"
	"quizzly-service/internal/infra/memory"
)

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, events := newTestService(clock, twoQuestions())

	quiz, err := service.Create(ctx, "owner-1", validInput(2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if quiz.State != domain.StateCreated || len(quiz.Questions) != 2 {
		t.Fatalf("unexpected created quiz %+v", quiz)
	}
	if quiz.Password < 1000 || quiz.Password > 9999 {
		t.Fatalf("password out of range: %d", quiz.Password)
	}
	if quiz.TriggerLink != "https://quiz.example/take-quiz/"+quiz.ID {
		t.Fatalf("unexpected trigger link %s", quiz.TriggerLink)
	}

	if _, _, err := service.Start(ctx, quiz.ID, quiz.Password, "Al"); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.advance(65 * time.Second)
	result, err := service.Submit(ctx, quiz.ID, "Al", []string{"A", "C"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 1 || result.Total != 2 {
		t.Fatalf("expected 1/2, got %+v", result)
	}

	stored, _ := service.Get(ctx, quiz.ID)
	resp, ok := stored.ResponseOf("Al")
	if !ok || !resp.Answers[0].IsCorrect || resp.Answers[1].IsCorrect {
		t.Fatalf("unexpected evaluated answers %+v", resp.Answers)
	}
	if stored.State != domain.StateRunning {
		t.Fatalf("submit must not change state, got %s", stored.State)
	}

	end, err := service.End(ctx, quiz.ID, "Al")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(end.RightQuestions) != 1 || end.RightQuestions[0].QuestionIndex != 0 {
		t.Fatalf("unexpected right questions %+v", end.RightQuestions)
	}
	if len(end.WrongQuestions) != 1 || end.WrongQuestions[0].QuestionIndex != 1 || end.WrongQuestions[0].CorrectAnswer != "B" {
		t.Fatalf("unexpected wrong questions %+v", end.WrongQuestions)
	}
	if end.Score != 1 || end.NumberOfWrongAnswers != 1 || end.ExecTime != 65 {
		t.Fatalf("unexpected end result %+v", end)
	}
	if len(end.UserScores) != 1 || end.UserScores[0].Name != "Al" {
		t.Fatalf("unexpected user scores %+v", end.UserScores)
	}

	wantEvents := []string{app.EventQuizCreated, app.EventQuizStarted, app.EventQuizSubmitted, app.EventQuizEnded}
	if got := events.types(); !equalStrings(got, wantEvents) {
		t.Fatalf("expected events %v, got %v", wantEvents, got)
	}
}

func TestStartIsIdempotentAndJoins(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _ := newTestService(clock, twoQuestions())
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))

	first, alreadyRunning, err := service.Start(ctx, quiz.ID, quiz.Password, "Al")
	if err != nil || alreadyRunning {
		t.Fatalf("first start: running=%v err=%v", alreadyRunning, err)
	}
	clock.advance(time.Minute)
	second, alreadyRunning, err := service.Start(ctx, quiz.ID, quiz.Password, "Bo")
	if err != nil || !alreadyRunning {
		t.Fatalf("second start: running=%v err=%v", alreadyRunning, err)
	}
	if !second.StartTime.Equal(*first.StartTime) {
		t.Fatalf("start_time re-stamped: %v vs %v", second.StartTime, first.StartTime)
	}
	if !second.HasParticipant("Al") || !second.HasParticipant("Bo") {
		t.Fatalf("expected both participants, got %v", second.TakenBy)
	}

	if _, _, err := service.Start(ctx, quiz.ID, quiz.Password+1, "Cy"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, _, err := service.Start(ctx, "missing", quiz.Password, "Cy"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitGuards(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(newFakeClock(), twoQuestions())
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))

	if _, err := service.Submit(ctx, quiz.ID, "Al", []string{"A", "B"}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before start, got %v", err)
	}
	stored, _ := service.Get(ctx, quiz.ID)
	if len(stored.UserResponses) != 0 {
		t.Fatalf("response created before start")
	}

	_, _, _ = service.Start(ctx, quiz.ID, quiz.Password, "Al")
	if _, err := service.Submit(ctx, quiz.ID, "Bo", []string{"A", "B"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := service.Submit(ctx, quiz.ID, "Al", []string{"A"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := service.Submit(ctx, quiz.ID, "Al", []string{"A", "B"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Submit(ctx, quiz.ID, "Al", []string{"B", "B"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ = service.Get(ctx, quiz.ID)
	if len(stored.UserResponses) != 1 || stored.UserResponses[0].Score != 2 {
		t.Fatalf("ledger changed by duplicate: %+v", stored.UserResponses)
	}
	if _, err := service.Submit(ctx, "missing", "Al", []string{"A", "B"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentDuplicateSubmitThroughCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCachedQuizRepository(memory.NewQuizStore(), time.Minute)
	service := app.NewQuizService(store, staticGenerator(twoQuestions()), nil, nullLogger(), app.QuizServiceConfig{})
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))
	_, _, _ = service.Start(ctx, quiz.ID, quiz.Password, "Al")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Submit(ctx, quiz.ID, "Al", []string{"A", "B"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
		} else if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", success)
	}
}

func TestEndGuards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	service, _ := newTestService(clock, twoQuestions())
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))

	if _, err := service.End(ctx, quiz.ID, "Al"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state before start, got %v", err)
	}
	_, _, _ = service.Start(ctx, quiz.ID, quiz.Password, "Al")
	if _, err := service.End(ctx, quiz.ID, "Al"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error without response, got %v", err)
	}
	_, _ = service.Submit(ctx, quiz.ID, "Al", []string{"A", "B"})
	if _, err := service.End(ctx, quiz.ID, "Al"); err != nil {
		t.Fatalf("end: %v", err)
	}
	ended, _ := service.Get(ctx, quiz.ID)

	clock.advance(time.Hour)
	if _, err := service.End(ctx, quiz.ID, "Al"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second end, got %v", err)
	}
	again, _ := service.Get(ctx, quiz.ID)
	if !again.EndTime.Equal(*ended.EndTime) {
		t.Fatalf("end_time altered by rejected end")
	}
	if _, _, err := service.Start(ctx, quiz.ID, quiz.Password, "Bo"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected start on ended quiz to fail, got %v", err)
	}
	if _, err := service.Submit(ctx, quiz.ID, "Al", []string{"A", "B"}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected submit on ended quiz to fail, got %v", err)
	}
}

func TestCreateValidationAndGenerationFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStore()

	service := app.NewQuizService(store, staticGenerator(twoQuestions()), nil, nullLogger(), app.QuizServiceConfig{MaxQuestions: 5})
	if _, err := service.Create(ctx, "owner-1", validInput(0)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero questions, got %v", err)
	}
	if _, err := service.Create(ctx, "owner-1", validInput(6)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error above max, got %v", err)
	}
	bad := validInput(1)
	bad.DifficultyLevel = 11
	if _, err := service.Create(ctx, "owner-1", bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for difficulty, got %v", err)
	}

	empty := app.NewQuizService(store, staticGenerator(nil), nil, nullLogger(), app.QuizServiceConfig{})
	if _, err := empty.Create(ctx, "owner-1", validInput(2)); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}

	malformed := twoQuestions()
	malformed[1].Answer = "E"
	broken := app.NewQuizService(store, staticGenerator(malformed), nil, nullLogger(), app.QuizServiceConfig{})
	if _, err := broken.Create(ctx, "owner-1", validInput(2)); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure for malformed question, got %v", err)
	}

	failing := app.NewQuizService(store, app.GeneratorFunc(func(context.Context, string, string, int, int) ([]domain.Question, error) {
		return nil, errors.New("connection refused")
	}), nil, nullLogger(), app.QuizServiceConfig{})
	if _, err := failing.Create(ctx, "owner-1", validInput(2)); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected upstream failure for transport error, got %v", err)
	}

	if list, _ := store.ListByOwner(ctx, "owner-1", 10); len(list) != 0 {
		t.Fatalf("failed creations persisted %d quizzes", len(list))
	}
}

func TestCreateTruncatesExtraQuestions(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(newFakeClock(), twoQuestions())
	quiz, err := service.Create(ctx, "owner-1", validInput(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.NumQuestions != 1 {
		t.Fatalf("expected 1 question, got %d", len(quiz.Questions))
	}
}

func TestOwnerOperations(t *testing.T) {
	ctx := context.Background()
	service, events := newTestService(newFakeClock(), twoQuestions())
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))

	details := domain.QuizDetails{Name: "Renamed", Subject: "Math", Topic: "Sums", DifficultyLevel: 4}
	if _, err := service.Update(ctx, quiz.ID, "owner-2", details); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	updated, err := service.Update(ctx, quiz.ID, "owner-1", details)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.DifficultyLevel != 4 || len(updated.Questions) != 2 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	replacement := domain.Question{Question: "New?", ChoiceA: "a", ChoiceB: "b", ChoiceC: "c", ChoiceD: "d", Answer: "C"}
	if _, err := service.EditQuestion(ctx, quiz.ID, "owner-1", 2, replacement); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for index, got %v", err)
	}
	bad := replacement
	bad.Answer = "c"
	if _, err := service.EditQuestion(ctx, quiz.ID, "owner-1", 0, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	edited, err := service.EditQuestion(ctx, quiz.ID, "owner-1", 1, replacement)
	if err != nil {
		t.Fatalf("edit question: %v", err)
	}
	if edited.Questions[1].Question != "New?" {
		t.Fatalf("question not replaced")
	}

	_, _, _ = service.Start(ctx, quiz.ID, quiz.Password, "Al")
	if _, err := service.EditQuestion(ctx, quiz.ID, "owner-1", 1, replacement); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after start, got %v", err)
	}

	list, err := service.List(ctx, "owner-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}

	if err := service.Delete(ctx, quiz.ID, "owner-2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := service.Delete(ctx, quiz.ID, "owner-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := service.Get(ctx, quiz.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if got := events.types(); got[len(got)-1] != app.EventQuizDeleted {
		t.Fatalf("expected delete event last, got %v", got)
	}
}

func TestLeaderboardFromService(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(newFakeClock(), twoQuestions())
	quiz, _ := service.Create(ctx, "owner-1", validInput(2))
	for _, name := range []string{"A", "B"} {
		_, _, _ = service.Start(ctx, quiz.ID, quiz.Password, name)
	}
	_, _ = service.Submit(ctx, quiz.ID, "A", []string{"A", "C"})
	_, _ = service.Submit(ctx, quiz.ID, "B", []string{"A", "B"})

	board, err := service.Leaderboard(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].Name != "B" || board[0].Percentage != 100 || board[1].Percentage != 50 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
	if board[0].TimeTaken != "N/A" {
		t.Fatalf("expected N/A before end, got %s", board[0].TimeTaken)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	service := app.NewQuizService(memory.NewQuizStore(), staticGenerator(twoQuestions()), failingPublisher{}, nullLogger(), app.QuizServiceConfig{})
	if _, err := service.Create(ctx, "owner-1", validInput(2)); err != nil {
		t.Fatalf("create should ignore publish failures: %v", err)
	}
}

func newTestService(clock *fakeClock, questions []domain.Question) (*app.QuizService, *recordingPublisher) {
	events := &recordingPublisher{}
	service := app.NewQuizService(
		memory.NewQuizStore(),
		staticGenerator(questions),
		events,
		nullLogger(),
		app.QuizServiceConfig{FrontendURL: "https://quiz.example/"},
	).WithClock(clock.now)
	return service, events
}

func validInput(n int) app.CreateQuizInput {
	return app.CreateQuizInput{Name: "Arithmetic", Subject: "Math", Topic: "Addition", NumQuestions: n, DifficultyLevel: 3}
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{Question: "1 + 1?", ChoiceA: "2", ChoiceB: "3", ChoiceC: "4", ChoiceD: "5", Answer: "A"},
		{Question: "1 + 2?", ChoiceA: "2", ChoiceB: "3", ChoiceC: "4", ChoiceD: "5", Answer: "B"},
	}
}

func staticGenerator(questions []domain.Question) app.GeneratorFunc {
	return func(_ context.Context, _, _ string, _, _ int) ([]domain.Question, error) {
		return append([]domain.Question(nil), questions...), nil
	}
}

func nullLogger() *logrus.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) error {
	return errors.New("broker down")
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
