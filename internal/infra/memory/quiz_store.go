package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizzly-service/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizRepository. Every
// mutation runs the domain transition under the store lock, which gives the
// same per-document atomicity a document database provides.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[string]domain.Quiz)}
}

// NewQuizStoreWith seeds the store, useful for tests and demos.
func NewQuizStoreWith(quizzes ...domain.Quiz) *QuizStore {
	s := NewQuizStore()
	for _, q := range quizzes {
		s.quizzes[q.ID] = q.Clone()
	}
	return s
}

func (s *QuizStore) Insert(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.ErrConflict
	}
	s.quizzes[quiz.ID] = quiz.Clone()
	return nil
}

func (s *QuizStore) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz.Clone(), nil
}

func (s *QuizStore) ListByOwner(_ context.Context, owner string, limit int) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, q := range s.quizzes {
		if q.CreatedBy == owner {
			out = append(out, q.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *QuizStore) UpdateDetails(_ context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	return s.mutate(quizID, func(q *domain.Quiz) error {
		return q.ApplyDetails(owner, details)
	})
}

func (s *QuizStore) ReplaceQuestion(_ context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	return s.mutate(quizID, func(q *domain.Quiz) error {
		return q.ReplaceQuestion(owner, index, question)
	})
}

func (s *QuizStore) Delete(_ context.Context, quizID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if err := quiz.CheckOwner(owner); err != nil {
		return err
	}
	delete(s.quizzes, quizID)
	return nil
}

func (s *QuizStore) Start(_ context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error) {
	var started bool
	quiz, err := s.mutate(quizID, func(q *domain.Quiz) error {
		started = q.State == domain.StateCreated
		return q.Start(password, participant, now)
	})
	return quiz, started && err == nil, err
}

func (s *QuizStore) AppendResponse(_ context.Context, quizID string, resp domain.Response) error {
	_, err := s.mutate(quizID, func(q *domain.Quiz) error {
		return q.Record(resp)
	})
	return err
}

func (s *QuizStore) End(_ context.Context, quizID, participant string, now time.Time) (domain.Quiz, error) {
	return s.mutate(quizID, func(q *domain.Quiz) error {
		return q.Finish(participant, now)
	})
}

// mutate applies fn to a private copy and commits it only when fn succeeds.
func (s *QuizStore) mutate(quizID string, fn func(q *domain.Quiz) error) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	next := current.Clone()
	if err := fn(&next); err != nil {
		return domain.Quiz{}, err
	}
	s.quizzes[quizID] = next
	return next.Clone(), nil
}
