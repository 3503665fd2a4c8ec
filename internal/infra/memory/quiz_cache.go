package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizzly-service/internal/app"
	"quizzly-service/internal/domain"
)

// CachedQuizRepository caches quiz reads with TTL to avoid repeated store hits.
// Mutations always go to the backing store and drop the cached copy, so a
// single instance never serves its own stale writes.
type CachedQuizRepository struct {
	store app.QuizRepository
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
	// loading holds one flag per quiz with a store read in flight; a write
	// sets it so the read does not repopulate the cache with the old document.
	// Entries live only as long as the read.
	loading map[string]bool
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewCachedQuizRepository(store app.QuizRepository, ttl time.Duration) *CachedQuizRepository {
	return &CachedQuizRepository{
		store: store,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedQuiz),
		loading: make(map[string]bool),
	}
}

func (r *CachedQuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz.Clone(), nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		// singleflight runs one load per id at a time, so a single flag suffices.
		r.mu.Lock()
		r.loading[quizID] = false
		r.mu.Unlock()

		quiz, err := r.store.GetQuiz(ctx, quizID)

		r.mu.Lock()
		defer r.mu.Unlock()
		stale := r.loading[quizID]
		delete(r.loading, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if !stale {
			r.cache[quizID] = cachedQuiz{
				quiz:      quiz,
				expiresAt: now.Add(r.ttlWithJitter()),
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

func (r *CachedQuizRepository) Insert(ctx context.Context, quiz domain.Quiz) error {
	return r.store.Insert(ctx, quiz)
}

func (r *CachedQuizRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.Quiz, error) {
	return r.store.ListByOwner(ctx, owner, limit)
}

func (r *CachedQuizRepository) UpdateDetails(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	defer r.invalidate(quizID)
	return r.store.UpdateDetails(ctx, quizID, owner, details)
}

func (r *CachedQuizRepository) ReplaceQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	defer r.invalidate(quizID)
	return r.store.ReplaceQuestion(ctx, quizID, owner, index, question)
}

func (r *CachedQuizRepository) Delete(ctx context.Context, quizID, owner string) error {
	defer r.invalidate(quizID)
	return r.store.Delete(ctx, quizID, owner)
}

func (r *CachedQuizRepository) Start(ctx context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error) {
	defer r.invalidate(quizID)
	return r.store.Start(ctx, quizID, password, participant, now)
}

func (r *CachedQuizRepository) AppendResponse(ctx context.Context, quizID string, resp domain.Response) error {
	defer r.invalidate(quizID)
	return r.store.AppendResponse(ctx, quizID, resp)
}

func (r *CachedQuizRepository) End(ctx context.Context, quizID, participant string, now time.Time) (domain.Quiz, error) {
	defer r.invalidate(quizID)
	return r.store.End(ctx, quizID, participant, now)
}

func (r *CachedQuizRepository) invalidate(quizID string) {
	r.mu.Lock()
	delete(r.cache, quizID)
	if _, ok := r.loading[quizID]; ok {
		r.loading[quizID] = true
	}
	r.mu.Unlock()
}

func (r *CachedQuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
