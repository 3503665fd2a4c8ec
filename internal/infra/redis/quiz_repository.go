package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"quizzly-service/internal/app"
	"quizzly-service/internal/domain"
)

// QuizRepository caches quiz documents in Redis and falls back to the backing
// store on a miss. Documents are stored as JSON under quiz:{id}:doc; every
// write through this repository deletes the document and bumps quiz:{id}:gen
// so a load racing with the write cannot put the old version back.
type QuizRepository struct {
	client *redis.Client
	store  app.QuizRepository
	ttl    time.Duration
	log    logrus.FieldLogger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuizRepository(client *redis.Client, store app.QuizRepository, ttl time.Duration, log logrus.FieldLogger) *QuizRepository {
	return &QuizRepository{
		client: client,
		store:  store,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		gen, err := r.client.Get(ctx, r.genKey(quizID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.log.WithError(err).WithField("quiz_id", quizID).Warn("read cache generation failed")
		}

		quiz, err := r.store.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		r.fill(ctx, quiz, gen)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz).Clone(), nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.docKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WithError(err).WithField("quiz_id", quizID).Warn("read cached quiz failed")
		}
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

// fill stores quiz only if no write bumped the generation since gen was read.
func (r *QuizRepository) fill(ctx context.Context, quiz domain.Quiz, gen string) {
	if r.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	genKey := r.genKey(quiz.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.docKey(quiz.ID), raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, genKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		r.log.WithError(err).WithField("quiz_id", quiz.ID).Warn("fill quiz cache failed")
	}
}

func (r *QuizRepository) Insert(ctx context.Context, quiz domain.Quiz) error {
	return r.store.Insert(ctx, quiz)
}

func (r *QuizRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.Quiz, error) {
	return r.store.ListByOwner(ctx, owner, limit)
}

func (r *QuizRepository) UpdateDetails(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	defer r.invalidate(ctx, quizID)
	return r.store.UpdateDetails(ctx, quizID, owner, details)
}

func (r *QuizRepository) ReplaceQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	defer r.invalidate(ctx, quizID)
	return r.store.ReplaceQuestion(ctx, quizID, owner, index, question)
}

func (r *QuizRepository) Delete(ctx context.Context, quizID, owner string) error {
	defer r.invalidate(ctx, quizID)
	return r.store.Delete(ctx, quizID, owner)
}

func (r *QuizRepository) Start(ctx context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error) {
	defer r.invalidate(ctx, quizID)
	return r.store.Start(ctx, quizID, password, participant, now)
}

func (r *QuizRepository) AppendResponse(ctx context.Context, quizID string, resp domain.Response) error {
	defer r.invalidate(ctx, quizID)
	return r.store.AppendResponse(ctx, quizID, resp)
}

func (r *QuizRepository) End(ctx context.Context, quizID, participant string, now time.Time) (domain.Quiz, error) {
	defer r.invalidate(ctx, quizID)
	return r.store.End(ctx, quizID, participant, now)
}

func (r *QuizRepository) invalidate(ctx context.Context, quizID string) {
	// Runs after the write even if the request context was cancelled mid-way.
	ctx = context.WithoutCancel(ctx)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.docKey(quizID))
	pipe.Incr(ctx, r.genKey(quizID))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.genKey(quizID), 2*r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.WithError(err).WithField("quiz_id", quizID).Warn("invalidate quiz cache failed")
	}
}

func (r *QuizRepository) docKey(quizID string) string {
	return "quiz:" + quizID + ":doc"
}

func (r *QuizRepository) genKey(quizID string) string {
	return "quiz:" + quizID + ":gen"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
