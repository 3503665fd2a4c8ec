package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizzly-service/internal/domain"
)

// QuizStore keeps one document per quiz. Each mutation is a single filtered
// update whose filter encodes the transition's preconditions; when nothing
// matches, the document is re-read and the domain transition replayed on it
// to report why.
type QuizStore struct {
	col *mongo.Collection
}

func NewQuizStore(db *mongo.Database) *QuizStore {
	return &QuizStore{col: db.Collection("quizzes")}
}

// EnsureIndexes creates the owner listing index.
func (s *QuizStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (s *QuizStore) Insert(ctx context.Context, quiz domain.Quiz) error {
	if _, err := s.col.InsertOne(ctx, quiz); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := s.col.FindOne(ctx, bson.M{"_id": quizID}).Decode(&quiz); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("find quiz: %w", err)
	}
	return quiz, nil
}

func (s *QuizStore) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.Quiz, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, bson.M{"created_by": owner}, opts)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]domain.Quiz, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode quizzes: %w", err)
	}
	return out, nil
}

func (s *QuizStore) UpdateDetails(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	quiz, err := s.findAndUpdate(ctx,
		bson.M{"_id": quizID, "created_by": owner},
		bson.M{"$set": bson.M{
			"name":             details.Name,
			"subject":          details.Subject,
			"topic":            details.Topic,
			"difficulty_level": details.DifficultyLevel,
		}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Quiz{}, s.explain(ctx, quizID, func(q *domain.Quiz) error {
			return q.ApplyDetails(owner, details)
		})
	}
	return quiz, err
}

func (s *QuizStore) ReplaceQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	replay := func(q *domain.Quiz) error { return q.ReplaceQuestion(owner, index, question) }
	if index < 0 {
		return domain.Quiz{}, s.explain(ctx, quizID, replay)
	}
	field := "questions." + strconv.Itoa(index)
	quiz, err := s.findAndUpdate(ctx,
		bson.M{
			"_id":        quizID,
			"created_by": owner,
			"state":      domain.StateCreated,
			field:        bson.M{"$exists": true},
		},
		bson.M{"$set": bson.M{field: question}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Quiz{}, s.explain(ctx, quizID, replay)
	}
	return quiz, err
}

func (s *QuizStore) Delete(ctx context.Context, quizID, owner string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": quizID, "created_by": owner})
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if res.DeletedCount == 0 {
		return s.explain(ctx, quizID, func(q *domain.Quiz) error { return q.CheckOwner(owner) })
	}
	return nil
}

// Start first tries the CREATED to RUNNING transition, then the join of an
// already running quiz. start_time is only ever set by the first.
func (s *QuizStore) Start(ctx context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error) {
	if strings.TrimSpace(participant) == "" {
		return domain.Quiz{}, false, domain.Validationf("participant name is required")
	}

	quiz, err := s.findAndUpdate(ctx,
		bson.M{"_id": quizID, "password": password, "state": domain.StateCreated},
		bson.M{
			"$set":      bson.M{"state": domain.StateRunning, "start_time": now},
			"$addToSet": bson.M{"taken_by": participant},
		})
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return quiz, err == nil, err
	}

	quiz, err = s.findAndUpdate(ctx,
		bson.M{"_id": quizID, "password": password, "state": domain.StateRunning},
		bson.M{"$addToSet": bson.M{"taken_by": participant}})
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return quiz, false, err
	}

	return domain.Quiz{}, false, s.explain(ctx, quizID, func(q *domain.Quiz) error {
		return q.Start(password, participant, now)
	})
}

func (s *QuizStore) AppendResponse(ctx context.Context, quizID string, resp domain.Response) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{
			"_id":                 quizID,
			"state":               domain.StateRunning,
			"taken_by":            resp.Name,
			"user_responses.name": bson.M{"$ne": resp.Name},
			"questions":           bson.M{"$size": len(resp.Answers)},
		},
		bson.M{"$push": bson.M{"user_responses": resp}})
	if err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.explain(ctx, quizID, func(q *domain.Quiz) error { return q.Record(resp) })
	}
	return nil
}

// End needs start_time to compute exec_time, so it reads first and then
// writes conditionally on the quiz still running with the caller's response.
func (s *QuizStore) End(ctx context.Context, quizID, participant string, now time.Time) (domain.Quiz, error) {
	current, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := current.CanFinish(participant); err != nil {
		return domain.Quiz{}, err
	}
	end, exec := current.FinishTimes(now)

	quiz, err := s.findAndUpdate(ctx,
		bson.M{"_id": quizID, "state": domain.StateRunning, "user_responses.name": participant},
		bson.M{"$set": bson.M{"state": domain.StateEnded, "end_time": end, "exec_time": exec}})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Quiz{}, s.explain(ctx, quizID, func(q *domain.Quiz) error {
			return q.Finish(participant, now)
		})
	}
	return quiz, err
}

func (s *QuizStore) findAndUpdate(ctx context.Context, filter, update bson.M) (domain.Quiz, error) {
	var quiz domain.Quiz
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&quiz)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, nil
}

// explain re-reads the quiz after a conditional write matched nothing and
// replays the transition to find the failing precondition.
func (s *QuizStore) explain(ctx context.Context, quizID string, replay func(q *domain.Quiz) error) error {
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := replay(&quiz); err != nil {
		return err
	}
	return domain.ErrConcurrentUpdate
}
