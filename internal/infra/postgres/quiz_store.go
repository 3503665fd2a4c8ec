package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzly-service/internal/domain"
)

// QuizStore keeps each quiz as a JSONB document. Mutations lock the row with
// SELECT ... FOR UPDATE, apply the domain transition and write the document
// back inside one transaction.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Insert(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, created_by, created_at, data) VALUES ($1, $2, $3, $4::jsonb) ON CONFLICT (id) DO NOTHING`,
		quiz.ID, quiz.CreatedBy, quiz.CreatedAt, string(raw))
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return scanQuiz(s.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID))
}

func (s *QuizStore) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM quizzes WHERE created_by=$1 ORDER BY created_at DESC, id LIMIT $2`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Quiz, 0)
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

func (s *QuizStore) UpdateDetails(ctx context.Context, quizID, owner string, details domain.QuizDetails) (domain.Quiz, error) {
	return s.mutate(ctx, quizID, func(q *domain.Quiz) error {
		return q.ApplyDetails(owner, details)
	})
}

func (s *QuizStore) ReplaceQuestion(ctx context.Context, quizID, owner string, index int, question domain.Question) (domain.Quiz, error) {
	return s.mutate(ctx, quizID, func(q *domain.Quiz) error {
		return q.ReplaceQuestion(owner, index, question)
	})
}

func (s *QuizStore) Delete(ctx context.Context, quizID, owner string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		quiz, err := lockQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if err := quiz.CheckOwner(owner); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, quizID); err != nil {
			return fmt.Errorf("delete quiz: %w", err)
		}
		return nil
	})
}

func (s *QuizStore) Start(ctx context.Context, quizID string, password int, participant string, now time.Time) (domain.Quiz, bool, error) {
	var started bool
	quiz, err := s.mutate(ctx, quizID, func(q *domain.Quiz) error {
		started = q.State == domain.StateCreated
		return q.Start(password, participant, now)
	})
	return quiz, started && err == nil, err
}

func (s *QuizStore) AppendResponse(ctx context.Context, quizID string, resp domain.Response) error {
	_, err := s.mutate(ctx, quizID, func(q *domain.Quiz) error {
		return q.Record(resp)
	})
	return err
}

func (s *QuizStore) End(ctx context.Context, quizID, participant string, now time.Time) (domain.Quiz, error) {
	return s.mutate(ctx, quizID, func(q *domain.Quiz) error {
		return q.Finish(participant, now)
	})
}

// mutate locks the row, applies fn and writes the result back; nothing is
// written when fn fails.
func (s *QuizStore) mutate(ctx context.Context, quizID string, fn func(q *domain.Quiz) error) (domain.Quiz, error) {
	var out domain.Quiz
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		quiz, err := lockQuiz(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if err := fn(&quiz); err != nil {
			return err
		}
		raw, err := json.Marshal(quiz)
		if err != nil {
			return fmt.Errorf("marshal quiz: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE quizzes SET data=$2::jsonb WHERE id=$1`, quizID, string(raw)); err != nil {
			return fmt.Errorf("update quiz: %w", err)
		}
		out = quiz
		return nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return out, nil
}

func (s *QuizStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func lockQuiz(ctx context.Context, tx pgx.Tx, quizID string) (domain.Quiz, error) {
	return scanQuiz(tx.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1 FOR UPDATE`, quizID))
}

func scanQuiz(row pgx.Row) (domain.Quiz, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	return quiz, nil
}
