package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzly-service/internal/domain"
)

// ParentStore persists parent accounts in the parents table.
type ParentStore struct {
	pool *pgxpool.Pool
}

func NewParentStore(pool *pgxpool.Pool) *ParentStore {
	return &ParentStore{pool: pool}
}

func (s *ParentStore) InsertParent(ctx context.Context, parent domain.Parent) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO parents (id, username, name, password_hash, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		parent.ID, parent.Username, parent.Name, parent.PasswordHash, parent.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert parent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUsernameTaken
	}
	return nil
}

func (s *ParentStore) FindByUsername(ctx context.Context, username string) (domain.Parent, error) {
	var p domain.Parent
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, name, password_hash, created_at FROM parents WHERE username=$1`, username).
		Scan(&p.ID, &p.Username, &p.Name, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Parent{}, domain.ErrParentNotFound
		}
		return domain.Parent{}, fmt.Errorf("find parent: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
