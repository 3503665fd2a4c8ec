package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizzly-service/internal/domain"
)

// ParentStore keeps parent accounts; username uniqueness is a unique index.
type ParentStore struct {
	col *mongo.Collection
}

func NewParentStore(db *mongo.Database) *ParentStore {
	return &ParentStore{col: db.Collection("parents")}
}

func (s *ParentStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *ParentStore) InsertParent(ctx context.Context, parent domain.Parent) error {
	if _, err := s.col.InsertOne(ctx, parent); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert parent: %w", err)
	}
	return nil
}

func (s *ParentStore) FindByUsername(ctx context.Context, username string) (domain.Parent, error) {
	var parent domain.Parent
	if err := s.col.FindOne(ctx, bson.M{"username": username}).Decode(&parent); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Parent{}, domain.ErrParentNotFound
		}
		return domain.Parent{}, fmt.Errorf("find parent: %w", err)
	}
	return parent, nil
}
