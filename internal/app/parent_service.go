package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

// minPasswordLength applies to parent account passwords only.
const minPasswordLength = 6

// ParentService registers and authenticates quiz owners.
type ParentService struct {
	parents ParentRepository
	hasher  SecretHasher
	tokens  TokenIssuer
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewParentService(parents ParentRepository, hasher SecretHasher, tokens TokenIssuer, log logrus.FieldLogger) *ParentService {
	return &ParentService{
		parents: parents,
		hasher:  hasher,
		tokens:  tokens,
		log:     log,
		now:     time.Now,
	}
}

// Register creates an account and returns an access token for it.
func (s *ParentService) Register(ctx context.Context, username, password, name string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", domain.Validationf("username is required")
	}
	if len(password) < minPasswordLength {
		return "", domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = username
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	parent := domain.Parent{
		ID:           uuid.NewString(),
		Name:         name,
		Username:     username,
		PasswordHash: digest,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.parents.InsertParent(ctx, parent); err != nil {
		return "", err
	}

	s.log.WithField("parent_id", parent.ID).Info("parent registered")
	return s.tokens.Issue(parent.ID)
}

// Login verifies credentials and returns a fresh access token.
func (s *ParentService) Login(ctx context.Context, username, password string) (string, error) {
	parent, err := s.parents.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if !s.hasher.Verify(password, parent.PasswordHash) {
		return "", domain.ErrInvalidPassword
	}
	return s.tokens.Issue(parent.ID)
}

// Authenticate resolves a bearer token to a parent id.
func (s *ParentService) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}
