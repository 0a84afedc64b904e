package services

import (
	"context"
	"errors"
	"strings"

	"github.com/clickrush/apiserver/internal/auth"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/clickrush/apiserver/types"
	"github.com/google/uuid"
)

const (
	DefaultUserPageSize = 50
	MaxUserPageSize     = 100
)

var (
	ErrInvalidPage        = errors.New("limit must be between 1 and 100 and offset must be non-negative")
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.User, error)
	List(ctx context.Context, limit, offset int) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates an account after checking email and username are free.
func (s *UserService) Register(ctx context.Context, email, username, password string) (types.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return types.User{}, ErrMissingFields
	}

	if err := s.ensureAvailable(ctx, uuid.Nil, email, username); err != nil {
		return types.User{}, err
	}

	digest, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, err
	}

	return s.repo.Create(ctx, types.User{
		Email:        email,
		Username:     username,
		PasswordHash: digest,
	})
}

// Authenticate returns the user owning email if password matches.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	if len(password) > auth.MaxPasswordBytes {
		return types.User{}, auth.ErrPasswordTooLong
	}
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) ListByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.User, error) {
	return s.repo.ListByIDs(ctx, ids)
}

// List pages through users in registration order. A zero limit means
// DefaultUserPageSize.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]types.User, error) {
	if limit == 0 {
		limit = DefaultUserPageSize
	}
	if limit < 1 || limit > MaxUserPageSize || offset < 0 {
		return nil, ErrInvalidPage
	}
	return s.repo.List(ctx, limit, offset)
}

// UpdateProfile changes email and username, and the password when one is given.
func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, email, username, password string) (types.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if email == "" || username == "" {
		return types.User{}, ErrMissingFields
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.ensureAvailable(ctx, id, email, username); err != nil {
		return types.User{}, err
	}

	user.Email = email
	user.Username = username
	if password != "" {
		digest, err := auth.HashPassword(password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = digest
	}
	return s.repo.Update(ctx, user)
}

func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ensureAvailable rejects an email or username held by a user other than self.
func (s *UserService) ensureAvailable(ctx context.Context, self uuid.UUID, email, username string) error {
	if existing, err := s.repo.GetByEmail(ctx, email); err == nil {
		if existing.ID != self {
			return store.ErrEmailTaken
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if existing, err := s.repo.GetByUsername(ctx, username); err == nil {
		if existing.ID != self {
			return store.ErrUsernameTaken
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
