package services

import (
	"context"
	"errors"

	"github.com/clickrush/apiserver/internal/auth"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/clickrush/apiserver/types"
)

// AuthService issues token pairs for registered users.
type AuthService struct {
	users  *UserService
	tokens *auth.Issuer
}

func NewAuthService(users *UserService, tokens *auth.Issuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates the account and signs in as it.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (types.User, auth.TokenPair, error) {
	user, err := s.users.Register(ctx, email, username, password)
	if err != nil {
		return types.User{}, auth.TokenPair{}, err
	}
	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return types.User{}, auth.TokenPair{}, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.tokens.IssuePair(user.ID)
}

// Refresh exchanges a refresh token for a new pair. The subject must
// still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, err := s.tokens.Verify(refreshToken, auth.TokenRefresh)
	if err != nil {
		return auth.TokenPair{}, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.TokenPair{}, auth.ErrInvalidToken
		}
		return auth.TokenPair{}, err
	}
	return s.tokens.IssuePair(userID)
}
