package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/token"
)

// UserStore is the part of the credential store the service reads.
type UserStore interface {
	GetUserByID(ctx context.Context, userID uint64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID uint64, at time.Time) error
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(userID uint64) (string, error)
	Verify(tokenString string) (uint64, error)
}

// Service provides authentication and authorization functionality.
type Service struct {
	users  UserStore
	tokens Tokens
	now    func() time.Time
}

// NewService creates a new auth service.
func NewService(users UserStore, tokens Tokens) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// LoginResult is a successful credential check.
type LoginResult struct {
	Token        string
	User         *models.User
	Capabilities Capabilities
}

// Login checks username and password and issues a token for an active account.
// Empty credentials are rejected before the store or the token service is used.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		return nil, err
	}

	if !user.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrUserAccountDisabled
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if errTouch := s.users.TouchLastLogin(ctx, user.ID, now); errTouch != nil {
		log.Warn().Err(errTouch).Uint64("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	return &LoginResult{
		Token:        tok,
		User:         user,
		Capabilities: ResolveUser(user),
	}, nil
}

// Authorize runs token verification, user lookup, the activity check and capability
// resolution for a bearer token. Any error it returns is a *Failure. An empty token is
// rejected without touching the store.
func (s *Service) Authorize(ctx context.Context, bearer string) (*Context, error) {
	if bearer == "" {
		return nil, newFailure(CodeNoToken, nil)
	}

	userID, err := s.tokens.Verify(bearer)

	switch {
	case errors.Is(err, token.ErrExpired):
		return nil, newFailure(CodeExpiredToken, err)
	case errors.Is(err, token.ErrMalformed):
		return nil, newFailure(CodeInvalidToken, err)
	case err != nil:
		return nil, newFailure(CodeInternalError, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, newFailure(CodeUserNotFound, err)
	}

	if err != nil {
		return nil, newFailure(CodeInternalError, err)
	}

	if !user.Active {
		return nil, newFailure(CodeUserInactive, ErrUserAccountDisabled)
	}

	return &Context{
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		Capabilities: ResolveUser(user),
		Active:       user.Active,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	tok = strings.TrimSpace(tok)

	return tok, tok != ""
}
