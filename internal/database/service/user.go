package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pointboard/forum/internal/database/models"
	"github.com/pointboard/forum/internal/database/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a username and password do not match.
var ErrInvalidCredentials = errors.New("invalid username or password")

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// UserService handles account provisioning and lookups.
type UserService struct {
	model  *models.UserModel
	logger *zap.Logger
}

// NewUser creates a new user service.
func NewUser(model *models.UserModel, logger *zap.Logger) *UserService {
	return &UserService{
		model:  model,
		logger: logger.Named("user_service"),
	}
}

// CreateUser validates the account fields, hashes the password and stores the user.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string) (*types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	switch {
	case len(username) < minUsernameLength:
		return nil, fmt.Errorf("%w: username must be at least %d characters", types.ErrInvalidInput, minUsernameLength)
	case strings.Contains(username, "@"):
		return nil, fmt.Errorf("%w: username cannot include an @", types.ErrInvalidInput)
	case len(password) < minPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", types.ErrInvalidInput, minPasswordLength)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", types.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}
	if err := s.model.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Created user",
		zap.Int64("userID", user.ID),
		zap.String("username", user.Username))

	return user, nil
}

// GetUser returns a user by ID, or nil when it does not exist.
func (s *UserService) GetUser(ctx context.Context, id int64) (*types.User, error) {
	user, err := s.model.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, nil //nolint:nilnil // missing user is a null result
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*types.User, error) {
	user, err := s.model.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUserIDs returns the IDs of all users.
func (s *UserService) GetUserIDs(ctx context.Context) ([]int64, error) {
	return s.model.GetUserIDs(ctx)
}
