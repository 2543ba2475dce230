package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
)

// keyPrefix namespaces session keys in the session database.
const keyPrefix = "sess:"

// Store issues and resolves session tokens backed by Redis.
// Reading a session extends its expiry.
type Store struct {
	client rueidis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a new session store.
func NewStore(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		logger: logger.Named("session_store"),
	}
}

// TTL returns the lifetime given to new and refreshed sessions.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Create issues a new session token for the user.
func (s *Store) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()

	payload, err := sonic.Marshal(&types.Session{
		UserID:    userID,
		CreatedAt: types.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}

	cmd := s.client.B().Set().Key(keyPrefix + token).Value(rueidis.BinaryString(payload)).Nx().Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Debug("Session created", zap.Int64("userID", userID))
	return token, nil
}

// Get resolves a token to its session. Malformed tokens are rejected without
// a round trip.
func (s *Store) Get(ctx context.Context, token string) (*types.Session, error) {
	if !validToken(token) {
		return nil, ErrInvalidToken
	}

	cmd := s.client.B().Getex().Key(keyPrefix + token).Ex(s.ttl).Build()
	payload, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess types.Session
	if err := sonic.Unmarshal(payload, &sess); err != nil {
		s.logger.Warn("Discarding unreadable session", zap.Error(err))
		return nil, ErrSessionNotFound
	}

	return &sess, nil
}

// Delete revokes a token. Unknown tokens are not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if !validToken(token) {
		return ErrInvalidToken
	}

	cmd := s.client.B().Del().Key(keyPrefix + token).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func validToken(token string) bool {
	if len(token) != 36 {
		return false
	}
	_, err := uuid.Parse(token)
	return err == nil
}
