package commands

import (
	"context"
	"errors"

	"github.com/pointboard/forum/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired     = errors.New("NAME argument required")
	ErrTokenRequired    = errors.New("TOKEN argument required")
	ErrNoUsers          = errors.New("no users to create posts for, run `forumctl user add` first")
	ErrInvalidSeedCount = errors.New("post count must be positive")
	ErrSeedWindowShort  = errors.New("seed window must allow at least one millisecond per post")
)

// SessionStore issues and revokes API session tokens.
type SessionStore interface {
	Create(ctx context.Context, userID int64) (string, error)
	Delete(ctx context.Context, token string) error
}

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
	// Sessions connects to the session store on first use.
	Sessions func() (SessionStore, error)
}
