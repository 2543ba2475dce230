package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for user records.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// CreateUser inserts a new user. Unique violations on username or email are
// returned as types.ErrUsernameTaken or types.ErrEmailTaken.
func (r *UserModel) CreateUser(ctx context.Context, user *types.User) error {
	now := types.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(user).
		Exec(ctx)
	if err != nil {
		switch uniqueViolationColumn(err) {
		case "username":
			return types.ErrUsernameTaken
		case "email":
			return types.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("Created user",
		zap.Int64("userID", user.ID),
		zap.String("username", user.Username))

	return nil
}

// GetUserByID retrieves a user by ID.
func (r *UserModel) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	var user types.User
	err := r.db.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w (userID=%d)", err, id)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (r *UserModel) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	var user types.User
	err := r.db.NewSelect().
		Model(&user).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w (username=%s)", err, username)
	}
	return &user, nil
}

// GetUserIDs returns the IDs of all users, oldest first.
func (r *UserModel) GetUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*types.User)(nil)).
		Column("id").
		Order("id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get user IDs: %w", err)
	}
	return ids, nil
}
