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

// UpvoteModel handles database operations for the vote ledger.
type UpvoteModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUpvote creates a new upvote model.
func NewUpvote(db *bun.DB, logger *zap.Logger) *UpvoteModel {
	return &UpvoteModel{
		db:     db,
		logger: logger.Named("db_upvote"),
	}
}

// GetUpvoteWithTx retrieves a user's vote on a post. It returns nil when the
// user has not voted.
func (r *UpvoteModel) GetUpvoteWithTx(ctx context.Context, tx bun.IDB, userID, postID int64) (*types.Upvote, error) {
	var upvote types.Upvote
	err := tx.NewSelect().
		Model(&upvote).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil //nolint:nilnil // absence of a vote is not an error
		}
		return nil, fmt.Errorf("failed to get upvote: %w (userID=%d, postID=%d)", err, userID, postID)
	}
	return &upvote, nil
}

// InsertUpvoteWithTx records a new vote. A concurrent insert of the same vote
// yields types.ErrVoteConflict.
func (r *UpvoteModel) InsertUpvoteWithTx(ctx context.Context, tx bun.IDB, upvote *types.Upvote) error {
	_, err := tx.NewInsert().
		Model(upvote).
		Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return types.ErrVoteConflict
		}
		return fmt.Errorf("failed to insert upvote: %w (userID=%d, postID=%d)",
			err, upvote.UserID, upvote.PostID)
	}
	return nil
}

// FlipUpvoteWithTx changes a vote from old to !old. It fails with
// types.ErrVoteConflict when the stored value is no longer old.
func (r *UpvoteModel) FlipUpvoteWithTx(ctx context.Context, tx bun.IDB, userID, postID int64, old bool) error {
	result, err := tx.NewUpdate().
		Model((*types.Upvote)(nil)).
		Set("value = ?", !old).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Where("value = ?", old).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update upvote: %w (userID=%d, postID=%d)", err, userID, postID)
	}
	return expectOneRow(result)
}

// DeleteUpvoteWithTx removes a vote whose stored value is old. It fails with
// types.ErrVoteConflict when the row is gone or changed.
func (r *UpvoteModel) DeleteUpvoteWithTx(ctx context.Context, tx bun.IDB, userID, postID int64, old bool) error {
	result, err := tx.NewDelete().
		Model((*types.Upvote)(nil)).
		Where("user_id = ?", userID).
		Where("post_id = ?", postID).
		Where("value = ?", old).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete upvote: %w (userID=%d, postID=%d)", err, userID, postID)
	}
	return expectOneRow(result)
}

// GetVoteStatuses returns a user's vote direction for each of the given posts
// in one query. Posts without a vote are absent from the map.
func (r *UpvoteModel) GetVoteStatuses(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	statuses := make(map[int64]bool, len(postIDs))
	if len(postIDs) == 0 {
		return statuses, nil
	}

	var upvotes []types.Upvote
	err := r.db.NewSelect().
		Model(&upvotes).
		Where("user_id = ?", userID).
		Where("post_id IN (?)", bun.In(postIDs)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get vote statuses: %w (userID=%d, postCount=%d)",
			err, userID, len(postIDs))
	}

	for _, upvote := range upvotes {
		statuses[upvote.PostID] = upvote.Value
	}

	return statuses, nil
}

// GetPostUpvotes returns every vote on a post.
func (r *UpvoteModel) GetPostUpvotes(ctx context.Context, postID int64) ([]types.Upvote, error) {
	var upvotes []types.Upvote
	err := r.db.NewSelect().
		Model(&upvotes).
		Where("post_id = ?", postID).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get post upvotes: %w (postID=%d)", err, postID)
	}
	return upvotes, nil
}

// GetUpvotesAfter retrieves up to limit votes ordered by (post_id, user_id),
// starting after the given key. It is used to walk the ledger in batches.
func (r *UpvoteModel) GetUpvotesAfter(ctx context.Context, afterPostID, afterUserID int64, limit int) ([]types.Upvote, error) {
	upvotes := make([]types.Upvote, 0, limit)
	err := r.db.NewSelect().
		Model(&upvotes).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("post_id > ?", afterPostID).
				WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.Where("post_id = ?", afterPostID).Where("user_id > ?", afterUserID)
				})
		}).
		Order("post_id ASC", "user_id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get upvotes: %w (afterPostID=%d, afterUserID=%d)",
			err, afterPostID, afterUserID)
	}
	return upvotes, nil
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return types.ErrVoteConflict
	}
	return nil
}
