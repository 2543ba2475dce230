package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PostModel handles database operations for posts.
type PostModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPost creates a new post model.
func NewPost(db *bun.DB, logger *zap.Logger) *PostModel {
	return &PostModel{
		db:     db,
		logger: logger.Named("db_post"),
	}
}

// CreatePost inserts a post. Timestamps are set when they are zero.
func (r *PostModel) CreatePost(ctx context.Context, post *types.Post) error {
	now := types.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.CreatedAt
	}

	_, err := r.db.NewInsert().
		Model(post).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create post: %w (creatorID=%d)", err, post.CreatorID)
	}

	return nil
}

// GetPostByID retrieves a post and its creator.
func (r *PostModel) GetPostByID(ctx context.Context, id int64) (*types.Post, error) {
	return r.GetPostByIDWithTx(ctx, r.db, id)
}

// GetPostByIDWithTx retrieves a post and its creator using the provided transaction.
func (r *PostModel) GetPostByIDWithTx(ctx context.Context, tx bun.IDB, id int64) (*types.Post, error) {
	var post types.Post
	err := tx.NewSelect().
		Model(&post).
		Relation("Creator").
		Where("p.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w (postID=%d)", err, id)
	}
	return &post, nil
}

// GetPostsBefore retrieves up to limit posts created strictly before the given
// time, newest first. A zero time means no lower bound on recency.
func (r *PostModel) GetPostsBefore(ctx context.Context, before time.Time, limit int) ([]*types.Post, error) {
	posts := make([]*types.Post, 0, limit)
	query := r.db.NewSelect().
		Model(&posts).
		Relation("Creator").
		Order("p.created_at DESC").
		Limit(limit)

	if !before.IsZero() {
		query.Where("p.created_at < ?", before)
	}

	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get posts: %w (limit=%d)", err, limit)
	}

	return posts, nil
}

// GetPostsAfterID retrieves up to limit posts with an ID greater than afterID
// in ID order. It is used to walk the whole table in batches.
func (r *PostModel) GetPostsAfterID(ctx context.Context, afterID int64, limit int) ([]*types.Post, error) {
	posts := make([]*types.Post, 0, limit)
	err := r.db.NewSelect().
		Model(&posts).
		Where("p.id > ?", afterID).
		Order("p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get posts: %w (afterID=%d, limit=%d)", err, afterID, limit)
	}

	return posts, nil
}

// UpdateOwnedPostWithTx applies the non-nil fields of update to a post owned by
// creatorID. It returns false when no row matched.
func (r *PostModel) UpdateOwnedPostWithTx(
	ctx context.Context, tx bun.IDB, id, creatorID int64, update *types.PostUpdate,
) (bool, error) {
	query := tx.NewUpdate().
		Model((*types.Post)(nil)).
		Set("updated_at = ?", types.Now()).
		Where("id = ?", id).
		Where("creator_id = ?", creatorID) // Only allow updating own posts

	if update.Title != nil {
		query.Set("title = ?", *update.Title)
	}
	if update.Text != nil {
		query.Set("text = ?", *update.Text)
	}

	result, err := query.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update post: %w (postID=%d)", err, id)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// DeleteOwnedPost deletes a post owned by creatorID. Its upvotes cascade.
// It returns false when no row matched.
func (r *PostModel) DeleteOwnedPost(ctx context.Context, id, creatorID int64) (bool, error) {
	result, err := r.db.NewDelete().
		Model((*types.Post)(nil)).
		Where("id = ?", id).
		Where("creator_id = ?", creatorID). // Only allow deleting own posts
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w (postID=%d)", err, id)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// AddPointsWithTx atomically adds delta to a post's points.
// It returns false when the post does not exist.
func (r *PostModel) AddPointsWithTx(ctx context.Context, tx bun.IDB, id int64, delta int) (bool, error) {
	result, err := tx.NewUpdate().
		Model((*types.Post)(nil)).
		Set("points = points + ?", delta).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update points: %w (postID=%d, delta=%d)", err, id, delta)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// GetPoints returns the stored points of a post.
func (r *PostModel) GetPoints(ctx context.Context, id int64) (int, error) {
	var points int
	err := r.db.NewSelect().
		Model((*types.Post)(nil)).
		Column("points").
		Where("id = ?", id).
		Scan(ctx, &points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, types.ErrPostNotFound
		}
		return 0, fmt.Errorf("failed to get points: %w (postID=%d)", err, id)
	}
	return points, nil
}
