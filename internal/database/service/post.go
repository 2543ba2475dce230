package service

import (
	"context"
	"fmt"

	"github.com/pointboard/forum/internal/database/models"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/pkg/utils"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	// MaxTitleLength is the maximum number of characters in a post title.
	MaxTitleLength = 300
	// MaxTextLength is the maximum number of characters in a post body.
	MaxTextLength = 40000
)

// PostService handles post creation and owner-restricted changes.
type PostService struct {
	db     *bun.DB
	model  *models.PostModel
	logger *zap.Logger
}

// NewPost creates a new post service.
func NewPost(db *bun.DB, model *models.PostModel, logger *zap.Logger) *PostService {
	return &PostService{
		db:     db,
		model:  model,
		logger: logger.Named("post_service"),
	}
}

// CreatePost creates a post owned by creatorID.
func (s *PostService) CreatePost(ctx context.Context, creatorID int64, title, text string) (*types.Post, error) {
	normalizer := utils.NewTextNormalizer()

	title, err := validateField("title", normalizer.NormalizeTitle(title), MaxTitleLength)
	if err != nil {
		return nil, err
	}
	text, err = validateField("text", normalizer.Normalize(text), MaxTextLength)
	if err != nil {
		return nil, err
	}

	post := &types.Post{
		Title:     title,
		Text:      text,
		CreatorID: creatorID,
	}
	if err := s.model.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Debug("Created post",
		zap.Int64("postID", post.ID),
		zap.Int64("creatorID", creatorID))

	return post, nil
}

// UpdatePost changes the title and/or text of a post owned by callerID.
// It returns nil when the post does not exist or is owned by someone else.
func (s *PostService) UpdatePost(
	ctx context.Context, id, callerID int64, update *types.PostUpdate,
) (*types.Post, error) {
	normalizer := utils.NewTextNormalizer()

	normalized := &types.PostUpdate{}
	if update.Title != nil {
		title, err := validateField("title", normalizer.NormalizeTitle(*update.Title), MaxTitleLength)
		if err != nil {
			return nil, err
		}
		normalized.Title = &title
	}
	if update.Text != nil {
		text, err := validateField("text", normalizer.Normalize(*update.Text), MaxTextLength)
		if err != nil {
			return nil, err
		}
		normalized.Text = &text
	}

	var post *types.Post
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err := s.model.UpdateOwnedPostWithTx(ctx, tx, id, callerID, normalized)
		if err != nil || !updated {
			return err
		}

		post, err = s.model.GetPostByIDWithTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	if post == nil {
		s.logger.Debug("Update matched no owned post",
			zap.Int64("postID", id),
			zap.Int64("callerID", callerID))
	}

	return post, nil
}

// DeletePost deletes a post owned by callerID along with its votes.
// It returns false when nothing was deleted, including on store failures.
func (s *PostService) DeletePost(ctx context.Context, id, callerID int64) bool {
	deleted, err := s.model.DeleteOwnedPost(ctx, id, callerID)
	if err != nil {
		s.logger.Error("Failed to delete post",
			zap.Error(err),
			zap.Int64("postID", id),
			zap.Int64("callerID", callerID))
		return false
	}

	if deleted {
		s.logger.Debug("Deleted post",
			zap.Int64("postID", id),
			zap.Int64("callerID", callerID))
	}

	return deleted
}

// validateField rejects empty or oversized values.
func validateField(name, value string, maxLength int) (string, error) {
	if value == "" {
		return "", fmt.Errorf("%w: %s must not be empty", types.ErrInvalidInput, name)
	}
	if len([]rune(value)) > maxLength {
		return "", fmt.Errorf("%w: %s must be at most %d characters", types.ErrInvalidInput, name, maxLength)
	}
	return value, nil
}

