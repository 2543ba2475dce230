package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pointboard/forum/internal/database/models"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/pkg/utils"
	"go.uber.org/zap"
)

const (
	// MaxPageSize caps the number of posts returned per feed page.
	MaxPageSize = 50
	// SnippetLength is the number of characters kept in a post's text snippet.
	SnippetLength = 50
)

// FeedService builds pages of the post feed.
type FeedService struct {
	posts  *models.PostModel
	votes  *models.UpvoteModel
	logger *zap.Logger
}

// NewFeed creates a new feed service.
func NewFeed(posts *models.PostModel, votes *models.UpvoteModel, logger *zap.Logger) *FeedService {
	return &FeedService{
		posts:  posts,
		votes:  votes,
		logger: logger.Named("feed_service"),
	}
}

// ClampLimit bounds a requested page size to [1, MaxPageSize]. A page that
// reports more posts always carries at least one.
func ClampLimit(limit int) int {
	return max(1, min(limit, MaxPageSize))
}

// Posts returns the page of posts created before cursor, newest first.
// An empty cursor starts from the newest post. When viewerID is set, each
// post carries the viewer's vote status from one batched ledger lookup.
func (s *FeedService) Posts(
	ctx context.Context, limit int, cursor string, viewerID *int64,
) (*types.PaginatedPosts, error) {
	limit = ClampLimit(limit)

	var before time.Time
	if cursor != "" {
		var err error
		before, err = types.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	// One extra row tells whether another page exists
	posts, err := s.posts.GetPostsBefore(ctx, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}

	var statuses map[int64]bool
	if viewerID != nil && len(posts) > 0 {
		postIDs := make([]int64, len(posts))
		for i, post := range posts {
			postIDs[i] = post.ID
		}

		statuses, err = s.votes.GetVoteStatuses(ctx, *viewerID, postIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to annotate feed: %w", err)
		}
	}

	page := &types.PaginatedPosts{
		Posts:   make([]*types.FeedPost, len(posts)),
		HasMore: hasMore,
	}
	for i, post := range posts {
		feedPost := &types.FeedPost{
			Post:        post,
			TextSnippet: utils.Snippet(post.Text, SnippetLength),
		}
		if value, ok := statuses[post.ID]; ok {
			feedPost.VoteStatus = &value
		}
		page.Posts[i] = feedPost
	}

	s.logger.Debug("Built feed page",
		zap.Int("limit", limit),
		zap.Int("count", len(posts)),
		zap.Bool("hasMore", hasMore))

	return page, nil
}

// Post returns a post with its creator, or nil when it does not exist.
func (s *FeedService) Post(ctx context.Context, id int64) (*types.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrPostNotFound) {
			return nil, nil //nolint:nilnil // missing post is a null result
		}
		return nil, err
	}
	return post, nil
}

// VoteStatuses returns the viewer's vote direction for the given posts.
func (s *FeedService) VoteStatuses(ctx context.Context, viewerID int64, postIDs []int64) (map[int64]bool, error) {
	return s.votes.GetVoteStatuses(ctx, viewerID, postIDs)
}
