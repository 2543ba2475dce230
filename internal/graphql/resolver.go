package graphql

import (
	"context"
	"math"

	"github.com/pointboard/forum/internal/api/middleware/auth"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/database/service"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/internal/loader"
	"github.com/pointboard/forum/pkg/utils"
	"go.uber.org/zap"
)

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	db     database.Client
	logger *zap.Logger
}

// NewResolver creates a new root resolver.
func NewResolver(db database.Client, logger *zap.Logger) *Resolver {
	return &Resolver{
		db:     db,
		logger: logger,
	}
}

// requireUser returns the caller's user ID or the authentication error.
func requireUser(ctx context.Context) (int64, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return 0, errNotAuthenticated
	}
	return userID, nil
}

// Posts resolves the feed query.
func (r *Resolver) Posts(ctx context.Context, args struct {
	Limit  int32
	Cursor *string
}) (*paginatedPostsResolver, error) {
	var cursor string
	if args.Cursor != nil {
		cursor = *args.Cursor
	}

	var viewerID *int64
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		viewerID = &userID
	}

	page, err := r.db.Service().Feed().Posts(ctx, int(args.Limit), cursor, viewerID)
	if err != nil {
		return nil, r.clientError(ctx, "posts", err)
	}

	// Later lookups in this request reuse the page's statuses
	if statuses := loader.VoteStatusesFromContext(ctx); statuses != nil {
		postIDs := make([]int64, len(page.Posts))
		values := make(map[int64]bool, len(page.Posts))
		for i, post := range page.Posts {
			postIDs[i] = post.ID
			if post.VoteStatus != nil {
				values[post.ID] = *post.VoteStatus
			}
		}
		statuses.Prime(postIDs, values)
	}

	posts := make([]*postResolver, len(page.Posts))
	for i, post := range page.Posts {
		posts[i] = &postResolver{
			root:        r,
			post:        post.Post,
			voteStatus:  post.VoteStatus,
			voteLoaded:  viewerID != nil,
			textSnippet: post.TextSnippet,
		}
	}

	return &paginatedPostsResolver{posts: posts, hasMore: page.HasMore}, nil
}

// Post resolves a single post, or null when it does not exist.
func (r *Resolver) Post(ctx context.Context, args struct{ ID int32 }) (*postResolver, error) {
	post, err := r.db.Service().Feed().Post(ctx, int64(args.ID))
	if err != nil {
		return nil, r.clientError(ctx, "post", err)
	}
	if post == nil {
		return nil, nil
	}
	return newPostResolver(r, post), nil
}

// Me resolves the authenticated user, or null for anonymous callers.
func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, nil
	}

	user, err := r.db.Service().User().GetUser(ctx, userID)
	if err != nil {
		return nil, r.clientError(ctx, "me", err)
	}
	if user == nil {
		return nil, nil
	}
	return &userResolver{user: user}, nil
}

// PostInput is the payload of createPost.
type PostInput struct {
	Title string
	Text  string
}

// CreatePost creates a post owned by the caller.
func (r *Resolver) CreatePost(ctx context.Context, args struct{ Input PostInput }) (*postResolver, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	post, err := r.db.Service().Post().CreatePost(ctx, userID, args.Input.Title, args.Input.Text)
	if err != nil {
		return nil, r.clientError(ctx, "createPost", err)
	}
	return newPostResolver(r, post), nil
}

// UpdatePost updates a post owned by the caller.
func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID    int32
	Title *string
	Text  *string
}) (*postResolver, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	post, err := r.db.Service().Post().UpdatePost(ctx, int64(args.ID), userID, &types.PostUpdate{
		Title: args.Title,
		Text:  args.Text,
	})
	if err != nil {
		return nil, r.clientError(ctx, "updatePost", err)
	}
	if post == nil {
		return nil, nil
	}
	return newPostResolver(r, post), nil
}

// DeletePost deletes a post owned by the caller.
func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID int32 }) (bool, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return false, err
	}

	return r.db.Service().Post().DeletePost(ctx, int64(args.ID), userID), nil
}

// Vote sets, switches or retracts the caller's vote on a post.
func (r *Resolver) Vote(ctx context.Context, args struct {
	PostID int32
	Value  *bool
}) (bool, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return false, err
	}

	if err := r.db.Service().Vote().Vote(ctx, userID, int64(args.PostID), args.Value); err != nil {
		return false, r.clientError(ctx, "vote", err)
	}
	return true, nil
}

type paginatedPostsResolver struct {
	posts   []*postResolver
	hasMore bool
}

func (p *paginatedPostsResolver) Posts() []*postResolver {
	return p.posts
}

func (p *paginatedPostsResolver) HasMore() bool {
	return p.hasMore
}

// postResolver resolves Post fields. When voteLoaded is set, voteStatus is
// already known and no lookup is made.
type postResolver struct {
	root        *Resolver
	post        *types.Post
	voteStatus  *bool
	voteLoaded  bool
	textSnippet string
}

func newPostResolver(root *Resolver, post *types.Post) *postResolver {
	return &postResolver{
		root:        root,
		post:        post,
		textSnippet: utils.Snippet(post.Text, service.SnippetLength),
	}
}

func (p *postResolver) ID() int32 {
	return toInt32(p.post.ID)
}

func (p *postResolver) Title() string {
	return p.post.Title
}

func (p *postResolver) Text() string {
	return p.post.Text
}

func (p *postResolver) Points() int32 {
	return toInt32(int64(p.post.Points))
}

func (p *postResolver) CreatorID() int32 {
	return toInt32(p.post.CreatorID)
}

func (p *postResolver) CreatedAt() string {
	return types.EncodeCursor(p.post.CreatedAt)
}

func (p *postResolver) UpdatedAt() string {
	return types.EncodeCursor(p.post.UpdatedAt)
}

func (p *postResolver) TextSnippet() string {
	return p.textSnippet
}

func (p *postResolver) Creator(ctx context.Context) (*userResolver, error) {
	if p.post.Creator != nil {
		return &userResolver{user: p.post.Creator}, nil
	}

	user, err := p.root.db.Service().User().GetUser(ctx, p.post.CreatorID)
	if err != nil {
		return nil, p.root.clientError(ctx, "creator", err)
	}
	if user == nil {
		// Creators cascade with their posts, so this only happens mid-delete
		return nil, errInternal
	}

	p.post.Creator = user
	return &userResolver{user: user}, nil
}

func (p *postResolver) VoteStatus(ctx context.Context) (*bool, error) {
	if p.voteLoaded {
		return p.voteStatus, nil
	}

	statuses := loader.VoteStatusesFromContext(ctx)
	if statuses == nil {
		return nil, nil
	}

	value, found, err := statuses.Load(ctx, p.post.ID)
	if err != nil {
		return nil, p.root.clientError(ctx, "voteStatus", err)
	}
	if !found {
		return nil, nil
	}
	return &value, nil
}

type userResolver struct {
	user *types.User
}

func (u *userResolver) ID() int32 {
	return toInt32(u.user.ID)
}

func (u *userResolver) Username() string {
	return u.user.Username
}

// Email is only revealed to the user themself.
func (u *userResolver) Email(ctx context.Context) string {
	if userID, ok := auth.UserIDFromContext(ctx); ok && userID == u.user.ID {
		return u.user.Email
	}
	return ""
}

func (u *userResolver) CreatedAt() string {
	return types.EncodeCursor(u.user.CreatedAt)
}

func (u *userResolver) UpdatedAt() string {
	return types.EncodeCursor(u.user.UpdatedAt)
}

// toInt32 narrows a value to the GraphQL Int range. Out of range values map to -1.
func toInt32(v int64) int32 {
	if v > math.MaxInt32 || v < math.MinInt32 {
		return -1
	}
	return int32(v)
}
