package loader

import "context"

// VoteStatusFunc fetches a viewer's vote directions for posts.
type VoteStatusFunc func(ctx context.Context, viewerID int64, postIDs []int64) (map[int64]bool, error)

// VoteStatuses loads one viewer's vote direction per post.
type VoteStatuses = Loader[int64, bool]

// NewVoteStatuses creates a vote status loader bound to viewerID.
func NewVoteStatuses(fetch VoteStatusFunc, viewerID int64) *VoteStatuses {
	return New(func(ctx context.Context, postIDs []int64) (map[int64]bool, error) {
		return fetch(ctx, viewerID, postIDs)
	})
}

type voteStatusesCtxKey struct{}

// WithVoteStatuses returns a context carrying the request's vote status loader.
func WithVoteStatuses(ctx context.Context, l *VoteStatuses) context.Context {
	return context.WithValue(ctx, voteStatusesCtxKey{}, l)
}

// VoteStatusesFromContext returns the request's vote status loader, or nil
// for anonymous requests.
func VoteStatusesFromContext(ctx context.Context) *VoteStatuses {
	l, _ := ctx.Value(voteStatusesCtxKey{}).(*VoteStatuses)
	return l
}
