package types

import (
	"errors"

	"github.com/uptrace/bun"
)

// ErrVoteConflict is returned when the ledger row changed between the read and
// the write of a vote.
var ErrVoteConflict = errors.New("vote conflicted with a concurrent vote")

// Upvote is one user's current vote on one post. A missing row means no vote.
type Upvote struct {
	bun.BaseModel `bun:"table:upvotes,alias:uv"`

	UserID int64 `bun:",pk"      json:"userId"`
	PostID int64 `bun:",pk"      json:"postId"`
	Value  bool  `bun:",notnull" json:"value"`
}

// Delta returns the contribution of a vote direction to a post's points.
func Delta(value bool) int {
	if value {
		return 1
	}
	return -1
}
