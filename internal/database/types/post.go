package types

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Post is a forum post. Points is the denormalized sum of its upvotes.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"                  json:"id"`
	Title     string    `bun:",notnull"                             json:"title"`
	Text      string    `bun:",notnull"                             json:"text"`
	Points    int       `bun:",notnull,default:0"                   json:"points"`
	CreatorID int64     `bun:",notnull"                             json:"creatorId"`
	Creator   *User     `bun:"rel:belongs-to,join:creator_id=id"    json:"creator,omitempty"`
	CreatedAt time.Time `bun:",notnull"                             json:"createdAt"`
	UpdatedAt time.Time `bun:",notnull"                             json:"updatedAt"`
}

// PostUpdate holds the optional fields of an update. Nil fields are left as is.
type PostUpdate struct {
	Title *string
	Text  *string
}

// FeedPost is a post as it appears on a feed page.
type FeedPost struct {
	*Post

	TextSnippet string `json:"textSnippet"`
	// VoteStatus is the viewer's vote direction, nil when the viewer has not
	// voted or is anonymous.
	VoteStatus *bool `json:"voteStatus"`
}

// PaginatedPosts is one page of the feed.
type PaginatedPosts struct {
	Posts   []*FeedPost `json:"posts"`
	HasMore bool        `json:"hasMore"`
}

// Now returns the current time truncated to the precision used by feed cursors.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
