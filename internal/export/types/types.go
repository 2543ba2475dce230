package types

// PostRecord is a post as it appears in an export. The author is replaced by
// a salted hash of their user ID.
type PostRecord struct {
	ID         int64
	AuthorHash string
	Title      string
	Text       string
	Points     int
	CreatedAt  int64 // Unix milliseconds
	UpdatedAt  int64 // Unix milliseconds
}

// VoteRecord is one ledger row with the voter replaced by a salted hash.
type VoteRecord struct {
	PostID    int64
	VoterHash string
	Value     bool
}
