package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pointboard/forum/internal/database/models"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// VoteService applies votes to the ledger and keeps post points in sync.
type VoteService struct {
	db     *bun.DB
	posts  *models.PostModel
	votes  *models.UpvoteModel
	logger *zap.Logger
}

// NewVote creates a new vote service.
func NewVote(db *bun.DB, posts *models.PostModel, votes *models.UpvoteModel, logger *zap.Logger) *VoteService {
	return &VoteService{
		db:     db,
		posts:  posts,
		votes:  votes,
		logger: logger.Named("vote_service"),
	}
}

// voteTransition is the ledger change implied by a requested vote.
type voteTransition int

const (
	transitionNone voteTransition = iota
	transitionInsert
	transitionFlip
	transitionRetract
)

// classifyVote returns the ledger change and points delta for moving from the
// stored vote to the requested one. A repeated vote in the same direction is a
// no-op, not a toggle.
func classifyVote(existing *types.Upvote, requested *bool) (voteTransition, int) {
	switch {
	case existing == nil && requested == nil:
		return transitionNone, 0
	case existing == nil:
		return transitionInsert, types.Delta(*requested)
	case requested == nil:
		return transitionRetract, -types.Delta(existing.Value)
	case existing.Value == *requested:
		return transitionNone, 0
	default:
		return transitionFlip, 2 * types.Delta(*requested)
	}
}

// Vote sets userID's vote on postID to value. A nil value retracts the vote.
//
// The ledger write and the points update happen in one transaction. Voting on a
// post that does not exist succeeds without writing anything. If another vote
// by the same user on the same post changes the ledger between the read and the
// write, the transaction is rolled back and types.ErrVoteConflict is returned.
func (s *VoteService) Vote(ctx context.Context, userID, postID int64, value *bool) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.votes.GetUpvoteWithTx(ctx, tx, userID, postID)
		if err != nil {
			return err
		}

		transition, delta := classifyVote(existing, value)
		if transition == transitionNone {
			return nil
		}

		// Points first so a missing post never reaches the ledger
		found, err := s.posts.AddPointsWithTx(ctx, tx, postID, delta)
		if err != nil {
			return err
		}
		if !found {
			s.logger.Debug("Vote on missing post ignored",
				zap.Int64("userID", userID),
				zap.Int64("postID", postID))
			return nil
		}

		switch transition {
		case transitionInsert:
			err = s.votes.InsertUpvoteWithTx(ctx, tx, &types.Upvote{
				UserID: userID,
				PostID: postID,
				Value:  *value,
			})
		case transitionFlip:
			err = s.votes.FlipUpvoteWithTx(ctx, tx, userID, postID, existing.Value)
		case transitionRetract:
			err = s.votes.DeleteUpvoteWithTx(ctx, tx, userID, postID, existing.Value)
		case transitionNone:
		}
		if err != nil {
			return err
		}

		s.logger.Debug("Vote applied",
			zap.Int64("userID", userID),
			zap.Int64("postID", postID),
			zap.Int("delta", delta))

		return nil
	})
	if err != nil {
		if errors.Is(err, types.ErrVoteConflict) {
			return err
		}
		return fmt.Errorf("failed to apply vote: %w", err)
	}

	return nil
}
