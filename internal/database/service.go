package database

import (
	"github.com/pointboard/forum/internal/database/service"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	user *service.UserService
	post *service.PostService
	feed *service.FeedService
	vote *service.VoteService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, logger *zap.Logger) *Service {
	userModel := repository.User()
	postModel := repository.Post()
	upvoteModel := repository.Upvote()

	return &Service{
		user: service.NewUser(userModel, logger),
		post: service.NewPost(db, postModel, logger),
		feed: service.NewFeed(postModel, upvoteModel, logger),
		vote: service.NewVote(db, postModel, upvoteModel, logger),
	}
}

// User returns the user service.
func (s *Service) User() *service.UserService {
	return s.user
}

// Post returns the post service.
func (s *Service) Post() *service.PostService {
	return s.post
}

// Feed returns the feed service.
func (s *Service) Feed() *service.FeedService {
	return s.feed
}

// Vote returns the vote service.
func (s *Service) Vote() *service.VoteService {
	return s.vote
}
