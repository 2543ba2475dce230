package database

import (
	"github.com/pointboard/forum/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	user   *models.UserModel
	post   *models.PostModel
	upvote *models.UpvoteModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		user:   models.NewUser(db, logger),
		post:   models.NewPost(db, logger),
		upvote: models.NewUpvote(db, logger),
	}
}

// User returns the user model repository.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Post returns the post model repository.
func (r *Repository) Post() *models.PostModel {
	return r.post
}

// Upvote returns the vote ledger model repository.
func (r *Repository) Upvote() *models.UpvoteModel {
	return r.upvote
}
