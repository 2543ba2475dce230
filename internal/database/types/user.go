package types

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already taken")
)

// User is a forum account. Posts and votes reference it by ID.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Username  string    `bun:",notnull,unique"     json:"username"`
	Email     string    `bun:",notnull,unique"     json:"email"`
	Password  string    `bun:",notnull"            json:"-"`
	CreatedAt time.Time `bun:",notnull"            json:"createdAt"`
	UpdatedAt time.Time `bun:",notnull"            json:"updatedAt"`
}

// Session is the payload stored for an issued session token.
type Session struct {
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
