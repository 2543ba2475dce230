// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/pointboard/forum/internal/database"
	"github.com/pointboard/forum/internal/database/types"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// New returns a client backed by a fresh in-memory SQLite database with all
// migrations applied. The database is closed when the test ends.
func New(t *testing.T) database.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	sqldb, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	// A single connection keeps the shared in-memory database alive and
	// serializes transactions
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	client, err := database.NewClient(t.Context(), db, zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)), 0, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// CreateUser inserts a user with a unique name derived from prefix.
func CreateUser(t *testing.T, client database.Client, prefix string) *types.User {
	t.Helper()

	name := prefix + "_" + uuid.NewString()[:8]
	user := &types.User{
		Username: name,
		Email:    name + "@example.com",
		Password: "not-a-real-hash",
	}
	require.NoError(t, client.Model().User().CreateUser(t.Context(), user))

	return user
}

// CreatePost inserts a post owned by creator.
func CreatePost(t *testing.T, client database.Client, creator *types.User, title, text string) *types.Post {
	t.Helper()

	post := &types.Post{
		Title:     title,
		Text:      text,
		CreatorID: creator.ID,
	}
	require.NoError(t, client.Model().Post().CreatePost(t.Context(), post))

	return post
}
