package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pointboard/forum/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// readPosts returns every exported post ordered by ID.
func readPosts(t *testing.T, path string) []*types.PostRecord {
	t.Helper()

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var posts []*types.PostRecord
	err = sqlitex.ExecuteTransient(conn,
		"SELECT id, author_hash, title, text, points, created_at, updated_at FROM posts ORDER BY id",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				posts = append(posts, &types.PostRecord{
					ID:         stmt.ColumnInt64(0),
					AuthorHash: stmt.ColumnText(1),
					Title:      stmt.ColumnText(2),
					Text:       stmt.ColumnText(3),
					Points:     stmt.ColumnInt(4),
					CreatedAt:  stmt.ColumnInt64(5),
					UpdatedAt:  stmt.ColumnInt64(6),
				})
				return nil
			},
		})
	require.NoError(t, err)

	return posts
}

// readVotes returns every exported vote ordered by post and voter.
func readVotes(t *testing.T, path string) []*types.VoteRecord {
	t.Helper()

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var votes []*types.VoteRecord
	err = sqlitex.ExecuteTransient(conn,
		"SELECT post_id, voter_hash, value FROM votes ORDER BY post_id, voter_hash",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				votes = append(votes, &types.VoteRecord{
					PostID:    stmt.ColumnInt64(0),
					VoterHash: stmt.ColumnText(1),
					Value:     stmt.ColumnInt(2) != 0,
				})
				return nil
			},
		})
	require.NoError(t, err)

	return votes
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		posts   []*types.PostRecord
		votes   []*types.VoteRecord
		wantErr bool
	}{
		{
			name: "basic export",
			posts: []*types.PostRecord{
				{ID: 1, AuthorHash: "aa11", Title: "hello", Text: "world", Points: 1, CreatedAt: 1000, UpdatedAt: 1000},
				{ID: 2, AuthorHash: "bb22", Title: "it's", Text: "say \"hi\"", Points: -1, CreatedAt: 2000, UpdatedAt: 2500},
			},
			votes: []*types.VoteRecord{
				{PostID: 1, VoterHash: "bb22", Value: true},
				{PostID: 2, VoterHash: "aa11", Value: false},
			},
		},
		{
			name: "empty records",
		},
		{
			name: "duplicate vote",
			posts: []*types.PostRecord{
				{ID: 1, AuthorHash: "aa11", Title: "t", Text: "x"},
			},
			votes: []*types.VoteRecord{
				{PostID: 1, VoterHash: "bb22", Value: true},
				{PostID: 1, VoterHash: "bb22", Value: false},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tempDir := t.TempDir()

			err := New(tempDir).Export(tt.posts, tt.votes)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			path := filepath.Join(tempDir, Filename)
			assert.Equal(t, tt.posts, readPosts(t, path))
			assert.Equal(t, tt.votes, readVotes(t, path))
		})
	}
}

func TestExporter_ExistingFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	path := filepath.Join(tempDir, Filename)
	require.NoError(t, os.WriteFile(path, []byte("invalid sqlite db"), 0o644))

	posts := []*types.PostRecord{{ID: 5, AuthorHash: "cc33", Title: "t", Text: "x"}}
	require.NoError(t, New(tempDir).Export(posts, nil))

	assert.Equal(t, posts, readPosts(t, path))
}

func TestInsertBatchedCommitsAcrossBatches(t *testing.T) {
	t.Parallel()

	posts := make([]*types.PostRecord, batchSize+5)
	for i := range posts {
		posts[i] = &types.PostRecord{ID: int64(i + 1), AuthorHash: "h", Title: "t", Text: "x"}
	}

	tempDir := t.TempDir()
	require.NoError(t, New(tempDir).Export(posts, nil))

	assert.Len(t, readPosts(t, filepath.Join(tempDir, Filename)), batchSize+5)
}
