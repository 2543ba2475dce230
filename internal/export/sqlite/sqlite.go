package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pointboard/forum/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Filename is the name of the exported database file.
const Filename = "forum.db"

// batchSize is the number of rows inserted per transaction.
const batchSize = 1000

const schema = `
CREATE TABLE posts (
	id INTEGER PRIMARY KEY,
	author_hash TEXT NOT NULL,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	points INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX posts_created_at_idx ON posts (created_at);
CREATE TABLE votes (
	post_id INTEGER NOT NULL REFERENCES posts (id),
	voter_hash TEXT NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (post_id, voter_hash)
);`

// Exporter handles exporting posts and votes to a SQLite database.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes post and vote records to a single SQLite database.
func (e *Exporter) Export(posts []*types.PostRecord, votes []*types.VoteRecord) error {
	path := filepath.Join(e.outDir, Filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", Filename, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	err = insertBatched(conn,
		"INSERT INTO posts (id, author_hash, title, text, points, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		len(posts), func(i int) []any {
			p := posts[i]
			return []any{p.ID, p.AuthorHash, p.Title, p.Text, p.Points, p.CreatedAt, p.UpdatedAt}
		})
	if err != nil {
		return fmt.Errorf("failed to export posts: %w", err)
	}

	err = insertBatched(conn,
		"INSERT INTO votes (post_id, voter_hash, value) VALUES (?, ?, ?)",
		len(votes), func(i int) []any {
			v := votes[i]
			return []any{v.PostID, v.VoterHash, v.Value}
		})
	if err != nil {
		return fmt.Errorf("failed to export votes: %w", err)
	}

	return nil
}

// insertBatched runs query for each of n rows, committing every batchSize rows.
func insertBatched(conn *sqlite.Conn, query string, n int, args func(i int) []any) error {
	for i := 0; i < n; i += batchSize {
		end := min(i+batchSize, n)

		if err := sqlitex.Execute(conn, "BEGIN TRANSACTION", nil); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		for j := i; j < end; j++ {
			if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args(j)}); err != nil {
				_ = sqlitex.Execute(conn, "ROLLBACK", nil)
				return fmt.Errorf("failed to insert record: %w", err)
			}
		}

		if err := sqlitex.Execute(conn, "COMMIT", nil); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}
