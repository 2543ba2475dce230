package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pointboard/forum/internal/export/types"
)

// Exporter handles exporting posts and votes to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes post and vote records to separate csv files.
func (e *Exporter) Export(posts []*types.PostRecord, votes []*types.VoteRecord) error {
	// Remove existing files if they exist
	files := []string{"posts.csv", "votes.csv"}
	for _, file := range files {
		path := filepath.Join(e.outDir, file)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file %s: %w", file, err)
		}
	}

	postRows := make([][]string, len(posts))
	for i, post := range posts {
		postRows[i] = []string{
			strconv.FormatInt(post.ID, 10),
			post.AuthorHash,
			post.Title,
			post.Text,
			strconv.Itoa(post.Points),
			strconv.FormatInt(post.CreatedAt, 10),
			strconv.FormatInt(post.UpdatedAt, 10),
		}
	}

	if err := e.writeFile("posts.csv", []string{
		"id", "author_hash", "title", "text", "points", "created_at", "updated_at",
	}, postRows); err != nil {
		return fmt.Errorf("failed to export posts: %w", err)
	}

	voteRows := make([][]string, len(votes))
	for i, vote := range votes {
		voteRows[i] = []string{
			strconv.FormatInt(vote.PostID, 10),
			vote.VoterHash,
			strconv.FormatBool(vote.Value),
		}
	}

	if err := e.writeFile("votes.csv", []string{"post_id", "voter_hash", "value"}, voteRows); err != nil {
		return fmt.Errorf("failed to export votes: %w", err)
	}

	return nil
}

// writeFile writes a header and rows to a csv file.
func (e *Exporter) writeFile(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	return nil
}
