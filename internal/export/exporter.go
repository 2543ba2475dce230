package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/pointboard/forum/internal/database"
	dbTypes "github.com/pointboard/forum/internal/database/types"
	"github.com/pointboard/forum/internal/export/csv"
	"github.com/pointboard/forum/internal/export/sqlite"
	"github.com/pointboard/forum/internal/export/types"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidHashType   = errors.New("invalid hash type")
	ErrSaltRequired      = errors.New("salt is required")
)

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"

	// ConfigFilename is the name of the file describing an export.
	ConfigFilename = "export_config.json"

	// readBatchSize is the number of rows read from the database per query.
	readBatchSize = 1000
)

// Config holds the configuration for exports.
type Config struct {
	ExportVersion string   `json:"exportVersion"`
	Salt          string   `json:"-"`
	Description   string   `json:"description"`
	HashType      HashType `json:"hashType"`
	Iterations    uint32   `json:"iterations"`
	Memory        uint32   `json:"memory,omitempty"`
	Concurrency   int      `json:"-"`
}

// Validate checks the config and fills in defaults for the hash parameters.
func (c *Config) Validate() error {
	if !c.HashType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidHashType, c.HashType)
	}

	if c.Salt == "" {
		return ErrSaltRequired
	}

	if c.Iterations == 0 {
		c.Iterations = 1
		if c.HashType == HashTypeArgon2id {
			c.Iterations = 16
		}
	}

	if c.HashType == HashTypeArgon2id && c.Memory == 0 {
		c.Memory = 16
	}

	return nil
}

// Exporter writes an anonymized snapshot of posts and votes.
type Exporter struct {
	db      database.Client
	outDir  string
	config  *Config
	formats []Format
	logger  *zap.Logger
}

// New creates a new exporter instance. The config must have been validated.
func New(db database.Client, outDir string, config *Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		db:     db,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatSQLite,
			FormatCSV,
		},
		logger: logger.Named("export"),
	}
}

// ExportAll exports all data in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context) error {
	e.logger.Info("Starting export",
		zap.String("hashType", string(e.config.HashType)),
		zap.Int("concurrency", e.config.Concurrency),
		zap.Uint32("iterations", e.config.Iterations),
		zap.Uint32("memory", e.config.Memory),
		zap.String("outDir", e.outDir),
		zap.String("exportVersion", e.config.ExportVersion),
		zap.String("engineVersion", EngineVersion))

	posts, err := e.getPosts(ctx)
	if err != nil {
		return err
	}

	votes, err := e.getVotes(ctx)
	if err != nil {
		return err
	}

	e.logger.Info("Fetched data from database",
		zap.Int("posts", len(posts)),
		zap.Int("votes", len(votes)))

	postRecords, voteRecords := e.buildRecords(posts, votes)

	if err := e.writeConfig(); err != nil {
		return err
	}

	for _, format := range e.formats {
		if err := e.export(format, postRecords, voteRecords); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}

		e.logger.Info("Wrote export format", zap.String("format", string(format)))
	}

	e.logger.Info("Export completed successfully", zap.String("outDir", e.outDir))

	return nil
}

// buildRecords hashes every distinct user ID once and converts rows to records.
func (e *Exporter) buildRecords(
	posts []*dbTypes.Post, votes []dbTypes.Upvote,
) ([]*types.PostRecord, []*types.VoteRecord) {
	seen := make(map[int64]struct{})
	var userIDs []int64

	addUser := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			userIDs = append(userIDs, id)
		}
	}

	for _, post := range posts {
		addUser(post.CreatorID)
	}

	for _, vote := range votes {
		addUser(vote.UserID)
	}

	hashes := hashIDs(userIDs, e.config)

	postRecords := make([]*types.PostRecord, len(posts))
	for i, post := range posts {
		postRecords[i] = &types.PostRecord{
			ID:         post.ID,
			AuthorHash: hashes[post.CreatorID],
			Title:      post.Title,
			Text:       post.Text,
			Points:     post.Points,
			CreatedAt:  post.CreatedAt.UnixMilli(),
			UpdatedAt:  post.UpdatedAt.UnixMilli(),
		}
	}

	voteRecords := make([]*types.VoteRecord, len(votes))
	for i, vote := range votes {
		voteRecords[i] = &types.VoteRecord{
			PostID:    vote.PostID,
			VoterHash: hashes[vote.UserID],
			Value:     vote.Value,
		}
	}

	return postRecords, voteRecords
}

// getPosts reads every post in ID order.
func (e *Exporter) getPosts(ctx context.Context) ([]*dbTypes.Post, error) {
	var (
		posts   []*dbTypes.Post
		afterID int64
	)

	for {
		batch, err := e.db.Model().Post().GetPostsAfterID(ctx, afterID, readBatchSize)
		if err != nil {
			return nil, err
		}

		posts = append(posts, batch...)
		if len(batch) < readBatchSize {
			return posts, nil
		}

		afterID = batch[len(batch)-1].ID
	}
}

// getVotes reads the whole vote ledger in (post, user) order.
func (e *Exporter) getVotes(ctx context.Context) ([]dbTypes.Upvote, error) {
	var (
		votes                    []dbTypes.Upvote
		afterPostID, afterUserID int64
	)

	for {
		batch, err := e.db.Model().Upvote().GetUpvotesAfter(ctx, afterPostID, afterUserID, readBatchSize)
		if err != nil {
			return nil, err
		}

		votes = append(votes, batch...)
		if len(batch) < readBatchSize {
			return votes, nil
		}

		last := batch[len(batch)-1]
		afterPostID, afterUserID = last.PostID, last.UserID
	}
}

// writeConfig saves the export parameters next to the exported files.
func (e *Exporter) writeConfig() error {
	jsonConfig := struct {
		*Config

		EngineVersion string `json:"engineVersion"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, ConfigFilename), configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, posts []*types.PostRecord, votes []*types.VoteRecord) error {
	var exporter interface {
		Export(posts []*types.PostRecord, votes []*types.VoteRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(posts, votes)
}
