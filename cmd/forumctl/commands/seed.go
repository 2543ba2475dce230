package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/sourcegraph/conc/pool"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// seedSentences are combined into mock post bodies.
var seedSentences = []string{
	"Has anyone else tried running the migration against a replica first?",
	"I keep seeing the same question come up, so here is a short write-up.",
	"The points on this board move faster than I expected.",
	"Pagination finally works the way I wanted it to.",
	"Curious what everyone thinks about cursor based feeds.",
	"This is a short one.",
	"Long time reader, first time poster.",
	"Posting this mostly so the feed has something to page through.",
}

// SeedCommands returns the command that fills the database with mock posts.
func SeedCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "seed",
			Usage: "Insert mock posts spread over the past days",
			Description: `Creates posts owned by existing users, round robin, with creation
dates spread evenly across the chosen window so the feed has history to page
through.`,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "posts",
					Aliases: []string{"n"},
					Usage:   "Number of posts to create",
					Value:   100,
				},
				&cli.DurationFlag{
					Name:  "window",
					Usage: "How far back the oldest post is dated",
					Value: 30 * 24 * time.Hour,
				},
				&cli.IntFlag{
					Name:    "concurrency",
					Aliases: []string{"c"},
					Usage:   "Number of concurrent inserts",
					Value:   4,
				},
			},
			Action: handleSeed(deps),
		},
	}
}

// handleSeed handles the 'seed' command.
func handleSeed(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		created, err := seedPosts(ctx, deps,
			int(c.Int("posts")), c.Duration("window"), int(c.Int("concurrency")), types.Now())
		if err != nil {
			return err
		}

		deps.Logger.Info("Seeded posts", zap.Int("count", created))
		return nil
	}
}

// seedPosts creates count posts dated from now-window up to now, oldest first.
func seedPosts(
	ctx context.Context, deps *CLIDependencies, count int, window time.Duration, concurrency int, now time.Time,
) (int, error) {
	if count < 1 {
		return 0, ErrInvalidSeedCount
	}

	// Cursors have millisecond precision, so every post needs its own millisecond
	step := (window / time.Duration(count)).Truncate(time.Millisecond)
	if step < time.Millisecond {
		return 0, fmt.Errorf("%w: %d posts over %s", ErrSeedWindowShort, count, window)
	}

	userIDs, err := deps.DB.Service().User().GetUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(userIDs) == 0 {
		return 0, ErrNoUsers
	}

	model := deps.DB.Model().Post()

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(max(concurrency, 1))
	for i := range count {
		p.Go(func(ctx context.Context) error {
			createdAt := now.Add(-window + time.Duration(i)*step).Truncate(time.Millisecond)
			post := &types.Post{
				Title:     fmt.Sprintf("Seed post #%d", i+1),
				Text:      seedText(i),
				CreatorID: userIDs[i%len(userIDs)],
				CreatedAt: createdAt,
				UpdatedAt: createdAt,
			}
			return model.CreatePost(ctx, post)
		})
	}

	if err := p.Wait(); err != nil {
		return 0, fmt.Errorf("failed to seed posts: %w", err)
	}

	return count, nil
}

// seedText builds a body of varying length so some posts need a snippet.
func seedText(i int) string {
	n := i%3 + 1

	parts := make([]string, n)
	for j := range n {
		parts[j] = seedSentences[(i+j)%len(seedSentences)]
	}

	return strings.Join(parts, " ")
}
