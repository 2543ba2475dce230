package migrations

import (
	"context"
	"fmt"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []struct {
			model   any
			name    string
			columns []string
		}{
			// Feed ordering and cursor filtering
			{(*types.Post)(nil), "idx_posts_created_at", []string{"created_at"}},
			{(*types.Post)(nil), "idx_posts_creator_id", []string{"creator_id"}},
			// Cascading deletes and per-post lookups on the ledger
			{(*types.Upvote)(nil), "idx_upvotes_post_id", []string{"post_id"}},
		}

		for _, idx := range indexes {
			_, err := db.NewCreateIndex().
				Model(idx.model).
				Index(idx.name).
				Column(idx.columns...).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, name := range []string{"idx_upvotes_post_id", "idx_posts_creator_id", "idx_posts_created_at"} {
			_, err := db.NewDropIndex().
				Index(name).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop index %s: %w", name, err)
			}
		}

		return nil
	})
}
