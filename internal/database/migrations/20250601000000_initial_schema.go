package migrations

import (
	"context"
	"fmt"

	"github.com/pointboard/forum/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model       any
			foreignKeys []string
		}{
			{(*types.User)(nil), nil},
			{(*types.Post)(nil), []string{
				`("creator_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			}},
			{(*types.Upvote)(nil), []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
				`("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE`,
			}},
		}

		for _, table := range tables {
			query := db.NewCreateTable().
				Model(table.model).
				IfNotExists()
			for _, fk := range table.foreignKeys {
				query = query.ForeignKey(fk)
			}

			if _, err := query.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table %T: %w", table.model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		// Down migration - drop in reverse dependency order
		models := []any{
			(*types.Upvote)(nil),
			(*types.Post)(nil),
			(*types.User)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
