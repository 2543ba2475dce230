package commands

import (
	"context"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// MigrationCommands returns the schema management commands.
func MigrationCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init",
			Usage: "Create the migration bookkeeping tables",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return deps.Migrator.Init(ctx)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending migrations",
			Action: func(ctx context.Context, c *cli.Command) error {
				if err := deps.Migrator.Init(ctx); err != nil {
					return err
				}
				return handleLockedGroup(deps, func(ctx context.Context) (*migrate.MigrationGroup, error) {
					return deps.Migrator.Migrate(ctx)
				}, "Schema is up to date", "Applied migrations")(ctx, c)
			},
		},
		{
			Name:  "rollback",
			Usage: "Roll back the last migration group",
			Action: handleLockedGroup(deps, func(ctx context.Context) (*migrate.MigrationGroup, error) {
				return deps.Migrator.Rollback(ctx)
			}, "Nothing to roll back", "Rolled back migrations"),
		},
		{
			Name:   "status",
			Usage:  "Show applied and pending migrations",
			Action: handleStatus(deps),
		},
		{
			Name:      "create",
			Usage:     "Create a new Go migration file",
			ArgsUsage: "NAME",
			Action:    handleCreate(deps),
		},
	}
}

// handleLockedGroup runs a group-producing migrator operation while holding
// the migration lock and logs the resulting group.
func handleLockedGroup(
	deps *CLIDependencies,
	run func(ctx context.Context) (*migrate.MigrationGroup, error),
	emptyMsg, doneMsg string,
) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		if err := deps.Migrator.Lock(ctx); err != nil {
			return err
		}
		defer deps.Migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := run(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			deps.Logger.Info(emptyMsg)
			return nil
		}

		deps.Logger.Info(doneMsg, zap.String("group", group.String()))
		return nil
	}
}

// handleStatus handles the 'status' command.
func handleStatus(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		ms, err := deps.Migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		deps.Logger.Info("Migration status",
			zap.String("migrations", ms.String()),
			zap.String("unapplied", ms.Unapplied().String()),
			zap.String("last_group", ms.LastGroup().String()),
		)

		return nil
	}
}

// handleCreate handles the 'create' command.
func handleCreate(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrNameRequired
		}

		mf, err := deps.Migrator.CreateGoMigration(ctx, c.Args().First())
		if err != nil {
			return err
		}

		deps.Logger.Info("Created Go migration",
			zap.String("name", mf.Name),
			zap.String("path", mf.Path),
		)

		return nil
	}
}
