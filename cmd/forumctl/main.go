package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"

	"github.com/pointboard/forum/cmd/forumctl/commands"
	"github.com/pointboard/forum/internal/setup"
	"github.com/pointboard/forum/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

// CLILogDir specifies where CLI log files are stored.
const CLILogDir = "logs/cli_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	var app *setup.App

	deps := &commands.CLIDependencies{}

	cmd := &cli.Command{
		Name:  "forumctl",
		Usage: "Forum administration tool",
		Commands: slices.Concat(
			commands.MigrationCommands(deps),
			commands.UserCommands(deps),
			commands.SessionCommands(deps),
			commands.SeedCommands(deps),
			commands.ExportCommands(deps),
		),
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			var err error

			app, err = setup.InitializeApp(ctx, telemetry.ServiceCLI, CLILogDir)
			if err != nil {
				return ctx, fmt.Errorf("failed to initialize application: %w", err)
			}

			deps.DB = app.DB
			deps.Migrator = app.DB.Migrator()
			deps.Logger = app.Logger
			deps.Sessions = func() (commands.SessionStore, error) {
				return app.SessionStore()
			}

			return ctx, nil
		},
		After: func(ctx context.Context, _ *cli.Command) error {
			if app != nil {
				app.Cleanup(ctx)
			}
			return nil
		},
	}

	return cmd.Run(context.Background(), os.Args)
}
