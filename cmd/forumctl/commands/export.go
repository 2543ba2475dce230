package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pointboard/forum/internal/export"
	"github.com/urfave/cli/v3"
)

// ExportCommands returns the anonymized data export command.
func ExportCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "export",
			Usage: "Export posts and votes with hashed user IDs to SQLite and CSV",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Value:   "exports",
					Usage:   "Base output directory for export files",
				},
				&cli.StringFlag{
					Name:     "salt",
					Aliases:  []string{"s"},
					Usage:    "Salt for hashing user IDs",
					Sources:  cli.EnvVars("FORUM_EXPORT_SALT"),
					Required: true,
				},
				&cli.StringFlag{
					Name:    "export-version",
					Aliases: []string{"v"},
					Value:   "1.0.0",
					Usage:   "Export version",
				},
				&cli.StringFlag{
					Name:    "description",
					Aliases: []string{"d"},
					Value:   "Forum export",
					Usage:   "Export description",
				},
				&cli.StringFlag{
					Name:    "hash-type",
					Aliases: []string{"t"},
					Value:   string(export.HashTypeSHA256),
					Usage:   "Hash algorithm to use (argon2id or sha256)",
				},
				&cli.IntFlag{
					Name:    "concurrency",
					Aliases: []string{"c"},
					Usage:   "Number of concurrent hash operations",
					Value:   1,
				},
				&cli.UintFlag{
					Name:    "iterations",
					Aliases: []string{"i"},
					Usage:   "Number of hash iterations (defaults to 1 for sha256, 16 for argon2id)",
				},
				&cli.UintFlag{
					Name:    "memory",
					Aliases: []string{"m"},
					Usage:   "Memory to use for Argon2id in MB (defaults to 16)",
				},
			},
			Action: handleExport(deps),
		},
	}
}

// handleExport handles the 'export' command.
func handleExport(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		config := &export.Config{
			ExportVersion: c.String("export-version"),
			Salt:          c.String("salt"),
			Description:   c.String("description"),
			HashType:      export.HashType(c.String("hash-type")),
			Concurrency:   int(c.Int("concurrency")),
			Iterations:    uint32(c.Uint("iterations")), //nolint:gosec // -
			Memory:        uint32(c.Uint("memory")),     //nolint:gosec // -
		}
		if err := config.Validate(); err != nil {
			return err
		}

		// Create timestamped output directory
		timestamp := time.Now().UTC().Format("2006-01-02_150405")
		outDir := filepath.Join(c.String("output"), timestamp)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		return export.New(deps.DB, outDir, config, deps.Logger).ExportAll(ctx)
	}
}
