package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// UserCommands returns the account provisioning commands.
func UserCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "user",
			Usage: "Manage forum accounts",
			Commands: []*cli.Command{
				{
					Name:  "add",
					Usage: "Create an account",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "username",
							Aliases:  []string{"u"},
							Usage:    "Unique username (at least 3 characters, no @)",
							Required: true,
						},
						&cli.StringFlag{
							Name:     "email",
							Aliases:  []string{"e"},
							Usage:    "Unique email address",
							Required: true,
						},
						&cli.StringFlag{
							Name:     "password",
							Aliases:  []string{"p"},
							Usage:    "Account password (at least 8 characters)",
							Sources:  cli.EnvVars("FORUM_USER_PASSWORD"),
							Required: true,
						},
					},
					Action: handleUserAdd(deps),
				},
			},
		},
	}
}

// handleUserAdd handles the 'user add' command.
func handleUserAdd(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		user, err := deps.DB.Service().User().CreateUser(ctx,
			c.String("username"), c.String("email"), c.String("password"))
		if err != nil {
			return fmt.Errorf("failed to add user: %w", err)
		}

		deps.Logger.Info("Added user",
			zap.Int64("id", user.ID),
			zap.String("username", user.Username))

		return nil
	}
}
