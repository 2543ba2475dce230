package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// SessionCommands returns the commands that issue and revoke API sessions.
func SessionCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "session",
			Usage: "Manage API session tokens",
			Commands: []*cli.Command{
				{
					Name:  "issue",
					Usage: "Issue a session token for an account",
					Description: `Prints a token usable as the session cookie or as a bearer token:

  curl -H "Authorization: Bearer <token>" ...`,
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:     "username",
							Aliases:  []string{"u"},
							Usage:    "Account to issue the token for",
							Required: true,
						},
					},
					Action: handleSessionIssue(deps),
				},
				{
					Name:      "revoke",
					Usage:     "Revoke a session token",
					ArgsUsage: "TOKEN",
					Action:    handleSessionRevoke(deps),
				},
			},
		},
	}
}

// handleSessionIssue handles the 'session issue' command.
func handleSessionIssue(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		user, err := deps.DB.Model().User().GetUserByUsername(ctx, c.String("username"))
		if err != nil {
			return err
		}

		sessions, err := deps.Sessions()
		if err != nil {
			return fmt.Errorf("failed to connect to session store: %w", err)
		}

		token, err := sessions.Create(ctx, user.ID)
		if err != nil {
			return err
		}

		deps.Logger.Info("Issued session", zap.Int64("userID", user.ID))
		fmt.Fprintln(c.Root().Writer, token)

		return nil
	}
}

// handleSessionRevoke handles the 'session revoke' command.
func handleSessionRevoke(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrTokenRequired
		}

		sessions, err := deps.Sessions()
		if err != nil {
			return fmt.Errorf("failed to connect to session store: %w", err)
		}

		if err := sessions.Delete(ctx, c.Args().First()); err != nil {
			return err
		}

		deps.Logger.Info("Revoked session")
		return nil
	}
}
