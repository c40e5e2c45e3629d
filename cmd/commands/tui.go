package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/clients/tui"
)

// NewTUICommand returns the tui subcommand.
func NewTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Launch the task dashboard",
		Flags: gatewayFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			company, user, err := requireTenant(cmd)
			if err != nil {
				return err
			}
			return tui.Run(ctx, tui.Config{
				BaseURL:   cmd.String("gateway"),
				CompanyID: company,
				UserID:    user,
			})
		},
	}
}
