package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "helmsman",
		Usage: "Multi-tenant task orchestration engine for AI agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewInitCommand(),
			NewServeCommand(),
			NewTasksCommand(),
			NewAgentsCommand(),
			NewSecretsCommand(),
			NewStatusCommand(),
			NewTUICommand(),
		},
	}
}
