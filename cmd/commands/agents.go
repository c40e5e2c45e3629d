package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// NewAgentsCommand returns the agents subcommand.
func NewAgentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "agents",
		Usage: "List the company's agents",
		Flags: gatewayFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			company, user, err := requireTenant(cmd)
			if err != nil {
				return err
			}

			var agents []*types.Agent
			if err := gatewayGet(ctx, cmd, "/api/agents", company, user, &agents); err != nil {
				return err
			}
			if len(agents) == 0 {
				fmt.Println("No agents found. Seed some via the agents file and restart the server.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tCODE\tWEB\tDESCRIPTION")
			for _, a := range agents {
				model := a.ModelID
				if model == "" {
					model = "(default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%s\n",
					a.ID, a.Name, model, a.CodeInterpreterEnabled, a.WebBrowsingEnabled, a.Description)
			}
			return w.Flush()
		},
	}
}
