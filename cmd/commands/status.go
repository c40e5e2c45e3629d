package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show Helmsman server status",
		Action: func(_ context.Context, _ *cli.Command) error {
			hbPath := filepath.Join(config.HelmsmanPath(), "heartbeat.json")
			status, hb, err := heartbeat.Check(hbPath, 2*time.Minute)
			if err != nil {
				return fmt.Errorf("check heartbeat: %w", err)
			}

			switch status {
			case heartbeat.StatusAlive:
				fmt.Printf("Server: ALIVE (PID %d, uptime %s, %d active tasks)\n",
					hb.PID, hb.Uptime, hb.ActiveTasks)
			case heartbeat.StatusStale:
				fmt.Printf("Server: STALE (PID %d, last heartbeat %s ago)\n",
					hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
			case heartbeat.StatusDead:
				fmt.Println("Server: NOT RUNNING")
			}

			return nil
		},
	}
}
