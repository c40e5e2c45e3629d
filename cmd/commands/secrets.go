package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/secrets"
)

// NewSecretsCommand returns the secrets subcommand.
func NewSecretsCommand() *cli.Command {
	return &cli.Command{
		Name:  "secrets",
		Usage: "Manage sealed credentials in .env",
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Seal a value and store it in .env (prompts when VALUE is omitted)",
				ArgsUsage: "<NAME> [VALUE]",
				Action:    runSecretsSet,
			},
			{
				Name:   "recipient",
				Usage:  "Print the public key for out-of-band encryption",
				Action: runSecretsRecipient,
			},
		},
	}
}

func runSecretsSet(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().Get(0)
	if name == "" {
		return fmt.Errorf("usage: helmsman secrets set <NAME> [VALUE]")
	}

	value := cmd.Args().Get(1)
	if value == "" {
		fmt.Fprintf(os.Stderr, "Value for %s: ", name)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}
		value = string(raw)
	}
	if value == "" {
		return fmt.Errorf("empty value")
	}

	vault, err := secrets.Open(secrets.KeyPath())
	if err != nil {
		return err
	}
	sealed, err := vault.Seal(value)
	if err != nil {
		return err
	}
	if err := secrets.SetEntry(config.DotenvPath(), name, sealed); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}

	fmt.Printf("Sealed %s into %s. The server reveals it at startup.\n", name, config.DotenvPath())
	return nil
}

func runSecretsRecipient(_ context.Context, _ *cli.Command) error {
	vault, err := secrets.Open(secrets.KeyPath())
	if err != nil {
		return err
	}
	fmt.Println(vault.Recipient())
	return nil
}
