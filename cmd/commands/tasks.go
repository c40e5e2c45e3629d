package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"

	wsclient "github.com/helmsman-ai/helmsman/clients/ws"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Submit and inspect tasks",
		Flags: gatewayFlags(),
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the company's root tasks",
				Action: runTasksList,
			},
			{
				Name:      "submit",
				Usage:     "Submit a new task",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "agent",
						Aliases: []string{"a"},
						Usage:   "Agent ID to assign",
					},
					&cli.StringFlag{
						Name:  "summary",
						Usage: "Task summary (what to do and why)",
					},
					&cli.BoolFlag{
						Name:  "plan",
						Usage: "Decompose the task into sub-tasks before running",
					},
				},
				Action: runTasksSubmit,
			},
			{
				Name:      "show",
				Usage:     "Show a task, its children and results",
				ArgsUsage: "<task_id>",
				Action:    runTasksShow,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a task and its descendants",
				ArgsUsage: "<task_id>",
				Action:    runTasksCancel,
			},
			{
				Name:      "send",
				Usage:     "Send a message into a chat (resumes waiting tasks)",
				ArgsUsage: "<chat_id> <message>",
				Action:    runTasksSend,
			},
		},
		DefaultCommand: "list",
	}
}

// gatewayFlags are shared by every command that talks to a running server.
func gatewayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "gateway",
			Usage: "Gateway base URL",
			Value: "http://127.0.0.1:18520",
		},
		&cli.StringFlag{
			Name:    "company",
			Usage:   "Company (tenant) ID",
			Sources: cli.EnvVars("HELMSMAN_COMPANY_ID"),
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "User ID",
			Sources: cli.EnvVars("HELMSMAN_USER_ID"),
		},
	}
}

func wsURL(cmd *cli.Command) string {
	base := cmd.String("gateway")
	u := "ws" + base[len("http"):]
	return u + "/api/ws"
}

func requireTenant(cmd *cli.Command) (company, user string, err error) {
	company = cmd.String("company")
	user = cmd.String("user")
	if company == "" {
		return "", "", fmt.Errorf("--company (or HELMSMAN_COMPANY_ID) is required")
	}
	if user == "" {
		user = "cli"
	}
	return company, user, nil
}

func dialGateway(ctx context.Context, cmd *cli.Command) (*wsclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := wsclient.Dial(dialCtx, wsURL(cmd))
	if err != nil {
		return nil, fmt.Errorf("connect to gateway: %w", err)
	}
	return client, nil
}

func runTasksList(ctx context.Context, cmd *cli.Command) error {
	company, _, err := requireTenant(cmd)
	if err != nil {
		return err
	}
	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.ListTasks(company)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAGENT\tTITLE")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.AgentID, t.Title)
	}
	return w.Flush()
}

func runTasksSubmit(ctx context.Context, cmd *cli.Command) error {
	title := cmd.Args().First()
	if title == "" {
		return fmt.Errorf("usage: helmsman tasks submit <title>")
	}
	company, user, err := requireTenant(cmd)
	if err != nil {
		return err
	}
	agentID := cmd.String("agent")
	if agentID == "" {
		return fmt.Errorf("--agent is required")
	}

	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	id, err := client.SubmitTask(company, user, agentID, title, cmd.String("summary"), cmd.Bool("plan"))
	if err != nil {
		return err
	}
	fmt.Printf("Task submitted: %s\n", id)
	return nil
}

func runTasksShow(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.Args().First()
	if taskID == "" {
		return fmt.Errorf("usage: helmsman tasks show <task_id>")
	}
	company, user, err := requireTenant(cmd)
	if err != nil {
		return err
	}

	var detail struct {
		Task     *types.Task   `json:"task"`
		Children []*types.Task `json:"children"`
	}
	if err := gatewayGet(ctx, cmd, "/api/tasks/"+taskID, company, user, &detail); err != nil {
		return err
	}
	t := detail.Task

	fmt.Printf("ID:       %s\n", t.ID)
	fmt.Printf("Title:    %s\n", t.Title)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Agent:    %s\n", t.AgentID)
	fmt.Printf("Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if t.Summary != "" {
		fmt.Printf("\nSummary:\n%s\n", t.Summary)
	}

	if len(detail.Children) > 0 {
		fmt.Println("\nSub-tasks:")
		for _, c := range detail.Children {
			fmt.Printf("  [%s] %s  %s\n", c.Status, c.ID, c.Title)
		}
	}

	var results []*types.TaskResult
	if err := gatewayGet(ctx, cmd, "/api/tasks/"+taskID+"/results", company, user, &results); err != nil {
		return err
	}
	for _, res := range results {
		fmt.Println("\nResult:")
		if res.Kind == types.ResultText {
			fmt.Print(renderMarkdown(res.Data))
		} else {
			fmt.Printf("  %s: %s\n", res.Kind, res.Data)
		}
	}
	return nil
}

func runTasksCancel(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.Args().First()
	if taskID == "" {
		return fmt.Errorf("usage: helmsman tasks cancel <task_id>")
	}
	company, _, err := requireTenant(cmd)
	if err != nil {
		return err
	}

	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CancelTask(company, taskID, "cancelled from CLI"); err != nil {
		return err
	}
	fmt.Printf("Task %s cancelled.\n", taskID)
	return nil
}

func runTasksSend(ctx context.Context, cmd *cli.Command) error {
	chatID := cmd.Args().Get(0)
	content := cmd.Args().Get(1)
	if chatID == "" || content == "" {
		return fmt.Errorf("usage: helmsman tasks send <chat_id> <message>")
	}
	company, user, err := requireTenant(cmd)
	if err != nil {
		return err
	}

	client, err := dialGateway(ctx, cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.SendMessage(company, chatID, user, content); err != nil {
		return err
	}
	fmt.Println("Message sent.")
	return nil
}

// gatewayGet performs an authenticated REST GET against the gateway.
func gatewayGet(ctx context.Context, cmd *cli.Command, path, company, user string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, cmd.String("gateway")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Company-ID", company)
	req.Header.Set("X-User-ID", user)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s: %s: %s", path, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// renderMarkdown pretty-prints markdown for the terminal, falling back to
// the raw text when rendering fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md + "\n"
	}
	out, err := r.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}
