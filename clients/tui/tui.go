// Package tui is a terminal dashboard for a running Helmsman server:
// live task list on top, event stream below.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	wsclient "github.com/helmsman-ai/helmsman/clients/ws"
	wsprotocol "github.com/helmsman-ai/helmsman/internal/gateway/ws"
)

const maxEventLines = 64

// Config connects the dashboard to a gateway.
type Config struct {
	BaseURL   string // http://host:port
	CompanyID string
	UserID    string
}

// Run dials the gateway and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	client, err := wsclient.Dial(ctx, wsURL(cfg.BaseURL))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	m := newModel(cfg, client)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func wsURL(base string) string {
	return "ws" + base[len("http"):] + "/api/ws"
}

type tasksMsg []wsclient.TaskSummary

type eventMsg wsprotocol.Frame

type errMsg struct{ err error }

type refreshTickMsg struct{}

// Model is the bubbletea model for the dashboard.
type Model struct {
	cfg    Config
	client *wsclient.Client

	tasks    []wsclient.TaskSummary
	events   []string
	selected int
	loading  bool
	err      error

	spin   spinner.Model
	width  int
	height int
}

func newModel(cfg Config, client *wsclient.Client) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return Model{cfg: cfg, client: client, spin: s, loading: true}
}

// Init starts the spinner, the first refresh and the event reader.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.refreshCmd(), m.readEventCmd(), refreshTick())
}

func refreshTick() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

// refreshCmd fetches the task list over REST. The WebSocket stays
// dedicated to the event stream so reads never interleave.
func (m Model) refreshCmd() tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/tasks", nil)
		if err != nil {
			return errMsg{err}
		}
		req.Header.Set("X-Company-ID", cfg.CompanyID)
		req.Header.Set("X-User-ID", cfg.UserID)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return errMsg{err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return errMsg{fmt.Errorf("list tasks: %s: %s", resp.Status, body)}
		}

		var list []wsclient.TaskSummary
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return errMsg{err}
		}
		return tasksMsg(list)
	}
}

func (m Model) readEventCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		frame, err := client.ReadFrame()
		if err != nil {
			return errMsg{err}
		}
		return eventMsg(frame)
	}
}

func (m Model) cancelSelectedCmd() tea.Cmd {
	if m.selected >= len(m.tasks) {
		return nil
	}
	cfg := m.cfg
	taskID := m.tasks[m.selected].ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		url := cfg.BaseURL + "/api/tasks/" + taskID + "/cancel"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return errMsg{err}
		}
		req.Header.Set("X-Company-ID", cfg.CompanyID)
		req.Header.Set("X-User-ID", cfg.UserID)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return errMsg{err}
		}
		resp.Body.Close()
		return refreshTickMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.refreshCmd()
		case "j", "down":
			if m.selected < len(m.tasks)-1 {
				m.selected++
			}
		case "k", "up":
			if m.selected > 0 {
				m.selected--
			}
		case "c":
			return m, m.cancelSelectedCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tasksMsg:
		m.tasks = msg
		m.loading = false
		m.err = nil
		if m.selected >= len(m.tasks) {
			m.selected = max(0, len(m.tasks)-1)
		}

	case eventMsg:
		m.events = append(m.events, formatEvent(wsprotocol.Frame(msg)))
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		// Status changes make the list stale.
		return m, tea.Batch(m.readEventCmd(), m.refreshCmd())

	case refreshTickMsg:
		return m, tea.Batch(m.refreshCmd(), refreshTick())

	case errMsg:
		m.err = msg.err
		m.loading = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func formatEvent(f wsprotocol.Frame) string {
	ts := time.Now().Format("15:04:05")
	if f.TaskID != "" {
		return fmt.Sprintf("%s  %-24s %s", ts, f.Event, f.TaskID)
	}
	return fmt.Sprintf("%s  %s", ts, f.Event)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
