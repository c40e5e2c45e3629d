// Package ws provides a WebSocket client for the Helmsman gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/helmsman-ai/helmsman/internal/gateway/ws"
)

// Client is a WebSocket client for the Helmsman gateway. Request methods
// read frames until the matching response arrives; event frames seen on
// the way are handed to OnEvent when set.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc

	// OnEvent, when set, receives event frames interleaved with responses.
	OnEvent func(wsprotocol.Frame)
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// SubmitTask submits a task and returns its id.
func (c *Client) SubmitTask(companyID, userID, agentID, title, summary string, plan bool) (string, error) {
	payload, err := c.call(wsprotocol.MethodSubmitTask, map[string]any{
		"company_id": companyID,
		"user_id":    userID,
		"agent_id":   agentID,
		"title":      title,
		"summary":    summary,
		"plan":       plan,
	})
	if err != nil {
		return "", err
	}
	var res struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	return res.TaskID, nil
}

// CancelTask requests cancellation of a task and its descendants.
func (c *Client) CancelTask(companyID, taskID, reason string) error {
	_, err := c.call(wsprotocol.MethodCancelTask, map[string]any{
		"company_id": companyID,
		"task_id":    taskID,
		"reason":     reason,
	})
	return err
}

// TaskSummary is one row of a list_tasks response.
type TaskSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

// ListTasks returns the company's root tasks, newest first.
func (c *Client) ListTasks(companyID string) ([]TaskSummary, error) {
	payload, err := c.call(wsprotocol.MethodListTasks, map[string]any{
		"company_id": companyID,
	})
	if err != nil {
		return nil, err
	}
	var res []TaskSummary
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return res, nil
}

// SendMessage posts a user message into a chat. Tasks waiting on that
// chat resume.
func (c *Client) SendMessage(companyID, chatID, userID, content string) error {
	_, err := c.call(wsprotocol.MethodSendMessage, map[string]any{
		"company_id": companyID,
		"chat_id":    chatID,
		"user_id":    userID,
		"content":    content,
	})
	return err
}

// call sends a request frame and waits for its response.
func (c *Client) call(method wsprotocol.Method, params any) (json.RawMessage, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	data, err := wsprotocol.MarshalFrame(wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     id,
		Method: string(method),
		Params: raw,
	})
	if err != nil {
		return nil, err
	}
	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return nil, err
	}

	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return nil, err
		}
		if frame.Type == wsprotocol.FrameTypeEvent {
			if c.OnEvent != nil {
				c.OnEvent(frame)
			}
			continue
		}
		if frame.Type != wsprotocol.FrameTypeResponse || frame.ID != id {
			continue
		}
		if frame.OK == nil || !*frame.OK {
			return nil, fmt.Errorf("%s: %s", method, frame.Error)
		}
		return frame.Payload, nil
	}
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
