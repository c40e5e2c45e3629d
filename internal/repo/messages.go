package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// MessageRepo persists chat messages.
type MessageRepo struct {
	DB *sql.DB
}

const messageColumns = `id, company_id, chat_id,
	COALESCE(agent_id,'') AS agent_id, COALESCE(user_id,'') AS user_id,
	status, role, content, tool_calls, COALESCE(tool_call_id,'') AS tool_call_id,
	is_self_reflection, is_internal_tool_output, created_at`

func scanMessage(row interface{ Scan(...any) error }) (*types.Message, error) {
	var m types.Message
	var toolCalls sql.NullString
	var createdAt string
	var reflection, internal int
	err := row.Scan(&m.ID, &m.CompanyID, &m.ChatID, &m.AgentID, &m.UserID,
		&m.Status, &m.Role, &m.Content, &toolCalls, &m.ToolCallID,
		&reflection, &internal, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls of %s: %w", m.ID, err)
		}
	}
	m.IsSelfReflection = reflection != 0
	m.IsInternalToolOutput = internal != 0
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func encodeToolCalls(calls []types.ToolCall) (any, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return nil, fmt.Errorf("encode tool calls: %w", err)
	}
	return string(data), nil
}

// Create inserts a single message, assigning an id and timestamp when unset.
func (r MessageRepo) Create(ctx context.Context, m *types.Message) error {
	if m.ID == "" {
		m.ID = types.NewMessageID()
	}
	if m.Status == "" {
		m.Status = types.MessageCompleted
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	calls, err := encodeToolCalls(m.ToolCalls)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO messages(id, company_id, chat_id, agent_id, user_id,
		status, role, content, tool_calls, tool_call_id,
		is_self_reflection, is_internal_tool_output, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.CompanyID, m.ChatID, nullable(m.AgentID), nullable(m.UserID),
		m.Status, m.Role, m.Content, calls, nullable(m.ToolCallID),
		boolToInt(m.IsSelfReflection), boolToInt(m.IsInternalToolOutput), fmtTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// CreateMany inserts messages atomically, preserving slice order. Creation
// times are spaced one microsecond apart so listings replay the order.
func (r MessageRepo) CreateMany(ctx context.Context, msgs []*types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	base := time.Now().UTC()
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = types.NewMessageID()
		}
		if m.Status == "" {
			m.Status = types.MessageCompleted
		}
		m.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		calls, err := encodeToolCalls(m.ToolCalls)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO messages(id, company_id, chat_id, agent_id, user_id,
			status, role, content, tool_calls, tool_call_id,
			is_self_reflection, is_internal_tool_output, created_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			m.ID, m.CompanyID, m.ChatID, nullable(m.AgentID), nullable(m.UserID),
			m.Status, m.Role, m.Content, calls, nullable(m.ToolCallID),
			boolToInt(m.IsSelfReflection), boolToInt(m.IsInternalToolOutput), fmtTime(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// ListOptions filters chat listings.
type ListOptions struct {
	// IncludeReflection keeps self-reflection messages in the result.
	IncludeReflection bool
	// IncludeInternal keeps internal tool outputs in the result.
	IncludeInternal bool
}

// List returns a chat's messages in creation order.
func (r MessageRepo) List(ctx context.Context, companyID, chatID string, opts ListOptions) ([]*types.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE company_id=? AND chat_id=?`
	if !opts.IncludeReflection {
		q += ` AND is_self_reflection=0`
	}
	if !opts.IncludeInternal {
		q += ` AND is_internal_tool_output=0`
	}
	q += ` ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, q, companyID, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []*types.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// Last returns the most recent message of a chat, reflection included.
func (r MessageRepo) Last(ctx context.Context, companyID, chatID string) (*types.Message, error) {
	return scanMessage(r.DB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE company_id=? AND chat_id=?
		 ORDER BY created_at DESC LIMIT 1`, companyID, chatID))
}

// LastNonReflection returns the most recent message that is neither a
// self-reflection turn nor an internal tool output.
func (r MessageRepo) LastNonReflection(ctx context.Context, companyID, chatID string) (*types.Message, error) {
	return scanMessage(r.DB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE company_id=? AND chat_id=?
		 AND is_self_reflection=0 AND is_internal_tool_output=0
		 ORDER BY created_at DESC LIMIT 1`, companyID, chatID))
}

// Finalize fills in a pending message once the model turn completes.
func (r MessageRepo) Finalize(ctx context.Context, m *types.Message, content string, calls []types.ToolCall, status types.MessageStatus) error {
	encoded, err := encodeToolCalls(calls)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE messages SET content=?, tool_calls=?, status=? WHERE company_id=? AND id=?`,
		content, encoded, status, m.CompanyID, m.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	m.Content = content
	m.ToolCalls = calls
	m.Status = status
	return nil
}

// UpdateStatus changes a message's lifecycle status.
func (r MessageRepo) UpdateStatus(ctx context.Context, companyID, id string, status types.MessageStatus) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE messages SET status=? WHERE company_id=? AND id=?`, status, companyID, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAssistantTurns counts completed assistant turns in a chat. Used to
// enforce per-task execution step limits.
func (r MessageRepo) CountAssistantTurns(ctx context.Context, companyID, chatID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE company_id=? AND chat_id=? AND role=? AND is_self_reflection=0`,
		companyID, chatID, types.RoleAssistant).Scan(&n)
	return n, err
}
