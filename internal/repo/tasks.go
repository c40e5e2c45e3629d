package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// TaskRepo persists tasks.
type TaskRepo struct {
	DB *sql.DB
}

const taskColumns = `id, company_id, user_id, agent_id,
	COALESCE(origin_chat_id,'') AS origin_chat_id,
	COALESCE(control_chat_id,'') AS control_chat_id,
	COALESCE(execution_chat_id,'') AS execution_chat_id,
	title, summary, status, COALESCE(ancestry,'') AS ancestry, ancestry_level,
	created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*types.Task, error) {
	var t types.Task
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.CompanyID, &t.UserID, &t.AgentID,
		&t.OriginChatID, &t.ControlChatID, &t.ExecutionChatID,
		&t.Title, &t.Summary, &t.Status, &t.Ancestry, &t.AncestryLevel,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the task, assigning an id and timestamps when unset.
func (r TaskRepo) Create(ctx context.Context, t *types.Task) error {
	if t.ID == "" {
		t.ID = types.NewTaskID()
	}
	if t.Status == "" {
		t.Status = types.TaskDraft
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id, company_id, user_id, agent_id,
		origin_chat_id, control_chat_id, execution_chat_id,
		title, summary, status, ancestry, ancestry_level, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CompanyID, t.UserID, t.AgentID,
		nullable(t.OriginChatID), nullable(t.ControlChatID), nullable(t.ExecutionChatID),
		t.Title, t.Summary, t.Status, nullable(t.Ancestry), t.AncestryLevel,
		fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get fetches a task scoped by company.
func (r TaskRepo) Get(ctx context.Context, companyID, id string) (*types.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND id=?`, companyID, id))
}

// Update changes title and summary. Nil pointers leave fields untouched.
func (r TaskRepo) Update(ctx context.Context, companyID, id string, title, summary *string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if summary != nil {
		fields = append(fields, "summary=?")
		args = append(args, *summary)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, fmtTime(time.Now().UTC()), companyID, id)
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE company_id=? AND id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Assign reassigns a task to a different agent.
func (r TaskRepo) Assign(ctx context.Context, companyID, id, agentID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET agent_id=?, updated_at=? WHERE company_id=? AND id=?`,
		agentID, fmtTime(time.Now().UTC()), companyID, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachChats records the control and execution chat ids for a task.
func (r TaskRepo) AttachChats(ctx context.Context, companyID, id, controlChatID, executionChatID string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET control_chat_id=?, execution_chat_id=?, updated_at=? WHERE company_id=? AND id=?`,
		controlChatID, executionChatID, fmtTime(time.Now().UTC()), companyID, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves the task to a new status, guarded by the transition
// table and by an optimistic check on updated_at. The task struct is
// refreshed in place on success.
func (r TaskRepo) UpdateStatus(ctx context.Context, t *types.Task, to types.TaskStatus) error {
	if !types.CanTransition(t.Status, to) {
		return &types.InvalidTransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET status=?, updated_at=? WHERE company_id=? AND id=? AND updated_at=?`,
		to, fmtTime(now), t.CompanyID, t.ID, fmtTime(t.UpdatedAt))
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return &types.ConcurrencyConflictError{TaskID: t.ID}
	}
	t.Status = to
	t.UpdatedAt = now
	return nil
}

// Children lists all descendants of the task, nearest first.
func (r TaskRepo) Children(ctx context.Context, t *types.Task) ([]*types.Task, error) {
	prefix := t.ChildrenAncestry()
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND (ancestry=? OR ancestry LIKE ?)
		 ORDER BY ancestry_level ASC, created_at ASC`,
		t.CompanyID, prefix, prefix+"/%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListByStatus lists a company's tasks in any of the given statuses.
func (r TaskRepo) ListByStatus(ctx context.Context, companyID string, statuses ...types.TaskStatus) ([]*types.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{companyID}
	for _, s := range statuses {
		args = append(args, s)
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND status IN (`+placeholders+`)
		 ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListRunnable scans tasks in the given statuses across every tenant,
// oldest first. Scheduler use only; API reads stay company-scoped.
func (r TaskRepo) ListRunnable(ctx context.Context, statuses ...types.TaskStatus) ([]*types.Task, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, s)
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status IN (`+placeholders+`)
		 ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// WaitingOnChat finds tasks paused for user input whose origin is the
// given chat.
func (r TaskRepo) WaitingOnChat(ctx context.Context, companyID, chatID string) ([]*types.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND origin_chat_id=? AND status=?
		 ORDER BY created_at ASC`, companyID, chatID, types.TaskWaitingForUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// List lists all root tasks of a company, newest first.
func (r TaskRepo) List(ctx context.Context, companyID string) ([]*types.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND ancestry IS NULL ORDER BY created_at DESC`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ByExecutionChat finds the task owning the given execution chat.
func (r TaskRepo) ByExecutionChat(ctx context.Context, companyID, chatID string) (*types.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE company_id=? AND execution_chat_id=?`, companyID, chatID))
}

func collectTasks(rows *sql.Rows) ([]*types.Task, error) {
	var res []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
