package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// ResultRepo persists task results.
type ResultRepo struct {
	DB *sql.DB
}

// Create inserts the result, assigning an id and timestamp when unset.
func (r ResultRepo) Create(ctx context.Context, tr *types.TaskResult) error {
	if tr.ID == "" {
		tr.ID = types.NewResultID()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO task_results(id, company_id, agent_id, task_id, kind, data, created_at) VALUES (?,?,?,?,?,?,?)`,
		tr.ID, tr.CompanyID, tr.AgentID, tr.TaskID, tr.Kind, tr.Data, fmtTime(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}
	return nil
}

// ListByTask returns a task's results in creation order.
func (r ResultRepo) ListByTask(ctx context.Context, companyID, taskID string) ([]*types.TaskResult, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, company_id, agent_id, task_id, kind, data, created_at
		 FROM task_results WHERE company_id=? AND task_id=? ORDER BY created_at ASC`,
		companyID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []*types.TaskResult
	for rows.Next() {
		var tr types.TaskResult
		var createdAt string
		if err := rows.Scan(&tr.ID, &tr.CompanyID, &tr.AgentID, &tr.TaskID, &tr.Kind, &tr.Data, &createdAt); err != nil {
			return nil, err
		}
		if tr.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		res = append(res, &tr)
	}
	return res, rows.Err()
}
