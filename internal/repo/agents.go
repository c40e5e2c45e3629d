package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// AgentRepo persists agents.
type AgentRepo struct {
	DB *sql.DB
}

const agentColumns = `id, company_id, name, description, system_prompt,
	COALESCE(model_id,'') AS model_id,
	code_interpreter_enabled, web_browsing_enabled, execution_steps_limit,
	created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*types.Agent, error) {
	var a types.Agent
	var createdAt, updatedAt string
	var code, web int
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.Description, &a.SystemPrompt,
		&a.ModelID, &code, &web, &a.ExecutionStepsLimit, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.CodeInterpreterEnabled = code != 0
	a.WebBrowsingEnabled = web != 0
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts the agent, assigning an id and timestamps when unset.
func (r AgentRepo) Create(ctx context.Context, a *types.Agent) error {
	if a.ID == "" {
		a.ID = types.NewAgentID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	_, err := r.DB.ExecContext(ctx, `INSERT INTO agents(id, company_id, name, description, system_prompt,
		model_id, code_interpreter_enabled, web_browsing_enabled, execution_steps_limit, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.CompanyID, a.Name, a.Description, a.SystemPrompt,
		nullable(a.ModelID), boolToInt(a.CodeInterpreterEnabled), boolToInt(a.WebBrowsingEnabled),
		a.ExecutionStepsLimit, fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// UpsertByName inserts the agent or, when the company already has one with
// the same name, updates it in place. Seed files are applied through this so
// restarts refresh definitions without duplicating rows.
func (r AgentRepo) UpsertByName(ctx context.Context, a *types.Agent) error {
	existing, err := r.ByName(ctx, a.CompanyID, a.Name)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, a)
	}
	if err != nil {
		return err
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	_, err = r.DB.ExecContext(ctx, `UPDATE agents SET description=?, system_prompt=?, model_id=?,
		code_interpreter_enabled=?, web_browsing_enabled=?, execution_steps_limit=?, updated_at=?
		WHERE company_id=? AND id=?`,
		a.Description, a.SystemPrompt, nullable(a.ModelID),
		boolToInt(a.CodeInterpreterEnabled), boolToInt(a.WebBrowsingEnabled),
		a.ExecutionStepsLimit, fmtTime(a.UpdatedAt), a.CompanyID, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	return nil
}

// ByName fetches a company's agent by its unique name.
func (r AgentRepo) ByName(ctx context.Context, companyID, name string) (*types.Agent, error) {
	return scanAgent(r.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE company_id=? AND name=?`, companyID, name))
}

// Get fetches an agent scoped by company.
func (r AgentRepo) Get(ctx context.Context, companyID, id string) (*types.Agent, error) {
	return scanAgent(r.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE company_id=? AND id=?`, companyID, id))
}

// List returns a company's agents, oldest first.
func (r AgentRepo) List(ctx context.Context, companyID string) ([]*types.Agent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE company_id=? ORDER BY created_at ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []*types.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
