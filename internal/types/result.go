package types

import "time"

// TaskResultKind tells consumers how to interpret a result's Data field.
type TaskResultKind string

const (
	// ResultText carries the final assistant answer verbatim.
	ResultText TaskResultKind = "text"
	// ResultURL points at an artifact produced during execution.
	ResultURL TaskResultKind = "url"
)

// TaskResult is an artifact recorded when a task completes.
type TaskResult struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	AgentID   string         `json:"agent_id"`
	TaskID    string         `json:"task_id"`
	Kind      TaskResultKind `json:"kind"`
	Data      string         `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}
