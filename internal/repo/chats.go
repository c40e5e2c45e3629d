package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

// ChatRepo persists chats.
type ChatRepo struct {
	DB *sql.DB
}

// Create inserts the chat, assigning an id and timestamps when unset.
func (r ChatRepo) Create(ctx context.Context, c *types.Chat) error {
	if c.ID == "" {
		c.ID = types.NewChatID()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO chats(id, company_id, user_id, kind, created_at, updated_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.CompanyID, c.UserID, c.Kind, fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// Get fetches a chat scoped by company.
func (r ChatRepo) Get(ctx context.Context, companyID, id string) (*types.Chat, error) {
	var c types.Chat
	var createdAt, updatedAt string
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, company_id, user_id, kind, created_at, updated_at FROM chats WHERE company_id=? AND id=?`,
		companyID, id).Scan(&c.ID, &c.CompanyID, &c.UserID, &c.Kind, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Touch bumps the chat's updated_at to now.
func (r ChatRepo) Touch(ctx context.Context, companyID, id string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE chats SET updated_at=? WHERE company_id=? AND id=?`,
		fmtTime(time.Now().UTC()), companyID, id)
	return err
}
