package repository

import (
	"context"
	"fmt"

	"github.com/landrecords/portal/common/models"
)

// UpsertUser creates a user or replaces its name and role
func (r *Repository) UpsertUser(ctx context.Context, u models.User) error {
	query := `
		INSERT INTO portal_user (id, name, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
	`
	if _, err := r.db.Exec(ctx, query, u.ID, u.Name, string(u.Role)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUserRole returns the role of userID
func (r *Repository) GetUserRole(ctx context.Context, userID string) (models.Role, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM portal_user WHERE id = $1`, userID).Scan(&role)
	if err != nil {
		return "", notFound(err, "user %s", userID)
	}
	return models.Role(role), nil
}
