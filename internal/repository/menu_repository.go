package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkv-labs/pps-api/internal/models"
)

// MenuRepository reads the role-scoped menu tree.
type MenuRepository struct {
	db *sqlx.DB
}

// NewMenuRepository creates a new instance of MenuRepository.
func NewMenuRepository(db *sqlx.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

// ListForRole returns the menus a role may view, joined with its permissions.
func (r *MenuRepository) ListForRole(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	const query = `SELECT p.id, p.role, p.menu_id, p.can_view, p.can_edit, p.created_at, p.updated_at, m.name AS menu_name, m.path AS menu_path
		FROM permissions p
		JOIN menus m ON m.id = p.menu_id
		WHERE p.role = $1 AND p.can_view = TRUE AND m.active = TRUE
		ORDER BY m.priority, m.id`
	var permissions []models.Permission
	if err := r.db.SelectContext(ctx, &permissions, query, role); err != nil {
		return nil, fmt.Errorf("list menus for role: %w", err)
	}
	return permissions, nil
}

// CanEdit reports whether a role holds edit permission on a menu path.
func (r *MenuRepository) CanEdit(ctx context.Context, role models.UserRole, path string) (bool, error) {
	const query = `SELECT COUNT(*) FROM permissions p JOIN menus m ON m.id = p.menu_id WHERE p.role = $1 AND m.path = $2 AND p.can_edit = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, role, path); err != nil {
		return false, fmt.Errorf("check edit permission: %w", err)
	}
	return total > 0, nil
}
