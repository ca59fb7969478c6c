// internal/db/roles_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymhub.np/internal/models"
)

// CreateRoleIfNotExists returns the id of the named role, creating it if needed.
func CreateRoleIfNotExists(ctx context.Context, role *models.Role) (int64, error) {
	if DB == nil {
		return 0, errNotInitialized
	}
	existingRole, err := GetRoleByName(ctx, role.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to check role '%s': %w", role.Name, err)
	}
	if existingRole != nil {
		slog.Debug("Role already exists", "role_name", role.Name, "role_id", existingRole.ID)
		return existingRole.ID, nil
	}

	query := `INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)`
	now := time.Now()
	res, err := DB.ExecContext(ctx, query, role.Name, role.Description, now, now)
	if err != nil {
		if isMySQLError(err, errDuplicateEntry) {
			// Another instance seeded it first.
			if retry, retryErr := GetRoleByName(ctx, role.Name); retryErr == nil && retry != nil {
				return retry.ID, nil
			}
		}
		slog.Error("Failed to create role", "role_name", role.Name, "error", err)
		return 0, fmt.Errorf("failed to create role '%s': %w", role.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read id of role '%s': %w", role.Name, err)
	}
	slog.Info("Role created", "role_id", id, "role_name", role.Name)
	return id, nil
}

// GetRoleByName returns nil, nil for an unknown role.
func GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	query := `SELECT id, name, description, created_at, updated_at FROM roles WHERE name = ?`
	row := DB.QueryRowContext(ctx, query, strings.ToLower(name))
	role := &models.Role{}
	var description sql.NullString
	err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load role", "name", name, "error", err)
		return nil, fmt.Errorf("failed to load role '%s': %w", name, err)
	}
	role.Description = description.String
	return role, nil
}

// GetAllRoles lists the roles by name.
func GetAllRoles(ctx context.Context) ([]models.Role, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name ASC`)
	if err != nil {
		slog.Error("Failed to list roles", "error", err)
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var role models.Role
		var description sql.NullString
		if err := rows.Scan(&role.ID, &role.Name, &description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			slog.Error("Failed to scan role", "error", err)
			continue
		}
		role.Description = description.String
		roles = append(roles, role)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}
