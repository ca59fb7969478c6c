// internal/db/users.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
)

// AdminUpdateUserData holds the fields an administrator may change.
// An empty PasswordHash keeps the stored one.
type AdminUpdateUserData struct {
	Name         string
	Email        string
	PasswordHash string
	RoleName     string
}

func translateUserWriteError(err error) error {
	if isMySQLError(err, errDuplicateEntry) {
		return apperrors.Conflict("a user with this email already exists")
	}
	return fmt.Errorf("failed to save user: %w", err)
}

// CreateUser inserts user with the given role and fills in its id and timestamps.
func CreateUser(ctx context.Context, user *models.User, roleName string) error {
	if DB == nil {
		return errNotInitialized
	}

	role, err := GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("failed to resolve role '%s': %w", roleName, err)
	}
	if role == nil {
		return fmt.Errorf("role '%s' is not seeded", roleName)
	}

	if user.ID == "" {
		user.ID = "usr_" + uuid.NewString()[:12]
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	query := `INSERT INTO users (id, name, email, password_hash, role_id, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = DB.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.PasswordHash, role.ID, now, now)
	if err != nil {
		if !isMySQLError(err, errDuplicateEntry) {
			slog.Error("Failed to create user", "email", user.Email, "error", err)
		}
		return translateUserWriteError(err)
	}

	user.RoleID = &role.ID
	user.RoleName = &role.Name
	slog.Info("User created", "user_id", user.ID, "email", user.Email, "role", role.Name)
	return nil
}

// GetUserByEmail returns nil, nil when no user has the address.
func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRowContext(ctx, getFullUserQuery()+" WHERE u.email = ?", strings.ToLower(strings.TrimSpace(email)))
	return scanOptionalUser(row)
}

// GetUserByID returns nil, nil for an unknown id.
func GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	row := DB.QueryRowContext(ctx, getFullUserQuery()+" WHERE u.id = ?", id)
	return scanOptionalUser(row)
}

func scanOptionalUser(row scanner) (*models.User, error) {
	user, err := scanFullUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// SetUserRole assigns the named role to the user.
func SetUserRole(ctx context.Context, userID string, roleName string) error {
	if DB == nil {
		return errNotInitialized
	}
	role, err := GetRoleByName(ctx, roleName)
	if err != nil {
		return fmt.Errorf("failed to resolve role '%s': %w", roleName, err)
	}
	if role == nil {
		return apperrors.Validation("unknown role " + roleName)
	}

	_, err = DB.ExecContext(ctx, `UPDATE users SET role_id = ?, updated_at = ? WHERE id = ?`, role.ID, time.Now(), userID)
	if err != nil {
		slog.Error("Failed to update user role", "userID", userID, "role", roleName, "error", err)
		return fmt.Errorf("failed to update user role: %w", err)
	}
	slog.Info("User role updated", "userID", userID, "role", roleName)
	return nil
}

// UpdateUserByAdmin applies data to the user. It reports false for an unknown id.
func UpdateUserByAdmin(ctx context.Context, userID string, data AdminUpdateUserData) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	existing, err := GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	sets := []string{"name = ?", "email = ?"}
	args := []any{data.Name, strings.ToLower(strings.TrimSpace(data.Email))}
	if data.PasswordHash != "" {
		sets = append(sets, "password_hash = ?")
		args = append(args, data.PasswordHash)
	}
	if data.RoleName != "" {
		role, err := GetRoleByName(ctx, data.RoleName)
		if err != nil {
			return false, fmt.Errorf("failed to resolve role '%s': %w", data.RoleName, err)
		}
		if role == nil {
			return false, apperrors.Validation("unknown role " + data.RoleName)
		}
		sets = append(sets, "role_id = ?")
		args = append(args, role.ID)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), userID)

	_, err = DB.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if !isMySQLError(err, errDuplicateEntry) {
			slog.Error("Failed to update user", "userID", userID, "error", err)
		}
		return false, translateUserWriteError(err)
	}
	slog.Info("User updated by admin", "userID", userID)
	return true, nil
}

// ListUsers returns one page of users, newest first, and the total count.
func ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	if DB == nil {
		return nil, 0, errNotInitialized
	}

	var totalUsers int
	if err := DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&totalUsers); err != nil {
		slog.Error("Failed to count users", "error", err)
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := DB.QueryContext(ctx, getFullUserQuery()+" ORDER BY u.created_at DESC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, errScan := scanFullUser(rows)
		if errScan != nil {
			slog.Error("Failed to scan user row", "error", errScan)
			continue
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		slog.Error("Failed to iterate users", "error", err)
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, totalUsers, nil
}

func UpdateUserName(ctx context.Context, userID, name string) error {
	if DB == nil {
		return errNotInitialized
	}
	_, err := DB.ExecContext(ctx, `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now(), userID)
	if err != nil {
		slog.Error("Failed to update user name", "userID", userID, "error", err)
		return fmt.Errorf("failed to update profile: %w", err)
	}
	slog.Info("User profile updated", "userID", userID)
	return nil
}

func UpdateUserPassword(ctx context.Context, userID, newPasswordHash string) error {
	if DB == nil {
		return errNotInitialized
	}
	_, err := DB.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, newPasswordHash, time.Now(), userID)
	if err != nil {
		slog.Error("Failed to update password", "userID", userID, "error", err)
		return fmt.Errorf("failed to update password: %w", err)
	}
	slog.Info("User password updated", "userID", userID)
	return nil
}

// DeleteUser removes the user together with their payments and subscriptions.
// It reports false for an unknown id.
func DeleteUser(ctx context.Context, userID string) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	res, err := DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		slog.Error("Failed to delete user", "userID", userID, "error", err)
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		slog.Info("User deleted", "userID", userID)
	}
	return affected > 0, nil
}

func getFullUserQuery() string {
	return `SELECT u.id, u.name, u.email, u.password_hash, u.role_id, r.name AS role_name,
                   u.current_plan_id, u.created_at, u.updated_at
            FROM users u
            LEFT JOIN roles r ON u.role_id = r.id`
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFullUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var roleID sql.NullInt64
	var roleName, currentPlanID sql.NullString

	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash,
		&roleID, &roleName, &currentPlanID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if roleID.Valid {
		user.RoleID = &roleID.Int64
	}
	if roleName.Valid {
		user.RoleName = &roleName.String
	}
	if currentPlanID.Valid {
		user.CurrentPlanID = &currentPlanID.String
	}
	return user, nil
}
