// internal/db/settings_db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gymhub.np/internal/config"
	"gymhub.np/internal/models"
)

// Setting keys read at runtime.
const (
	SettingSiteName          = "site_name"
	SettingRenewalNoticeDays = "renewal_notice_days"
	SettingContactEmail      = "contact_email"
)

// GetSetting returns nil, nil for an unknown key.
func GetSetting(ctx context.Context, key string) (*models.AppSetting, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	query := "SELECT setting_key, setting_value, description, updated_at FROM app_settings WHERE setting_key = ?"
	row := DB.QueryRowContext(ctx, query, key)
	setting := &models.AppSetting{}
	var value, description sql.NullString
	err := row.Scan(&setting.Key, &value, &description, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load setting", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load setting '%s': %w", key, err)
	}
	setting.Value = value.String
	setting.Description = description.String
	return setting, nil
}

// GetSettingInt returns the integer value of key, or fallback when the key is
// unset, unreadable or not a positive integer.
func GetSettingInt(ctx context.Context, key string, fallback int) int {
	setting, err := GetSetting(ctx, key)
	if err != nil || setting == nil {
		return fallback
	}
	n, err := strconv.Atoi(setting.Value)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", setting.Value)
		return fallback
	}
	return n
}

// GetAllAppSettings returns every setting, ordered by key.
func GetAllAppSettings(ctx context.Context) ([]models.AppSetting, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, "SELECT setting_key, setting_value, description, updated_at FROM app_settings ORDER BY setting_key")
	if err != nil {
		slog.Error("Failed to list settings", "error", err)
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := []models.AppSetting{}
	for rows.Next() {
		var s models.AppSetting
		var value, description sql.NullString
		if err := rows.Scan(&s.Key, &value, &description, &s.UpdatedAt); err != nil {
			slog.Error("Failed to scan setting", "error", err)
			continue
		}
		s.Value = value.String
		s.Description = description.String
		settings = append(settings, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}
	return settings, nil
}

// UpdateSetting upserts a setting. An empty description keeps the stored one.
func UpdateSetting(ctx context.Context, key string, value string, description ...string) error {
	if DB == nil {
		return errNotInitialized
	}

	desc := ""
	if len(description) > 0 {
		desc = description[0]
	}

	query := `
		INSERT INTO app_settings (setting_key, setting_value, description, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		setting_value = VALUES(setting_value),
		description = IF(VALUES(description) = '' AND description IS NOT NULL, description, VALUES(description)),
		updated_at = VALUES(updated_at)
	`
	_, err := DB.ExecContext(ctx, query, key, value, desc, time.Now())
	if err != nil {
		slog.Error("Failed to upsert setting", "key", key, "error", err)
		return fmt.Errorf("failed to save setting '%s': %w", key, err)
	}
	slog.Info("Setting saved", "key", key, "value", value)
	return nil
}

// SeedInitialSettings inserts defaults for keys that do not exist yet.
func SeedInitialSettings(ctx context.Context, cfg *config.Config) {
	defaultSettings := []struct {
		Key         string
		Value       string
		Description string
	}{
		{SettingSiteName, cfg.SiteName, "Gym name used in emails and page titles."},
		{SettingRenewalNoticeDays, strconv.Itoa(cfg.Reconcile.NoticeWindowDays), "Days before the end date when the renewal reminder is sent."},
		{SettingContactEmail, cfg.Email.Sender, "Address shown to members for support."},
	}

	for _, s := range defaultSettings {
		existingSetting, err := GetSetting(ctx, s.Key)
		if err != nil {
			slog.Error("Failed to check setting during seeding", "key", s.Key, "error", err)
			continue
		}
		if existingSetting == nil {
			if err := UpdateSetting(ctx, s.Key, s.Value, s.Description); err != nil {
				slog.Error("Failed to seed setting", "key", s.Key, "error", err)
			}
		}
	}
}
