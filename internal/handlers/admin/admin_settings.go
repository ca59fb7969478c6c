// internal/handlers/admin/admin_settings.go
package adminhandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
	"gymhub.np/internal/models"
)

// settingValidators lists the keys the admin API may change.
var settingValidators = map[string]func(string) error{
	db.SettingSiteName: func(v string) error {
		if v == "" || len(v) > 120 {
			return errors.New("must be 1 to 120 characters")
		}
		return nil
	},
	db.SettingRenewalNoticeDays: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 30 {
			return errors.New("must be a whole number of days between 1 and 30")
		}
		return nil
	},
	db.SettingContactEmail: func(v string) error {
		if _, err := mail.ParseAddress(v); err != nil {
			return errors.New("must be a valid email address")
		}
		return nil
	},
}

func ListSettingsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := db.GetAllAppSettings(r.Context())
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load settings", err))
			return
		}
		if settings == nil {
			settings = []models.AppSetting{}
		}
		handlers.WriteJSON(w, http.StatusOK, settings)
	}
}

// UpdateSettingsHandler takes a flat {"key": "value"} object. Nothing is saved
// unless every key is known and every value is valid.
func UpdateSettingsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := handlers.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if len(req) == 0 {
			writeError(w, r, apperrors.Validation("no settings given"))
			return
		}

		fields := url.Values{}
		for key, value := range req {
			check, ok := settingValidators[key]
			if !ok {
				fields[key] = append(fields[key], "Unknown setting.")
				continue
			}
			req[key] = strings.TrimSpace(value)
			if err := check(req[key]); err != nil {
				fields[key] = append(fields[key], "Value "+err.Error()+".")
			}
		}
		if len(fields) > 0 {
			writeError(w, r, apperrors.ValidationFields("invalid settings", fields))
			return
		}

		for key, value := range req {
			if err := db.UpdateSetting(r.Context(), key, value); err != nil {
				writeError(w, r, apperrors.Upstream("could not save setting "+key, err))
				return
			}
		}
		slog.Info("Settings updated by admin", "adminID", actorID(r), "keys", len(req))

		settings, err := db.GetAllAppSettings(r.Context())
		if err != nil {
			handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		handlers.WriteJSON(w, http.StatusOK, settings)
	}
}
