// internal/handlers/admin/admin_reports.go
package adminhandlers

import (
	"net/http"
	"time"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
)

func StatsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetAdminStats(r.Context(), time.Now())
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load statistics", err))
			return
		}
		handlers.WriteJSON(w, http.StatusOK, stats)
	}
}
