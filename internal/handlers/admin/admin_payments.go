// internal/handlers/admin/admin_payments.go
package adminhandlers

import (
	"net/http"
	"strconv"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/db"
	"gymhub.np/internal/handlers"
	"gymhub.np/internal/models"
)

// ListPaymentsHandler serves ?sortBy=&sortOrder=&search=&status=&limit=&page=.
func ListPaymentsHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := models.PaymentFilter{
			SortBy:    q.Get("sortBy"),
			SortOrder: q.Get("sortOrder"),
			Search:    q.Get("search"),
			Status:    models.PaymentStatus(q.Get("status")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			writeError(w, r, apperrors.Validation("unknown payment status "+string(filter.Status)))
			return
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Page, _ = strconv.Atoi(q.Get("page"))

		payments, total, err := db.ListPayments(r.Context(), filter)
		if err != nil {
			writeError(w, r, apperrors.Upstream("could not load payments", err))
			return
		}

		page, limit := handlers.PageParams(r, 100, 500)
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"payments":   payments,
			"pagination": db.BuildPagination(total, page, limit),
		})
	}
}
