// internal/handlers/admin/admin_plans.go
package adminhandlers

import (
	"net/http"

	"gymhub.np/internal/handlers"
	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
)

// The admin API calls plans "subscriptions", like the dashboard does.

func ListPlansHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := app.Catalog.ListPlans(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, plans)
	}
}

func GetPlanHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := app.Catalog.GetPlan(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, plan)
	}
}

func CreatePlanHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PlanRequest
		if err := handlers.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		plan, err := app.Catalog.CreatePlan(r.Context(), middleware.UserFromContext(r.Context()), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		handlers.WriteJSON(w, http.StatusCreated, plan)
	}
}

func UpdatePlanHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PlanRequest
		if err := handlers.DecodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		plan, err := app.Catalog.UpdatePlan(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id"), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, plan)
	}
}

func DeletePlanHandler(app *handlers.AppHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.Catalog.DeletePlan(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
