// internal/handlers/plans_handlers.go
package handlers

import (
	"net/http"

	"gymhub.np/internal/middleware"
	"gymhub.np/internal/models"
)

// ListPlansHandler returns the plan list as a bare JSON array. When a member is
// signed in their current plan is flagged.
func (app *AppHandlers) ListPlansHandler(w http.ResponseWriter, r *http.Request) {
	plans, err := app.Catalog.ListPlans(r.Context())
	if err != nil {
		WriteError(w, r, err, false)
		return
	}
	if user := middleware.UserFromContext(r.Context()); user != nil && user.CurrentPlanID != nil {
		plans = markCurrentPlan(plans, *user.CurrentPlanID)
	}
	WriteJSON(w, http.StatusOK, plans)
}

// markCurrentPlan copies plans so a cached slice is never mutated.
func markCurrentPlan(plans []models.Plan, planID string) []models.Plan {
	out := make([]models.Plan, len(plans))
	copy(out, plans)
	for i := range out {
		out[i].Current = out[i].ID == planID
	}
	return out
}

func (app *AppHandlers) GetPlanHandler(w http.ResponseWriter, r *http.Request) {
	plan, err := app.Catalog.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err, false)
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}
