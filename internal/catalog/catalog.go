// Package catalog serves the membership plan list and its admin maintenance.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"gymhub.np/internal/apperrors"
	"gymhub.np/internal/models"
	"gymhub.np/internal/validation"
)

// Store is the persistence the catalog needs. db.PlanStore implements it.
type Store interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	CreatePlan(ctx context.Context, p *models.Plan) error
	UpdatePlan(ctx context.Context, p *models.Plan) (bool, error)
	DeletePlan(ctx context.Context, id string) (bool, error)
}

// Cache holds the full plan list. cache.PlanCache implements it.
type Cache interface {
	Get(ctx context.Context) ([]models.Plan, bool, error)
	Set(ctx context.Context, plans []models.Plan) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	store Store
	cache Cache
}

// NewService builds the catalog. cache may be nil.
func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

// ListPlans returns every plan, cheapest first.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	if s.cache != nil {
		plans, ok, err := s.cache.Get(ctx)
		if err != nil {
			slog.Warn("Plan cache read failed, using database", "error", err)
		} else if ok {
			return plans, nil
		}
	}

	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, apperrors.Upstream("could not load plans", err)
	}
	if plans == nil {
		plans = []models.Plan{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, plans); err != nil {
			slog.Warn("Plan cache write failed", "error", err)
		}
	}
	return plans, nil
}

func (s *Service) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	if id == "" {
		return nil, apperrors.NotFound("plan not found")
	}
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("could not load plan", err)
	}
	if plan == nil {
		return nil, apperrors.NotFound("plan not found")
	}
	return plan, nil
}

func (s *Service) CreatePlan(ctx context.Context, actor *models.User, req models.PlanRequest) (*models.Plan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validatePlan(req); err != nil {
		return nil, err
	}

	plan := req.ToPlan()
	if err := s.store.CreatePlan(ctx, &plan); err != nil {
		return nil, storeError("could not create plan", err)
	}
	s.invalidate(ctx)
	slog.Info("Plan created", "planID", plan.ID, "name", plan.Name, "actor", actor.ID)
	return &plan, nil
}

// UpdatePlan replaces every editable field of plan id.
func (s *Service) UpdatePlan(ctx context.Context, actor *models.User, id string, req models.PlanRequest) (*models.Plan, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validatePlan(req); err != nil {
		return nil, err
	}

	plan := req.ToPlan()
	plan.ID = id
	found, err := s.store.UpdatePlan(ctx, &plan)
	if err != nil {
		return nil, storeError("could not update plan", err)
	}
	if !found {
		return nil, apperrors.NotFound("plan not found")
	}
	s.invalidate(ctx)

	updated, err := s.store.GetPlan(ctx, id)
	if err != nil || updated == nil {
		return &plan, nil
	}
	slog.Info("Plan updated", "planID", id, "actor", actor.ID)
	return updated, nil
}

func (s *Service) DeletePlan(ctx context.Context, actor *models.User, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	found, err := s.store.DeletePlan(ctx, id)
	if err != nil {
		return storeError("could not delete plan", err)
	}
	if !found {
		return apperrors.NotFound("plan not found")
	}
	s.invalidate(ctx)
	slog.Info("Plan deleted", "planID", id, "actor", actor.ID)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		slog.Warn("Plan cache invalidation failed", "error", err)
	}
}

func requireAdmin(actor *models.User) error {
	if !actor.IsAdmin() {
		return apperrors.Unauthorized("admin access required")
	}
	return nil
}

func validatePlan(req models.PlanRequest) error {
	if fields := validation.ValidateStruct(req); len(fields) > 0 {
		return apperrors.ValidationFields("invalid plan", fields)
	}
	return nil
}

// storeError keeps classified store errors and wraps the rest as upstream failures.
func storeError(message string, err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Upstream(message, err)
}
