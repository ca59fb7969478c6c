// internal/db/plans_db.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gymhub.np/internal/models"
)

const planColumns = `id, name, price, duration_days, includes_cardio, features, created_at, updated_at`

func scanPlan(row scanner) (*models.Plan, error) {
	var p models.Plan
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.IncludesCardio, &features, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("plan %s has malformed features: %w", p.ID, err)
		}
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}

// ListPlans returns every plan, cheapest first.
func ListPlans(ctx context.Context) ([]models.Plan, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	rows, err := DB.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY price ASC, name ASC`)
	if err != nil {
		slog.Error("Failed to list plans", "error", err)
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}
	return plans, nil
}

// GetPlanByID returns nil, nil for an unknown id.
func GetPlanByID(ctx context.Context, id string) (*models.Plan, error) {
	if DB == nil {
		return nil, errNotInitialized
	}
	p, err := scanPlan(DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("Failed to load plan", "planID", id, "error", err)
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return p, nil
}

// CreatePlan inserts p, assigning an id and timestamps when absent.
func CreatePlan(ctx context.Context, p *models.Plan) error {
	if DB == nil {
		return errNotInitialized
	}
	if p.ID == "" {
		p.ID = "pln_" + uuid.NewString()[:12]
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}

	_, err = DB.ExecContext(ctx, `INSERT INTO plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.DurationDays, p.IncludesCardio, features, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("Failed to create plan", "planID", p.ID, "name", p.Name, "error", err)
		return translateWriteError(err, "plan")
	}
	return nil
}

// UpdatePlan replaces the editable fields of p. It reports false for an unknown id.
func UpdatePlan(ctx context.Context, p *models.Plan) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return false, fmt.Errorf("failed to encode plan features: %w", err)
	}
	p.UpdatedAt = time.Now()
	res, err := DB.ExecContext(ctx, `UPDATE plans SET name = ?, price = ?, duration_days = ?, includes_cardio = ?, features = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Price, p.DurationDays, p.IncludesCardio, features, p.UpdatedAt, p.ID)
	if err != nil {
		slog.Error("Failed to update plan", "planID", p.ID, "error", err)
		return false, fmt.Errorf("failed to update plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// MySQL reports 0 for an unchanged row, so check existence.
		existing, err := GetPlanByID(ctx, p.ID)
		if err != nil {
			return false, err
		}
		return existing != nil, nil
	}
	return true, nil
}

// DeletePlan reports false for an unknown id.
func DeletePlan(ctx context.Context, id string) (bool, error) {
	if DB == nil {
		return false, errNotInitialized
	}
	res, err := DB.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		slog.Error("Failed to delete plan", "planID", id, "error", err)
		return false, fmt.Errorf("failed to delete plan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// PlanStore exposes the plan queries over the shared pool.
type PlanStore struct{}

func (PlanStore) ListPlans(ctx context.Context) ([]models.Plan, error) { return ListPlans(ctx) }

func (PlanStore) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	return GetPlanByID(ctx, id)
}

func (PlanStore) CreatePlan(ctx context.Context, p *models.Plan) error { return CreatePlan(ctx, p) }

func (PlanStore) UpdatePlan(ctx context.Context, p *models.Plan) (bool, error) {
	return UpdatePlan(ctx, p)
}

func (PlanStore) DeletePlan(ctx context.Context, id string) (bool, error) {
	return DeletePlan(ctx, id)
}
