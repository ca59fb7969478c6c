package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymhub.np/internal/models"
)

var planCols = []string{"id", "name", "price", "duration_days", "includes_cardio", "features", "created_at", "updated_at"}

func TestListPlans_DecodesFeatures(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`FROM plans ORDER BY price ASC`).WillReturnRows(sqlmock.NewRows(planCols).
		AddRow("basic", "Basic Plan", "1500.00", 30, false, []byte(`["Locker access"]`), now, now).
		AddRow("premium", "Premium Plan", "4000.00", 365, true, []byte(`["24/7 gym access","Nutrition consultation"]`), now, now))

	plans, err := ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, []string{"Locker access"}, plans[0].Features)
	assert.True(t, plans[1].Price.Equal(decimal.NewFromInt(4000)))
	assert.True(t, plans[1].IncludesCardio)
}

func TestGetPlanByID_NotFound(t *testing.T) {
	mock := SetupMockDB(t)
	mock.ExpectQuery(`FROM plans WHERE id = \?`).WithArgs("gold").WillReturnRows(sqlmock.NewRows(planCols))

	p, err := GetPlanByID(context.Background(), "gold")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCreatePlan_AssignsID(t *testing.T) {
	mock := SetupMockDB(t)
	mock.ExpectExec(`INSERT INTO plans`).
		WithArgs(sqlmock.AnyArg(), "Student Plan", "999", 30, false, []byte(`["Weekday access"]`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := &models.Plan{Name: "Student Plan", Price: decimal.NewFromInt(999), DurationDays: 30, Features: []string{"Weekday access"}}
	require.NoError(t, CreatePlan(context.Background(), p))
	assert.Contains(t, p.ID, "pln_")
	assert.False(t, p.CreatedAt.IsZero())
}

func TestUpdatePlan_UnchangedRowStillFound(t *testing.T) {
	mock := SetupMockDB(t)
	now := time.Now()

	mock.ExpectExec(`UPDATE plans SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM plans WHERE id = \?`).WithArgs("basic").
		WillReturnRows(sqlmock.NewRows(planCols).AddRow("basic", "Basic Plan", "1500", 30, false, []byte(`[]`), now, now))

	found, err := UpdatePlan(context.Background(), &models.Plan{ID: "basic", Name: "Basic Plan", Price: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDeletePlan_Unknown(t *testing.T) {
	mock := SetupMockDB(t)
	mock.ExpectExec(`DELETE FROM plans WHERE id = \?`).WithArgs("gold").WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := DeletePlan(context.Background(), "gold")
	require.NoError(t, err)
	assert.False(t, found)
}
