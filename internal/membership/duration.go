// internal/membership/duration.go
package membership

import (
	"strings"

	"gymhub.np/internal/models"
)

// DefaultDurationDays applies when neither the plan nor its name says otherwise.
const DefaultDurationDays = 30

// Checked in order, so "Quarterly Plan With Cardio" resolves before "basic" could.
var nameDurations = []struct {
	keywords []string
	days     int
}{
	{[]string{"yearly", "premium"}, 365},
	{[]string{"quarterly", "standard"}, 90},
	{[]string{"monthly", "basic"}, 30},
}

// DurationDaysForName derives the entitlement length from a plan name.
func DurationDaysForName(name string) int {
	lower := strings.ToLower(name)
	for _, nd := range nameDurations {
		for _, kw := range nd.keywords {
			if strings.Contains(lower, kw) {
				return nd.days
			}
		}
	}
	return DefaultDurationDays
}

// ResolveDurationDays prefers the plan's explicit duration and falls back to
// the name the checkout page sent.
func ResolveDurationDays(plan *models.Plan, name string) int {
	if plan != nil && plan.DurationDays > 0 {
		return plan.DurationDays
	}
	if name == "" && plan != nil {
		name = plan.Name
	}
	return DurationDaysForName(name)
}
