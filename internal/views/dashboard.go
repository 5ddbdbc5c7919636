package views

import (
	"github.com/shopspring/decimal"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// Dashboard bundles the stats cards and summaries shown on the home page.
type Dashboard struct {
	Loading             bool                         `json:"loading"`
	TotalBudgets        int                          `json:"total_budgets"`
	ActiveBudgets       int                          `json:"active_budgets"`
	TotalAllocated      decimal.Decimal              `json:"total_allocated"`
	TotalSpent          decimal.Decimal              `json:"total_spent"`
	UtilizationRate     decimal.Decimal              `json:"utilization_rate"`
	ExceededBudgets     int                          `json:"exceeded_budgets"`
	TotalExceeded       decimal.Decimal              `json:"total_exceeded"`
	PendingAnomalies    int                          `json:"pending_anomalies"`
	AnomalyBreakdown    map[models.AnomalyStatus]int `json:"anomaly_breakdown"`
	UnreadNotifications int                          `json:"unread_notifications"`
	SpendingByCategory  []Spending                   `json:"spending_by_category"`
	SpendingByTeam      []Spending                   `json:"spending_by_team"`

	// Set only for roles that can see the HR inbox.
	NewFeedback *int          `json:"new_feedback,omitempty"`
	Feedback    *BucketCounts `json:"feedback,omitempty"`
}

// BuildDashboard computes the dashboard for a user with the given role.
// includeFeedback adds the HR inbox counts.
func BuildDashboard(s cache.Snapshot, role models.Role, includeFeedback bool) Dashboard {
	d := Dashboard{
		Loading:             s.Loading,
		TotalBudgets:        len(s.Budgets),
		ActiveBudgets:       ActiveBudgetsCount(s),
		TotalAllocated:      TotalAllocated(s),
		TotalSpent:          TotalSpent(s),
		UtilizationRate:     UtilizationRate(s),
		ExceededBudgets:     len(ExceededBudgets(s)),
		TotalExceeded:       TotalExceeded(s),
		PendingAnomalies:    AnomaliesCount(s),
		AnomalyBreakdown:    AnomalyStatusBreakdown(s),
		UnreadNotifications: UnreadNotificationsFor(s, role),
		SpendingByCategory:  SpendingByCategory(s),
		SpendingByTeam:      SpendingByTeam(s),
	}
	if includeFeedback {
		n := NewFeedbackCount(s)
		buckets := FeedbackBuckets(s)
		d.NewFeedback = &n
		d.Feedback = &buckets
	}
	return d
}
