// Package views derives aggregates from a cache snapshot. Every function is
// pure and recomputes from the snapshot it is given, so callers should take
// a fresh snapshot per request.
package views

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/models"
)

var hundred = decimal.NewFromInt(100)

// TotalAllocated sums AllocatedAmount over all budgets.
func TotalAllocated(s cache.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.Budgets {
		total = total.Add(b.AllocatedAmount)
	}
	return total
}

// TotalSpent sums SpentAmount over all budgets.
func TotalSpent(s cache.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.Budgets {
		total = total.Add(b.SpentAmount)
	}
	return total
}

// UtilizationRate is TotalSpent as a percentage of TotalAllocated, rounded
// to one place. It is zero when nothing is allocated.
func UtilizationRate(s cache.Snapshot) decimal.Decimal {
	allocated := TotalAllocated(s)
	if !allocated.IsPositive() {
		return decimal.Zero
	}
	return TotalSpent(s).Div(allocated).Mul(hundred).Round(1)
}

// AnomaliesCount counts pending anomalies.
func AnomaliesCount(s cache.Snapshot) int {
	n := 0
	for _, a := range s.Anomalies {
		if a.Status == models.AnomalyStatusPending {
			n++
		}
	}
	return n
}

// UnreadNotificationsCount counts unread notifications.
func UnreadNotificationsCount(s cache.Snapshot) int {
	n := 0
	for _, nt := range s.Notifications {
		if !nt.Read {
			n++
		}
	}
	return n
}

// UnreadNotificationsFor counts unread notifications visible to role.
func UnreadNotificationsFor(s cache.Snapshot, role models.Role) int {
	n := 0
	for _, nt := range s.Notifications {
		if !nt.Read && nt.VisibleTo(role) {
			n++
		}
	}
	return n
}

// NotificationsFor returns notifications visible to role, newest first.
func NotificationsFor(s cache.Snapshot, role models.Role) []models.Notification {
	var out []models.Notification
	for _, nt := range s.Notifications {
		if nt.VisibleTo(role) {
			out = append(out, nt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// NewFeedbackCount counts feedback reports still in status new.
func NewFeedbackCount(s cache.Snapshot) int {
	return len(FeedbackByStatus(s, models.FeedbackStatusNew))
}

// BudgetExpenses returns the expenses logged against budgetID in arrival order.
func BudgetExpenses(s cache.Snapshot, budgetID string) []models.Expense {
	var out []models.Expense
	for _, e := range s.Expenses {
		if e.BudgetID == budgetID {
			out = append(out, e)
		}
	}
	return out
}

// ActiveBudgetsCount counts budgets in status active.
func ActiveBudgetsCount(s cache.Snapshot) int {
	n := 0
	for _, b := range s.Budgets {
		if b.Status == models.BudgetStatusActive {
			n++
		}
	}
	return n
}

// ExceededBudgets returns budgets in status exceeded.
func ExceededBudgets(s cache.Snapshot) []models.Budget {
	var out []models.Budget
	for _, b := range s.Budgets {
		if b.Status == models.BudgetStatusExceeded {
			out = append(out, b)
		}
	}
	return out
}

// TotalExceeded sums the overspend of exceeded budgets.
func TotalExceeded(s cache.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, b := range ExceededBudgets(s) {
		total = total.Add(b.SpentAmount.Sub(b.AllocatedAmount))
	}
	return total
}

// AnomalyStatusBreakdown counts anomalies per status. Statuses with no
// anomalies are present with zero.
func AnomalyStatusBreakdown(s cache.Snapshot) map[models.AnomalyStatus]int {
	out := map[models.AnomalyStatus]int{
		models.AnomalyStatusPending:  0,
		models.AnomalyStatusReviewed: 0,
		models.AnomalyStatusApproved: 0,
		models.AnomalyStatusRejected: 0,
	}
	for _, a := range s.Anomalies {
		out[a.Status]++
	}
	return out
}

// Spending is allocation and spend grouped under one key.
type Spending struct {
	Key       string          `json:"key"`
	Budgets   int             `json:"budgets"`
	Allocated decimal.Decimal `json:"allocated"`
	Spent     decimal.Decimal `json:"spent"`
}

// SpendingByCategory groups budgets by category, sorted by category.
func SpendingByCategory(s cache.Snapshot) []Spending {
	return groupSpending(s.Budgets, func(b models.Budget) string { return b.Category })
}

// SpendingByTeam groups budgets by team, sorted by team.
func SpendingByTeam(s cache.Snapshot) []Spending {
	return groupSpending(s.Budgets, func(b models.Budget) string { return b.Team })
}

func groupSpending(budgets []models.Budget, key func(models.Budget) string) []Spending {
	groups := make(map[string]*Spending)
	for _, b := range budgets {
		k := key(b)
		g, ok := groups[k]
		if !ok {
			g = &Spending{Key: k, Allocated: decimal.Zero, Spent: decimal.Zero}
			groups[k] = g
		}
		g.Budgets++
		g.Allocated = g.Allocated.Add(b.AllocatedAmount)
		g.Spent = g.Spent.Add(b.SpentAmount)
	}

	out := make([]Spending, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
