// Package auth decides which roles may perform which actions. The services
// enforce it; the HTTP layer exposes it so clients can hide what a role
// cannot do.
package auth

import (
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// Action is something a user may attempt.
type Action string

const (
	ManageBudgets     Action = "manage_budgets"
	LogExpense        Action = "log_expense"
	ReviewAnomalies   Action = "review_anomalies"
	ManageFeedback    Action = "manage_feedback"
	SubmitFeedback    Action = "submit_feedback"
	ViewFeedbackInbox Action = "view_feedback_inbox"
	ReadNotifications Action = "read_notifications"
	ExportReports     Action = "export_reports"
)

var grants = map[models.Role][]Action{
	models.RoleFinanceHead: {ManageBudgets, LogExpense, ReviewAnomalies, SubmitFeedback, ReadNotifications, ExportReports},
	models.RoleHRAdmin:     {LogExpense, ManageFeedback, SubmitFeedback, ViewFeedbackInbox, ReadNotifications},
	models.RoleEmployee:    {LogExpense, SubmitFeedback, ReadNotifications},
}

// Can reports whether role may perform action.
func Can(role models.Role, action Action) bool {
	for _, a := range grants[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless user may perform action. A nil user
// is only allowed to submit feedback.
func Require(user *models.User, action Action) error {
	if user == nil {
		if action == SubmitFeedback {
			return nil
		}
		return apperrors.ErrUnauthorized
	}
	if !Can(user.Role, action) {
		return apperrors.ErrForbidden
	}
	return nil
}

// Capabilities lists every action role may perform.
func Capabilities(role models.Role) []Action {
	out := make([]Action, len(grants[role]))
	copy(out, grants[role])
	return out
}
