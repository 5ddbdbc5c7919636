package services

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/views"
)

// UserServicer defines the contract for login and user lookup.
type UserServicer interface {
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SeedDemoUsers(ctx context.Context) error
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	AddBudget(ctx context.Context, user *models.User, input AddBudgetInput) (*models.Budget, error)
	UpdateBudget(ctx context.Context, user *models.User, id string, input UpdateBudgetInput) (*models.Budget, error)
	GetBudget(ctx context.Context, id string) (*models.Budget, error)
	ListBudgets(status *models.BudgetStatus) []models.Budget
	BudgetExpenses(ctx context.Context, budgetID string) ([]models.Expense, error)
}

// ExpenseServicer defines the contract for logging spend against budgets.
type ExpenseServicer interface {
	AddExpense(ctx context.Context, user *models.User, input AddExpenseInput) (*ExpenseOutcome, error)
}

// AnomalyServicer defines the contract for reviewing budget overruns.
type AnomalyServicer interface {
	ListAnomalies(status *models.AnomalyStatus) []models.Anomaly
	UpdateAnomalyStatus(ctx context.Context, user *models.User, id string, status models.AnomalyStatus, reason *string) (*models.Anomaly, error)
}

// FeedbackServicer defines the contract for anonymous HR reports.
type FeedbackServicer interface {
	AddFeedbackReport(ctx context.Context, input AddFeedbackInput) (string, error)
	UpdateFeedbackStatus(ctx context.Context, user *models.User, id string, input UpdateFeedbackInput) (*models.FeedbackReport, error)
	LookupByTrackingCode(ctx context.Context, code string) (*models.FeedbackStatusView, error)
	ListFeedback(user *models.User, filter FeedbackFilter) ([]models.FeedbackReport, error)
}

// NotificationServicer defines the contract for the notification bell.
type NotificationServicer interface {
	ListNotifications(user *models.User) []models.Notification
	MarkNotificationRead(ctx context.Context, user *models.User, id string) error
	MarkAllNotificationsRead(ctx context.Context, user *models.User) (int, error)
}

// DashboardServicer defines the contract for aggregate views and exports.
type DashboardServicer interface {
	Dashboard(user *models.User) (*views.Dashboard, error)
	Capabilities(user *models.User) []auth.Action
	AnomalyReport(user *models.User) (*excelize.File, error)
}
