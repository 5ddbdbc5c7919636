package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/services"
	"github.com/zenpa1/budget-tracker/internal/validator"
	"github.com/zenpa1/budget-tracker/internal/views"
)

// --- mock services ---

type mockUserService struct {
	attemptLoginFn func(email, password string) (*models.User, error)
	getUserByIDFn  func(id string) (*models.User, error)
}

func (m *mockUserService) AttemptLogin(_ context.Context, email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{}, nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{}, nil
}

func (m *mockUserService) SeedDemoUsers(context.Context) error { return nil }

type mockBudgetService struct {
	addBudgetFn      func(user *models.User, input services.AddBudgetInput) (*models.Budget, error)
	updateBudgetFn   func(user *models.User, id string, input services.UpdateBudgetInput) (*models.Budget, error)
	getBudgetFn      func(id string) (*models.Budget, error)
	listBudgetsFn    func(status *models.BudgetStatus) []models.Budget
	budgetExpensesFn func(id string) ([]models.Expense, error)
}

func (m *mockBudgetService) AddBudget(_ context.Context, user *models.User, input services.AddBudgetInput) (*models.Budget, error) {
	if m.addBudgetFn != nil {
		return m.addBudgetFn(user, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) UpdateBudget(_ context.Context, user *models.User, id string, input services.UpdateBudgetInput) (*models.Budget, error) {
	if m.updateBudgetFn != nil {
		return m.updateBudgetFn(user, id, input)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) GetBudget(_ context.Context, id string) (*models.Budget, error) {
	if m.getBudgetFn != nil {
		return m.getBudgetFn(id)
	}
	return &models.Budget{}, nil
}

func (m *mockBudgetService) ListBudgets(status *models.BudgetStatus) []models.Budget {
	if m.listBudgetsFn != nil {
		return m.listBudgetsFn(status)
	}
	return nil
}

func (m *mockBudgetService) BudgetExpenses(_ context.Context, id string) ([]models.Expense, error) {
	if m.budgetExpensesFn != nil {
		return m.budgetExpensesFn(id)
	}
	return nil, nil
}

type mockExpenseService struct {
	addExpenseFn func(user *models.User, input services.AddExpenseInput) (*services.ExpenseOutcome, error)
}

func (m *mockExpenseService) AddExpense(_ context.Context, user *models.User, input services.AddExpenseInput) (*services.ExpenseOutcome, error) {
	if m.addExpenseFn != nil {
		return m.addExpenseFn(user, input)
	}
	return &services.ExpenseOutcome{}, nil
}

type mockAnomalyService struct {
	listAnomaliesFn func(status *models.AnomalyStatus) []models.Anomaly
	updateStatusFn  func(user *models.User, id string, status models.AnomalyStatus, reason *string) (*models.Anomaly, error)
}

func (m *mockAnomalyService) ListAnomalies(status *models.AnomalyStatus) []models.Anomaly {
	if m.listAnomaliesFn != nil {
		return m.listAnomaliesFn(status)
	}
	return nil
}

func (m *mockAnomalyService) UpdateAnomalyStatus(_ context.Context, user *models.User, id string, status models.AnomalyStatus, reason *string) (*models.Anomaly, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(user, id, status, reason)
	}
	return &models.Anomaly{}, nil
}

type mockFeedbackService struct {
	addFn    func(input services.AddFeedbackInput) (string, error)
	updateFn func(user *models.User, id string, input services.UpdateFeedbackInput) (*models.FeedbackReport, error)
	lookupFn func(code string) (*models.FeedbackStatusView, error)
	listFn   func(user *models.User, filter services.FeedbackFilter) ([]models.FeedbackReport, error)
}

func (m *mockFeedbackService) AddFeedbackReport(_ context.Context, input services.AddFeedbackInput) (string, error) {
	if m.addFn != nil {
		return m.addFn(input)
	}
	return "FB-2026-001", nil
}

func (m *mockFeedbackService) UpdateFeedbackStatus(_ context.Context, user *models.User, id string, input services.UpdateFeedbackInput) (*models.FeedbackReport, error) {
	if m.updateFn != nil {
		return m.updateFn(user, id, input)
	}
	return &models.FeedbackReport{}, nil
}

func (m *mockFeedbackService) LookupByTrackingCode(_ context.Context, code string) (*models.FeedbackStatusView, error) {
	if m.lookupFn != nil {
		return m.lookupFn(code)
	}
	return &models.FeedbackStatusView{}, nil
}

func (m *mockFeedbackService) ListFeedback(user *models.User, filter services.FeedbackFilter) ([]models.FeedbackReport, error) {
	if m.listFn != nil {
		return m.listFn(user, filter)
	}
	return nil, nil
}

type mockNotificationService struct {
	listFn        func(user *models.User) []models.Notification
	markReadFn    func(user *models.User, id string) error
	markAllReadFn func(user *models.User) (int, error)
}

func (m *mockNotificationService) ListNotifications(user *models.User) []models.Notification {
	if m.listFn != nil {
		return m.listFn(user)
	}
	return nil
}

func (m *mockNotificationService) MarkNotificationRead(_ context.Context, user *models.User, id string) error {
	if m.markReadFn != nil {
		return m.markReadFn(user, id)
	}
	return nil
}

func (m *mockNotificationService) MarkAllNotificationsRead(_ context.Context, user *models.User) (int, error) {
	if m.markAllReadFn != nil {
		return m.markAllReadFn(user)
	}
	return 0, nil
}

type mockDashboardService struct {
	dashboardFn     func(user *models.User) (*views.Dashboard, error)
	anomalyReportFn func(user *models.User) (*excelize.File, error)
}

func (m *mockDashboardService) Dashboard(user *models.User) (*views.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(user)
	}
	return &views.Dashboard{}, nil
}

func (m *mockDashboardService) Capabilities(user *models.User) []auth.Action {
	if user == nil {
		return []auth.Action{auth.SubmitFeedback}
	}
	return auth.Capabilities(user.Role)
}

func (m *mockDashboardService) AnomalyReport(user *models.User) (*excelize.File, error) {
	if m.anomalyReportFn != nil {
		return m.anomalyReportFn(user)
	}
	return excelize.NewFile(), nil
}

// --- test helpers ---

const (
	testBudgetID  = "0190a4e2-1111-7000-8000-000000000001"
	testAnomalyID = "0190a4e2-2222-7000-8000-000000000002"
	testReportID  = "0190a4e2-3333-7000-8000-000000000003"
	testNoticeID  = "0190a4e2-4444-7000-8000-000000000004"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

func testUser(role models.Role) *models.User {
	return &models.User{
		Base:       models.Base{ID: "0190a4e2-0000-7000-8000-00000000000a"},
		Email:      "user@company.com",
		Name:       "Test User",
		Role:       role,
		Department: "Operations",
	}
}

// injectUser stands in for the JWT middleware.
func injectUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set("user", user)
		}
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
