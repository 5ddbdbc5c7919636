package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/services"
)

func setupExpenseRouter(svc services.ExpenseServicer, user *models.User) *gin.Engine {
	h := NewExpenseHandler(svc)
	r := gin.New()
	r.POST("/expenses", injectUser(user), h.CreateExpense)
	return r
}

func TestExpenseHandler_CreateExpense(t *testing.T) {
	t.Run("returns the anomaly raised by a crossing", func(t *testing.T) {
		svc := &mockExpenseService{
			addExpenseFn: func(user *models.User, input services.AddExpenseInput) (*services.ExpenseOutcome, error) {
				if input.BudgetID != testBudgetID || !input.Amount.Equal(decimal.NewFromInt(1200)) {
					t.Errorf("unexpected input %+v", input)
				}
				return &services.ExpenseOutcome{
					Expense: &models.Expense{Base: models.Base{ID: "e1"}, Amount: input.Amount},
					Budget:  &models.Budget{Base: models.Base{ID: testBudgetID}, Status: models.BudgetStatusExceeded},
					Anomaly: &models.Anomaly{Base: models.Base{ID: testAnomalyID}, Status: models.AnomalyStatusPending},
				}, nil
			},
		}
		r := setupExpenseRouter(svc, testUser(models.RoleEmployee))

		rec := doRequest(r, http.MethodPost, "/expenses", `{"budget_id":"`+testBudgetID+`","description":"Venue","amount":1200}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		result := parseJSON(t, rec)
		if result["budget"].(map[string]interface{})["status"] != "exceeded" {
			t.Errorf("expected exceeded budget, got %v", result["budget"])
		}
		if _, ok := result["anomaly"]; !ok {
			t.Error("expected anomaly in response")
		}
		if _, ok := result["notification"]; ok {
			t.Error("absent notification should be omitted")
		}
	})

	t.Run("maps a completed budget to 400", func(t *testing.T) {
		svc := &mockExpenseService{
			addExpenseFn: func(*models.User, services.AddExpenseInput) (*services.ExpenseOutcome, error) {
				return nil, apperrors.ErrBudgetNotActive
			},
		}
		r := setupExpenseRouter(svc, testUser(models.RoleEmployee))
		rec := doRequest(r, http.MethodPost, "/expenses", `{"budget_id":"x","description":"Venue","amount":1}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "VALIDATION_ERROR")
	})

	t.Run("maps a store failure to 502", func(t *testing.T) {
		svc := &mockExpenseService{
			addExpenseFn: func(*models.User, services.AddExpenseInput) (*services.ExpenseOutcome, error) {
				return nil, apperrors.ErrStore
			},
		}
		r := setupExpenseRouter(svc, testUser(models.RoleEmployee))
		rec := doRequest(r, http.MethodPost, "/expenses", `{"budget_id":"x","description":"Venue","amount":1}`)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STORE_ERROR")
	})
}
