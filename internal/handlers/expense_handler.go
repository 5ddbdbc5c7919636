package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/services"
)

// ExpenseHandler handles expense submissions.
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService services.ExpenseServicer) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// CreateExpense logs spend against a budget. If it takes the budget over its
// allocation the response also carries the anomaly and alert it raised.
// @Summary     Log an expense
// @Description Record an expense and update the budget's spent amount
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body services.AddExpenseInput true "Expense details"
// @Success     201 {object} services.ExpenseOutcome "Expense recorded"
// @Failure     400 {object} ErrorResponse "Invalid input or budget not accepting expenses"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Store error"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	var req services.AddExpenseInput
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	outcome, err := h.expenseService.AddExpense(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, outcome)
}
