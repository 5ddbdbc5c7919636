package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/lock"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/validator"
)

// AddExpenseInput is a spend logged against a budget. A zero Date means now.
type AddExpenseInput struct {
	BudgetID    string          `json:"budget_id" validate:"notblank"`
	Description string          `json:"description" validate:"notblank"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Receipt     *string         `json:"receipt,omitempty"`
}

// ExpenseOutcome is everything one expense wrote. Anomaly and Notification
// are set only when the expense pushed the budget over its allocation.
type ExpenseOutcome struct {
	Expense      *models.Expense      `json:"expense"`
	Budget       *models.Budget       `json:"budget"`
	Anomaly      *models.Anomaly      `json:"anomaly,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// expenseService handles expense-related business logic.
type expenseService struct {
	store  store.Client
	cache  *cache.Cache
	locker lock.Locker
	now    func() time.Time
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(st store.Client, c *cache.Cache, locker lock.Locker) ExpenseServicer {
	return &expenseService{store: st, cache: c, locker: locker, now: utcNow}
}

// AddExpense records an expense and raises the budget's spent amount. The
// first expense that takes a budget over its allocation also marks it
// exceeded and records one anomaly and one alert, all in the same commit.
//
// Writes against one budget hold the budget's lock, and the spend update is
// conditional on the budget version read, so two concurrent expenses can
// never both see the budget as not yet exceeded.
func (s *expenseService) AddExpense(ctx context.Context, user *models.User, input AddExpenseInput) (*ExpenseOutcome, error) {
	if err := auth.Require(user, auth.LogExpense); err != nil {
		return nil, err
	}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, budgetLockKey(input.BudgetID))
	if err != nil {
		return nil, storeError(err)
	}
	defer unlock()

	budget, err := s.readBudget(ctx, input.BudgetID, true)
	if err != nil {
		return nil, err
	}

	log := logger.Named("expenses")
	for attempt := 1; ; attempt++ {
		if budget.Status != models.BudgetStatusActive {
			return nil, apperrors.ErrBudgetNotActive
		}

		batch, outcome := s.plan(*budget, user, input)
		res, err := s.store.Commit(ctx, batch)
		if err == nil {
			s.cache.Apply(res.Records()...)
			outcome.Budget, _ = res.Budget()
			if outcome.Anomaly != nil {
				log.Infow("Budget exceeded",
					"budget_id", budget.ID,
					"exceeded_amount", outcome.Anomaly.ExceededAmount.String(),
					"percentage_over", outcome.Anomaly.PercentageOver.String())
			}
			return outcome, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt == maxCommitAttempts {
			log.Errorw("Failed to add expense", "budget_id", budget.ID, "attempt", attempt, "error", err)
			return nil, storeError(err)
		}

		log.Debugw("Budget changed underneath expense, retrying", "budget_id", budget.ID, "attempt", attempt)
		budget, err = s.readBudget(ctx, input.BudgetID, false)
		if err != nil {
			return nil, err
		}
	}
}

// readBudget returns the budget the expense will be applied to. The cache is
// used on the first attempt; after a conflict the store is authoritative.
func (s *expenseService) readBudget(ctx context.Context, id string, useCache bool) (*models.Budget, error) {
	if useCache {
		if b, ok := s.cache.Budget(id); ok {
			return &b, nil
		}
	}
	b, err := s.store.GetBudget(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "budget_id does not reference an existing budget")
	}
	if err != nil {
		return nil, storeError(err)
	}
	return b, nil
}

func (s *expenseService) plan(budget models.Budget, user *models.User, input AddExpenseInput) (*store.Batch, *ExpenseOutcome) {
	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	expense := &models.Expense{
		BudgetID:    budget.ID,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Date:        date,
		SubmittedBy: submitter(user),
		Category:    input.Category,
		Receipt:     input.Receipt,
	}
	if expense.Category == "" {
		expense.Category = budget.Category
	}

	newSpent := budget.SpentAmount.Add(input.Amount)
	crossing := budget.Status != models.BudgetStatusExceeded && newSpent.GreaterThan(budget.AllocatedAmount)

	status := budget.Status
	if crossing {
		status = models.BudgetStatusExceeded
	}

	batch := &store.Batch{
		Inserts: []models.Record{expense},
		BudgetSpend: &models.BudgetSpendUpdate{
			ID:              budget.ID,
			ExpectedVersion: budget.Version,
			SpentAmount:     newSpent,
			Status:          status,
		},
	}
	outcome := &ExpenseOutcome{Expense: expense}

	if crossing {
		anomaly := models.NewAnomaly(budget, newSpent, now)
		budgetID := budget.ID
		notification := &models.Notification{
			Type:      models.NotificationTypeAlert,
			Title:     "Budget Exceeded",
			Message:   fmt.Sprintf("%s has exceeded its budget", budget.EventName),
			Timestamp: now,
			BudgetID:  &budgetID,
			Audience:  models.RoleFinanceHead,
		}
		batch.Inserts = append(batch.Inserts, &anomaly, notification)
		outcome.Anomaly = &anomaly
		outcome.Notification = notification
	}

	return batch, outcome
}

func submitter(user *models.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
