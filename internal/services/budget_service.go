package services

import (
	"context"
	"errors"
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
	"github.com/zenpa1/budget-tracker/internal/views"
)

// AddBudgetInput is what a finance head supplies for a new budget.
type AddBudgetInput struct {
	EventName       string          `json:"event_name" validate:"notblank"`
	Team            string          `json:"team" validate:"notblank"`
	Category        string          `json:"category" validate:"notblank"`
	Description     string          `json:"description" validate:"notblank"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount" validate:"gt=0"`
	StartDate       time.Time       `json:"start_date" validate:"required"`
	EndDate         time.Time       `json:"end_date" validate:"required,gtefield=StartDate"`
}

// UpdateBudgetInput edits a budget. Nil fields are left unchanged.
type UpdateBudgetInput struct {
	EventName       *string              `json:"event_name" validate:"omitempty,notblank"`
	Team            *string              `json:"team" validate:"omitempty,notblank"`
	Category        *string              `json:"category" validate:"omitempty,notblank"`
	Description     *string              `json:"description" validate:"omitempty,notblank"`
	AllocatedAmount *decimal.Decimal     `json:"allocated_amount" validate:"omitempty,gt=0"`
	EndDate         *time.Time           `json:"end_date"`
	Status          *models.BudgetStatus `json:"status" validate:"omitempty,budget_status"`
}

// budgetService handles budget-related business logic.
type budgetService struct {
	store  store.Client
	cache  *cache.Cache
	locker lock.Locker
	now    func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(st store.Client, c *cache.Cache, locker lock.Locker) BudgetServicer {
	return &budgetService{store: st, cache: c, locker: locker, now: utcNow}
}

// AddBudget creates an active budget with nothing spent.
func (s *budgetService) AddBudget(ctx context.Context, user *models.User, input AddBudgetInput) (*models.Budget, error) {
	if err := auth.Require(user, auth.ManageBudgets); err != nil {
		return nil, err
	}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		EventName:       strings.TrimSpace(input.EventName),
		Team:            strings.TrimSpace(input.Team),
		AllocatedAmount: input.AllocatedAmount,
		SpentAmount:     decimal.Zero,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Status:          models.BudgetStatusActive,
		Category:        strings.TrimSpace(input.Category),
		Description:     strings.TrimSpace(input.Description),
	}
	budget.CreatedAt = s.now()

	res, err := s.store.Commit(ctx, &store.Batch{Inserts: []models.Record{budget}})
	if err != nil {
		logger.Get().Errorw("Failed to add budget", "error", err)
		return nil, storeError(err)
	}
	s.cache.Apply(res.Records()...)
	return budget, nil
}

// UpdateBudget edits a budget's details. Status may move between active and
// completed; exceeded is only ever set by the expense path. The allocation
// can only change on an active budget and never below what is spent.
func (s *budgetService) UpdateBudget(ctx context.Context, user *models.User, id string, input UpdateBudgetInput) (*models.Budget, error) {
	if err := auth.Require(user, auth.ManageBudgets); err != nil {
		return nil, err
	}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, budgetLockKey(id))
	if err != nil {
		return nil, storeError(err)
	}
	defer unlock()

	budget, err := s.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		update, err := planBudgetUpdate(*budget, input)
		if err != nil {
			return nil, err
		}

		res, err := s.store.Commit(ctx, &store.Batch{BudgetDetails: update})
		if err == nil {
			s.cache.Apply(res.Records()...)
			updated, _ := res.Budget()
			return updated, nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt == maxCommitAttempts {
			logger.Get().Errorw("Failed to update budget", "budget_id", id, "attempt", attempt, "error", err)
			return nil, storeError(err)
		}

		budget, err = s.store.GetBudget(ctx, id)
		if err != nil {
			return nil, storeError(err)
		}
	}
}

func planBudgetUpdate(budget models.Budget, input UpdateBudgetInput) (*models.BudgetDetailsUpdate, error) {
	update := &models.BudgetDetailsUpdate{
		ID:              budget.ID,
		ExpectedVersion: budget.Version,
		EventName:       trimmed(input.EventName),
		Team:            trimmed(input.Team),
		Category:        trimmed(input.Category),
		Description:     trimmed(input.Description),
		EndDate:         input.EndDate,
	}

	if input.EndDate != nil && input.EndDate.Before(budget.StartDate) {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "end_date must not be before start_date")
	}

	if input.Status != nil && *input.Status != budget.Status {
		next := *input.Status
		if budget.Status == models.BudgetStatusExceeded || next == models.BudgetStatusExceeded {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition,
				"exceeded is set by spending and cannot be changed by hand")
		}
		update.Status = &next
	}

	if input.AllocatedAmount != nil && !input.AllocatedAmount.Equal(budget.AllocatedAmount) {
		if budget.Status != models.BudgetStatusActive {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "allocation can only change on an active budget")
		}
		if input.AllocatedAmount.LessThan(budget.SpentAmount) {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "allocation cannot be lower than the amount already spent")
		}
		amount := *input.AllocatedAmount
		update.AllocatedAmount = &amount
	}

	return update, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func budgetLockKey(id string) string {
	return "budget:" + id
}

// GetBudget returns a budget from the cache, falling back to the store
// while the cache is still filling.
func (s *budgetService) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	if b, ok := s.cache.Budget(id); ok {
		return &b, nil
	}
	b, err := s.store.GetBudget(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.ErrBudgetNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return b, nil
}

// ListBudgets returns cached budgets, optionally filtered by status.
func (s *budgetService) ListBudgets(status *models.BudgetStatus) []models.Budget {
	budgets := s.cache.Snapshot().Budgets
	if status == nil {
		return budgets
	}
	out := budgets[:0]
	for _, b := range budgets {
		if b.Status == *status {
			out = append(out, b)
		}
	}
	return out
}

// BudgetExpenses returns a budget's expenses in arrival order.
func (s *budgetService) BudgetExpenses(ctx context.Context, budgetID string) ([]models.Expense, error) {
	if _, err := s.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}
	return views.BudgetExpenses(s.cache.Snapshot(), budgetID), nil
}
