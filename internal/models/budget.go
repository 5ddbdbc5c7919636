package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetStatus represents the lifecycle state of a budget
type BudgetStatus string

const (
	BudgetStatusActive    BudgetStatus = "active"
	BudgetStatusCompleted BudgetStatus = "completed"
	BudgetStatusExceeded  BudgetStatus = "exceeded"
)

// Valid reports whether s is a known budget status.
func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetStatusActive, BudgetStatusCompleted, BudgetStatusExceeded:
		return true
	}
	return false
}

// Budget represents the money allocated to a team for an event
type Budget struct {
	Base
	EventName       string          `gorm:"not null" json:"event_name"`
	Team            string          `gorm:"not null;index" json:"team"`
	AllocatedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"allocated_amount"`
	SpentAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"spent_amount"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	Status          BudgetStatus    `gorm:"not null;default:active;index" json:"status"`
	Category        string          `gorm:"not null" json:"category"`
	Description     string          `gorm:"not null" json:"description"`
}

// Collection implements Record.
func (Budget) Collection() Collection { return CollectionBudgets }

// Remaining returns the unspent part of the allocation. It is negative once
// the budget is exceeded.
func (b Budget) Remaining() decimal.Decimal {
	return b.AllocatedAmount.Sub(b.SpentAmount)
}

// Overspend returns how far spending is above the allocation, or zero.
func (b Budget) Overspend() decimal.Decimal {
	over := b.SpentAmount.Sub(b.AllocatedAmount)
	if over.IsNegative() {
		return decimal.Zero
	}
	return over
}

// UtilizationPercent returns spent/allocated as a percentage.
func (b Budget) UtilizationPercent() decimal.Decimal {
	if !b.AllocatedAmount.IsPositive() {
		return decimal.Zero
	}
	return b.SpentAmount.Div(b.AllocatedAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
