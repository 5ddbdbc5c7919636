package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single spend logged against a budget. Expenses are never
// updated or deleted once recorded.
type Expense struct {
	Base
	BudgetID    string          `gorm:"type:uuid;not null;index" json:"budget_id"`
	Description string          `gorm:"not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Date        time.Time       `gorm:"not null" json:"date"`
	SubmittedBy string          `gorm:"not null" json:"submitted_by"`
	Category    string          `json:"category"`
	Receipt     *string         `json:"receipt,omitempty"`
}

// Collection implements Record.
func (Expense) Collection() Collection { return CollectionExpenses }
