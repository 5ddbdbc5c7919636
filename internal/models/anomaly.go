package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyStatus is the review state of a detected overrun
type AnomalyStatus string

const (
	AnomalyStatusPending  AnomalyStatus = "pending"
	AnomalyStatusReviewed AnomalyStatus = "reviewed"
	AnomalyStatusApproved AnomalyStatus = "approved"
	AnomalyStatusRejected AnomalyStatus = "rejected"
)

// anomalyTransitions lists the legal next states for each status.
// approved and rejected are terminal.
var anomalyTransitions = map[AnomalyStatus][]AnomalyStatus{
	AnomalyStatusPending:  {AnomalyStatusReviewed, AnomalyStatusApproved, AnomalyStatusRejected},
	AnomalyStatusReviewed: {AnomalyStatusApproved, AnomalyStatusRejected},
}

// Valid reports whether s is a known anomaly status.
func (s AnomalyStatus) Valid() bool {
	switch s {
	case AnomalyStatusPending, AnomalyStatusReviewed, AnomalyStatusApproved, AnomalyStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s AnomalyStatus) Terminal() bool {
	return len(anomalyTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next follows the review path.
func (s AnomalyStatus) CanTransitionTo(next AnomalyStatus) bool {
	for _, allowed := range anomalyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Anomaly records a budget's first crossing from within budget to over budget
type Anomaly struct {
	Base
	BudgetID        string          `gorm:"type:uuid;not null;uniqueIndex" json:"budget_id"`
	EventName       string          `gorm:"not null" json:"event_name"`
	Team            string          `gorm:"not null" json:"team"`
	AllocatedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"allocated_amount"`
	ExceededAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"exceeded_amount"`
	PercentageOver  decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"percentage_over"`
	DetectedAt      time.Time       `gorm:"not null" json:"detected_at"`
	Status          AnomalyStatus   `gorm:"not null;default:pending;index" json:"status"`
	Reason          *string         `json:"reason,omitempty"`
}

// Collection implements Record.
func (Anomaly) Collection() Collection { return CollectionAnomalies }

// NewAnomaly builds the pending anomaly for a budget whose spending has just
// reached newSpent. exceededAmount = newSpent - allocated and
// percentageOver = exceededAmount / allocated * 100, rounded to two places.
func NewAnomaly(budget Budget, newSpent decimal.Decimal, detectedAt time.Time) Anomaly {
	exceeded := newSpent.Sub(budget.AllocatedAmount)
	pct := decimal.Zero
	if budget.AllocatedAmount.IsPositive() {
		pct = exceeded.Div(budget.AllocatedAmount).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return Anomaly{
		BudgetID:        budget.ID,
		EventName:       budget.EventName,
		Team:            budget.Team,
		AllocatedAmount: budget.AllocatedAmount,
		ExceededAmount:  exceeded,
		PercentageOver:  pct,
		DetectedAt:      detectedAt,
		Status:          AnomalyStatusPending,
	}
}
