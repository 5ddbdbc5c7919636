package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// The types below are the only ways a stored record can change. Each one
// names exactly the columns its caller may touch; ExpectedVersion is the
// version the caller read, and the store rejects the update if the record
// has moved on since.

// BudgetSpendUpdate is written by the expense path only.
type BudgetSpendUpdate struct {
	ID              string
	ExpectedVersion int64
	SpentAmount     decimal.Decimal
	Status          BudgetStatus
}

// BudgetDetailsUpdate is the finance head's edit of a budget's descriptive
// fields. Nil fields are left unchanged.
type BudgetDetailsUpdate struct {
	ID              string
	ExpectedVersion int64
	EventName       *string
	Team            *string
	Category        *string
	Description     *string
	AllocatedAmount *decimal.Decimal
	EndDate         *time.Time
	Status          *BudgetStatus
}

// AnomalyStatusUpdate moves an anomaly along its review path.
type AnomalyStatusUpdate struct {
	ID              string
	ExpectedVersion int64
	Status          AnomalyStatus
	Reason          *string
}

// FeedbackStatusUpdate is the HR admin's edit of a report. Subject,
// description and category are intentionally absent.
type FeedbackStatusUpdate struct {
	ID              string
	ExpectedVersion int64
	Status          FeedbackStatus
	HRNotes         *string
	AssignedTo      *string
}

// NotificationReadUpdate flips Read to true on the listed notifications.
type NotificationReadUpdate struct {
	IDs []string
}
