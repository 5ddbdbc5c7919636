// Package store is the client for the remote store that holds every synced
// collection. Reads return whole collections; writes go through Commit so
// that linked records land together or not at all.
package store

import (
	"context"
	"errors"

	"github.com/zenpa1/budget-tracker/internal/models"
)

var (
	// ErrVersionConflict means a versioned update found the record at a
	// different version than the caller read.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicate means an insert hit a unique constraint.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("store: record not found")
)

// Batch is a set of writes committed atomically. Inserts must be pointers so
// the store can fill in ids and timestamps.
type Batch struct {
	Inserts           []models.Record
	BudgetSpend       *models.BudgetSpendUpdate
	BudgetDetails     *models.BudgetDetailsUpdate
	AnomalyStatus     *models.AnomalyStatusUpdate
	FeedbackStatus    *models.FeedbackStatusUpdate
	NotificationsRead *models.NotificationReadUpdate
}

// Empty reports whether the batch has nothing to write.
func (b *Batch) Empty() bool {
	return b == nil || (len(b.Inserts) == 0 && b.BudgetSpend == nil && b.BudgetDetails == nil &&
		b.AnomalyStatus == nil && b.FeedbackStatus == nil &&
		(b.NotificationsRead == nil || len(b.NotificationsRead.IDs) == 0))
}

// Result holds the authoritative records a commit produced, as stored.
type Result struct {
	Inserted []models.Record
	Updated  []models.Record
}

// Records returns inserted and updated records together.
func (r *Result) Records() []models.Record {
	out := make([]models.Record, 0, len(r.Inserted)+len(r.Updated))
	out = append(out, r.Inserted...)
	return append(out, r.Updated...)
}

// Budget returns the budget touched by the commit, if any.
func (r *Result) Budget() (*models.Budget, bool) {
	for _, rec := range r.Records() {
		if b, ok := rec.(*models.Budget); ok {
			return b, true
		}
	}
	return nil, false
}

// Client is the capability the sync layer needs from the remote store.
type Client interface {
	SelectBudgets(ctx context.Context) ([]models.Budget, error)
	SelectExpenses(ctx context.Context) ([]models.Expense, error)
	SelectAnomalies(ctx context.Context) ([]models.Anomaly, error)
	SelectNotifications(ctx context.Context) ([]models.Notification, error)
	SelectFeedbackReports(ctx context.Context) ([]models.FeedbackReport, error)

	GetBudget(ctx context.Context, id string) (*models.Budget, error)
	FindFeedbackByTrackingCode(ctx context.Context, code string) (*models.FeedbackReport, error)
	CountFeedbackReports(ctx context.Context) (int64, error)

	Commit(ctx context.Context, batch *Batch) (*Result, error)
}

// Users reads and creates login accounts.
type Users interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}
