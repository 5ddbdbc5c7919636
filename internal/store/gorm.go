package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zenpa1/budget-tracker/internal/feed"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// GormStore implements Client and Users on a gorm database. After every
// successful commit it publishes one change event per touched record.
type GormStore struct {
	db        *gorm.DB
	publisher feed.Publisher
}

// NewGormStore creates a store. A nil publisher discards change events.
func NewGormStore(db *gorm.DB, publisher feed.Publisher) *GormStore {
	if publisher == nil {
		publisher = feed.Nop{}
	}
	return &GormStore{db: db, publisher: publisher}
}

func selectAll[T any](ctx context.Context, db *gorm.DB) ([]T, error) {
	var out []T
	if err := db.WithContext(ctx).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SelectBudgets implements Client.
func (s *GormStore) SelectBudgets(ctx context.Context) ([]models.Budget, error) {
	return selectAll[models.Budget](ctx, s.db)
}

// SelectExpenses implements Client.
func (s *GormStore) SelectExpenses(ctx context.Context) ([]models.Expense, error) {
	return selectAll[models.Expense](ctx, s.db)
}

// SelectAnomalies implements Client.
func (s *GormStore) SelectAnomalies(ctx context.Context) ([]models.Anomaly, error) {
	return selectAll[models.Anomaly](ctx, s.db)
}

// SelectNotifications implements Client.
func (s *GormStore) SelectNotifications(ctx context.Context) ([]models.Notification, error) {
	return selectAll[models.Notification](ctx, s.db)
}

// SelectFeedbackReports implements Client.
func (s *GormStore) SelectFeedbackReports(ctx context.Context) ([]models.FeedbackReport, error) {
	return selectAll[models.FeedbackReport](ctx, s.db)
}

// GetBudget implements Client.
func (s *GormStore) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&budget).Error; err != nil {
		return nil, translate(err)
	}
	return &budget, nil
}

// FindFeedbackByTrackingCode implements Client. The match ignores case.
func (s *GormStore) FindFeedbackByTrackingCode(ctx context.Context, code string) (*models.FeedbackReport, error) {
	var report models.FeedbackReport
	err := s.db.WithContext(ctx).Where("LOWER(tracking_code) = LOWER(?)", code).First(&report).Error
	if err != nil {
		return nil, translate(err)
	}
	return &report, nil
}

// CountFeedbackReports implements Client.
func (s *GormStore) CountFeedbackReports(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.FeedbackReport{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Commit implements Client. Every write in the batch runs in one database
// transaction; versioned updates match on id and expected version.
func (s *GormStore) Commit(ctx context.Context, batch *Batch) (*Result, error) {
	result := &Result{}
	if batch.Empty() {
		return result, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range batch.Inserts {
			if err := tx.Create(rec).Error; err != nil {
				return fmt.Errorf("insert %s: %w", rec.Collection(), translate(err))
			}
			result.Inserted = append(result.Inserted, rec)
		}

		if u := batch.BudgetSpend; u != nil {
			b, err := updateVersioned[models.Budget](tx, u.ID, u.ExpectedVersion, map[string]interface{}{
				"spent_amount": u.SpentAmount,
				"status":       u.Status,
			})
			if err != nil {
				return err
			}
			result.Updated = append(result.Updated, b)
		}

		if u := batch.BudgetDetails; u != nil {
			b, err := updateVersioned[models.Budget](tx, u.ID, u.ExpectedVersion, budgetDetailColumns(u))
			if err != nil {
				return err
			}
			result.Updated = append(result.Updated, b)
		}

		if u := batch.AnomalyStatus; u != nil {
			cols := map[string]interface{}{"status": u.Status}
			if u.Reason != nil {
				cols["reason"] = *u.Reason
			}
			a, err := updateVersioned[models.Anomaly](tx, u.ID, u.ExpectedVersion, cols)
			if err != nil {
				return err
			}
			result.Updated = append(result.Updated, a)
		}

		if u := batch.FeedbackStatus; u != nil {
			cols := map[string]interface{}{"status": u.Status}
			if u.HRNotes != nil {
				cols["hr_notes"] = *u.HRNotes
			}
			if u.AssignedTo != nil {
				cols["assigned_to"] = *u.AssignedTo
			}
			f, err := updateVersioned[models.FeedbackReport](tx, u.ID, u.ExpectedVersion, cols)
			if err != nil {
				return err
			}
			result.Updated = append(result.Updated, f)
		}

		if u := batch.NotificationsRead; u != nil && len(u.IDs) > 0 {
			read, err := markRead(tx, u.IDs)
			if err != nil {
				return err
			}
			result.Updated = append(result.Updated, read...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, result)
	return result, nil
}

func budgetDetailColumns(u *models.BudgetDetailsUpdate) map[string]interface{} {
	cols := make(map[string]interface{})
	if u.EventName != nil {
		cols["event_name"] = *u.EventName
	}
	if u.Team != nil {
		cols["team"] = *u.Team
	}
	if u.Category != nil {
		cols["category"] = *u.Category
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.AllocatedAmount != nil {
		cols["allocated_amount"] = *u.AllocatedAmount
	}
	if u.EndDate != nil {
		cols["end_date"] = *u.EndDate
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	return cols
}

// updateVersioned applies cols to the row with the given id only if it is
// still at version expected, bumps the version and returns the stored row.
func updateVersioned[T any](tx *gorm.DB, id string, expected int64, cols map[string]interface{}) (*T, error) {
	cols["version"] = gorm.Expr("version + 1")
	cols["updated_at"] = time.Now().UTC()

	res := tx.Model(new(T)).Where("id = ? AND version = ?", id, expected).Updates(cols)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}

	out := new(T)
	if err := tx.Where("id = ?", id).First(out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// markRead flips the unread notifications among ids and returns them.
// Notifications that are already read are left alone.
func markRead(tx *gorm.DB, ids []string) ([]models.Record, error) {
	var unread []string
	if err := tx.Model(&models.Notification{}).
		Where("id IN ? AND read = ?", ids, false).
		Pluck("id", &unread).Error; err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return nil, nil
	}

	err := tx.Model(&models.Notification{}).
		Where("id IN ?", unread).
		Updates(map[string]interface{}{
			"read":       true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}

	var changed []models.Notification
	if err := tx.Where("id IN ?", unread).Order("created_at, id").Find(&changed).Error; err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(changed))
	for i := range changed {
		out = append(out, &changed[i])
	}
	return out, nil
}

func (s *GormStore) publish(ctx context.Context, result *Result) {
	ctx = context.WithoutCancel(ctx)
	log := logger.Named("store")

	emit := func(typ feed.EventType, rec models.Record) {
		event, err := feed.NewEvent(typ, rec)
		if err != nil {
			log.Errorw("Failed to encode change event", "collection", rec.Collection(), "error", err)
			return
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Warnw("Failed to publish change event", "collection", rec.Collection(), "error", err)
		}
	}
	for _, rec := range result.Inserted {
		emit(feed.EventInsert, rec)
	}
	for _, rec := range result.Updated {
		emit(feed.EventUpdate, rec)
	}
}

// FindUserByEmail implements Users. The match ignores case.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUserByID implements Users.
func (s *GormStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// CreateUser implements Users.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
