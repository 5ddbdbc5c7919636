package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/lock"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/testutil"
)

var fixedNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// env is one service instance: a store over a private database and the
// cache that instance reads from.
type env struct {
	db     *gorm.DB
	store  *store.GormStore
	cache  *cache.Cache
	locker lock.Locker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return &env{
		db:     db,
		store:  store.NewGormStore(db, nil),
		cache:  cache.New(),
		locker: lock.NewLocal(),
	}
}

// sync reloads the cache from the database.
func (e *env) sync(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	var set cache.LoadSet
	var err error
	if set.Budgets, err = e.store.SelectBudgets(ctx); err != nil {
		t.Fatalf("SelectBudgets() error = %v", err)
	}
	if set.Expenses, err = e.store.SelectExpenses(ctx); err != nil {
		t.Fatalf("SelectExpenses() error = %v", err)
	}
	if set.Anomalies, err = e.store.SelectAnomalies(ctx); err != nil {
		t.Fatalf("SelectAnomalies() error = %v", err)
	}
	if set.Notifications, err = e.store.SelectNotifications(ctx); err != nil {
		t.Fatalf("SelectNotifications() error = %v", err)
	}
	if set.FeedbackReports, err = e.store.SelectFeedbackReports(ctx); err != nil {
		t.Fatalf("SelectFeedbackReports() error = %v", err)
	}
	e.cache.Replace(set)
}

func (e *env) expenses() *expenseService {
	return &expenseService{store: e.store, cache: e.cache, locker: e.locker, now: fixedClock}
}

func (e *env) budgets() *budgetService {
	return &budgetService{store: e.store, cache: e.cache, locker: e.locker, now: fixedClock}
}

func (e *env) feedback() *feedbackService {
	return &feedbackService{store: e.store, cache: e.cache, locker: e.locker, now: fixedClock}
}

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

// failingStore rejects every commit with err.
type failingStore struct {
	store.Client
	err error
}

func (f failingStore) Commit(context.Context, *store.Batch) (*store.Result, error) {
	return nil, f.err
}

func ptr[T any](v T) *T { return &v }

// newCacheFrom builds a second cache loaded from the same database as e.
func newCacheFrom(t *testing.T, e *env) *cache.Cache {
	t.Helper()
	other := &env{db: e.db, store: e.store, cache: cache.New()}
	other.sync(t)
	return other.cache
}
