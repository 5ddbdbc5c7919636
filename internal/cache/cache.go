// Package cache is the in-memory copy of every synced collection. It is the
// single source of truth for reads; the session fills it by bulk load and
// keeps it current with change events, and the services patch it after a
// successful commit.
//
// Records are immutable by replacement: nothing edits a cached record in
// place, so snapshots can share them safely.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/zenpa1/budget-tracker/internal/feed"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// Cache holds one ordered table per collection. A single lock covers all
// tables so that a multi-entity patch is seen whole or not at all.
type Cache struct {
	mu      sync.RWMutex
	loading bool

	budgets         table[models.Budget]
	expenses        table[models.Expense]
	anomalies       table[models.Anomaly]
	notifications   table[models.Notification]
	feedbackReports table[models.FeedbackReport]
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		budgets:         newTable[models.Budget](),
		expenses:        newTable[models.Expense](),
		anomalies:       newTable[models.Anomaly](),
		notifications:   newTable[models.Notification](),
		feedbackReports: newTable[models.FeedbackReport](),
	}
}

// Loading reports whether a bulk load is in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// SetLoading sets the loading flag. While it is set, records written
// through ApplyChange or Apply survive the next Replace even if the load
// missed them.
func (c *Cache) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = loading
	c.budgets.track(loading)
	c.expenses.track(loading)
	c.anomalies.track(loading)
	c.notifications.track(loading)
	c.feedbackReports.track(loading)
}

// LoadSet is the result of one bulk load. A nil slice means that collection
// failed to load and is left empty.
type LoadSet struct {
	Budgets         []models.Budget
	Expenses        []models.Expense
	Anomalies       []models.Anomaly
	Notifications   []models.Notification
	FeedbackReports []models.FeedbackReport
}

// Replace installs a bulk load in one step and clears the loading flag.
func (c *Cache) Replace(set LoadSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgets.replace(set.Budgets)
	c.expenses.replace(set.Expenses)
	c.anomalies.replace(set.Anomalies)
	c.notifications.replace(set.Notifications)
	c.feedbackReports.replace(set.FeedbackReports)
	c.loading = false
}

// ApplyChange reconciles one change event. It is idempotent: re-delivering
// an event leaves the cache as it was after the first delivery. It reports
// whether the cache changed.
func (c *Cache) ApplyChange(event feed.Event) (bool, error) {
	if event.Type != feed.EventDelete {
		rec, err := decode(event)
		if err != nil {
			return false, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.put(rec, event.Type == feed.EventInsert), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch event.Collection {
	case models.CollectionBudgets:
		return c.budgets.remove(event.ID), nil
	case models.CollectionExpenses:
		return c.expenses.remove(event.ID), nil
	case models.CollectionAnomalies:
		return c.anomalies.remove(event.ID), nil
	case models.CollectionNotifications:
		return c.notifications.remove(event.ID), nil
	case models.CollectionFeedbackReports:
		return c.feedbackReports.remove(event.ID), nil
	}
	return false, fmt.Errorf("cache: unknown collection %q", event.Collection)
}

// Apply stores authoritative records returned by the store, inserting or
// replacing by id under the version rule, all under one lock.
func (c *Cache) Apply(records ...models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		c.put(rec, true)
	}
}

// put must be called with c.mu held.
func (c *Cache) put(rec models.Record, insert bool) bool {
	switch r := rec.(type) {
	case *models.Budget:
		return c.budgets.put(*r, insert)
	case models.Budget:
		return c.budgets.put(r, insert)
	case *models.Expense:
		return c.expenses.put(*r, insert)
	case models.Expense:
		return c.expenses.put(r, insert)
	case *models.Anomaly:
		return c.anomalies.put(*r, insert)
	case models.Anomaly:
		return c.anomalies.put(r, insert)
	case *models.Notification:
		return c.notifications.put(*r, insert)
	case models.Notification:
		return c.notifications.put(r, insert)
	case *models.FeedbackReport:
		return c.feedbackReports.put(*r, insert)
	case models.FeedbackReport:
		return c.feedbackReports.put(r, insert)
	}
	return false
}

func decode(event feed.Event) (models.Record, error) {
	var (
		rec models.Record
		err error
	)
	switch event.Collection {
	case models.CollectionBudgets:
		var b models.Budget
		err = json.Unmarshal(event.Record, &b)
		rec = b
	case models.CollectionExpenses:
		var e models.Expense
		err = json.Unmarshal(event.Record, &e)
		rec = e
	case models.CollectionAnomalies:
		var a models.Anomaly
		err = json.Unmarshal(event.Record, &a)
		rec = a
	case models.CollectionNotifications:
		var n models.Notification
		err = json.Unmarshal(event.Record, &n)
		rec = n
	case models.CollectionFeedbackReports:
		var f models.FeedbackReport
		err = json.Unmarshal(event.Record, &f)
		rec = f
	default:
		return nil, fmt.Errorf("cache: unknown collection %q", event.Collection)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: decode %s %s: %w", event.Collection, event.ID, err)
	}
	if rec.GetID() == "" {
		return nil, fmt.Errorf("cache: %s event without record id", event.Collection)
	}
	return rec, nil
}

// Budget returns the cached budget with the given id.
func (c *Cache) Budget(id string) (models.Budget, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.budgets.get(id)
}

// Anomaly returns the cached anomaly with the given id.
func (c *Cache) Anomaly(id string) (models.Anomaly, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anomalies.get(id)
}

// AnomalyForBudget returns the anomaly recorded for a budget, if any.
func (c *Cache) AnomalyForBudget(budgetID string) (models.Anomaly, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.anomalies.items {
		if a.BudgetID == budgetID {
			return a, true
		}
	}
	return models.Anomaly{}, false
}

// Notification returns the cached notification with the given id.
func (c *Cache) Notification(id string) (models.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications.get(id)
}

// FeedbackReport returns the cached report with the given id.
func (c *Cache) FeedbackReport(id string) (models.FeedbackReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedbackReports.get(id)
}

// FeedbackCount returns the number of cached feedback reports.
func (c *Cache) FeedbackCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feedbackReports.len()
}

// HasTrackingCode reports whether any cached report uses code, ignoring case.
func (c *Cache) HasTrackingCode(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.feedbackReports.items {
		if strings.EqualFold(r.TrackingCode, code) {
			return true
		}
	}
	return false
}

// FindTrackingCode returns the report with the given tracking code, ignoring case.
func (c *Cache) FindTrackingCode(code string) (models.FeedbackReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.feedbackReports.items {
		if strings.EqualFold(r.TrackingCode, code) {
			return r, true
		}
	}
	return models.FeedbackReport{}, false
}

// UnreadNotificationIDs returns the ids of unread notifications visible to
// role. An empty role matches every notification.
func (c *Cache) UnreadNotificationIDs(role models.Role) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, n := range c.notifications.items {
		if n.Read {
			continue
		}
		if role != "" && !n.VisibleTo(role) {
			continue
		}
		ids = append(ids, n.ID)
	}
	return ids
}

// Snapshot is a consistent, point-in-time copy of the cache.
type Snapshot struct {
	Loading         bool
	Budgets         []models.Budget
	Expenses        []models.Expense
	Anomalies       []models.Anomaly
	Notifications   []models.Notification
	FeedbackReports []models.FeedbackReport
}

// Snapshot copies every table under one read lock.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Loading:         c.loading,
		Budgets:         c.budgets.snapshot(),
		Expenses:        c.expenses.snapshot(),
		Anomalies:       c.anomalies.snapshot(),
		Notifications:   c.notifications.snapshot(),
		FeedbackReports: c.feedbackReports.snapshot(),
	}
}
