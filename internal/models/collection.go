package models

// Collection names a synced entity collection. The values are the logical
// collection names shared with the change feed.
type Collection string

const (
	CollectionBudgets         Collection = "budgets"
	CollectionExpenses        Collection = "expenses"
	CollectionAnomalies       Collection = "anomalies"
	CollectionNotifications   Collection = "notifications"
	CollectionFeedbackReports Collection = "feedbackReports"
)

// Collections returns every synced collection in load order.
func Collections() []Collection {
	return []Collection{
		CollectionBudgets,
		CollectionExpenses,
		CollectionAnomalies,
		CollectionNotifications,
		CollectionFeedbackReports,
	}
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionBudgets, CollectionExpenses, CollectionAnomalies, CollectionNotifications, CollectionFeedbackReports:
		return true
	}
	return false
}

// All returns every gorm model, in dependency order, for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Budget{},
		&Expense{},
		&Anomaly{},
		&Notification{},
		&FeedbackReport{},
	}
}
