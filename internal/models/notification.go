package models

import "time"

// NotificationType represents the urgency of a notification
type NotificationType string

const (
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeAlert   NotificationType = "alert"
	NotificationTypeInfo    NotificationType = "info"
)

// Notification is shown in the dashboard bell. It is created as a side effect
// of anomaly detection and feedback submission, and only Read ever changes.
type Notification struct {
	Base
	Type      NotificationType `gorm:"not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	Timestamp time.Time        `gorm:"not null;index" json:"timestamp"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	BudgetID  *string          `gorm:"type:uuid" json:"budget_id,omitempty"`
	// Audience limits the notification to one role. Empty means everyone.
	Audience Role `json:"audience,omitempty"`
}

// Collection implements Record.
func (Notification) Collection() Collection { return CollectionNotifications }

// VisibleTo reports whether a user with the given role should see n.
func (n Notification) VisibleTo(role Role) bool {
	return n.Audience == "" || n.Audience == role
}
