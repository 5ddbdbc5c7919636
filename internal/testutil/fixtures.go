package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zenpa1/budget-tracker/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates a user with the given role, a hashed password and a
// unique email.
func CreateTestUser(t *testing.T, db *gorm.DB, role models.Role) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email, role)
}

// CreateTestUserWithEmail creates a user with the given email and role.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:      email,
		Password:   string(hash),
		Name:       "Test User",
		Role:       role,
		Department: "Operations",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// NewUser returns an unsaved user with the given role, for tests that never
// touch the database.
func NewUser(role models.Role) *models.User {
	return &models.User{
		Base:       models.Base{ID: fmt.Sprintf("user-%d", nextID()), Version: 1},
		Email:      fmt.Sprintf("user%d@test.com", nextID()),
		Name:       "Test User",
		Role:       role,
		Department: "Operations",
	}
}

// CreateTestBudget creates an active budget with the given allocation and
// nothing spent.
func CreateTestBudget(t *testing.T, db *gorm.DB, allocated int64) *models.Budget {
	t.Helper()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	budget := &models.Budget{
		EventName:       fmt.Sprintf("Event %d", nextID()),
		Team:            "Platform",
		AllocatedAmount: decimal.NewFromInt(allocated),
		SpentAmount:     decimal.Zero,
		StartDate:       start,
		EndDate:         start.AddDate(0, 3, 0),
		Status:          models.BudgetStatusActive,
		Category:        "Events",
		Description:     "Test budget",
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestAnomaly creates a pending anomaly for budget.
func CreateTestAnomaly(t *testing.T, db *gorm.DB, budget *models.Budget) *models.Anomaly {
	t.Helper()

	anomaly := models.NewAnomaly(*budget, budget.AllocatedAmount.Add(decimal.NewFromInt(100)), time.Now().UTC())
	if err := db.Create(&anomaly).Error; err != nil {
		t.Fatalf("failed to create test anomaly: %v", err)
	}
	return &anomaly
}

// CreateTestNotification creates a notification with the given read flag.
func CreateTestNotification(t *testing.T, db *gorm.DB, read bool) *models.Notification {
	t.Helper()

	n := &models.Notification{
		Type:      models.NotificationTypeInfo,
		Title:     fmt.Sprintf("Notice %d", nextID()),
		Message:   "Something happened",
		Timestamp: time.Now().UTC(),
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("failed to create test notification: %v", err)
	}
	if read {
		// gorm skips zero-valued fields with defaults on create, so read is
		// set in a second step.
		if err := db.Model(n).Update("read", true).Error; err != nil {
			t.Fatalf("failed to mark test notification read: %v", err)
		}
		n.Read = true
	}
	return n
}

// CreateTestFeedbackReport creates a new report with the given tracking code.
func CreateTestFeedbackReport(t *testing.T, db *gorm.DB, trackingCode string) *models.FeedbackReport {
	t.Helper()

	report := &models.FeedbackReport{
		Category:     models.FeedbackCategoryOther,
		Department:   "Engineering",
		Severity:     models.FeedbackSeverityMedium,
		Subject:      "Test subject",
		Description:  "Test description",
		SubmittedAt:  time.Now().UTC(),
		Status:       models.FeedbackStatusNew,
		IsAnonymous:  true,
		TrackingCode: trackingCode,
	}
	if err := db.Create(report).Error; err != nil {
		t.Fatalf("failed to create test feedback report: %v", err)
	}
	return report
}
