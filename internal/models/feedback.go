package models

import (
	"strings"
	"time"
)

// FeedbackCategory classifies an anonymous HR report
type FeedbackCategory string

const (
	FeedbackCategoryUnfairPromotion FeedbackCategory = "unfair-promotion"
	FeedbackCategoryToxicLeadership FeedbackCategory = "toxic-leadership"
	FeedbackCategoryHarassment      FeedbackCategory = "harassment"
	FeedbackCategoryDiscrimination  FeedbackCategory = "discrimination"
	FeedbackCategoryRetaliation     FeedbackCategory = "retaliation"
	FeedbackCategoryOther           FeedbackCategory = "other"
)

// Valid reports whether c is a known category.
func (c FeedbackCategory) Valid() bool {
	switch c {
	case FeedbackCategoryUnfairPromotion, FeedbackCategoryToxicLeadership, FeedbackCategoryHarassment,
		FeedbackCategoryDiscrimination, FeedbackCategoryRetaliation, FeedbackCategoryOther:
		return true
	}
	return false
}

// Label returns the category in words, e.g. "toxic leadership".
func (c FeedbackCategory) Label() string {
	return strings.ReplaceAll(string(c), "-", " ")
}

// FeedbackSeverity is the submitter's assessment of a report
type FeedbackSeverity string

const (
	FeedbackSeverityLow      FeedbackSeverity = "low"
	FeedbackSeverityMedium   FeedbackSeverity = "medium"
	FeedbackSeverityHigh     FeedbackSeverity = "high"
	FeedbackSeverityCritical FeedbackSeverity = "critical"
)

// Valid reports whether s is a known severity.
func (s FeedbackSeverity) Valid() bool {
	switch s {
	case FeedbackSeverityLow, FeedbackSeverityMedium, FeedbackSeverityHigh, FeedbackSeverityCritical:
		return true
	}
	return false
}

// FeedbackStatus tracks HR handling of a report
type FeedbackStatus string

const (
	FeedbackStatusNew           FeedbackStatus = "new"
	FeedbackStatusUnderReview   FeedbackStatus = "under-review"
	FeedbackStatusInvestigating FeedbackStatus = "investigating"
	FeedbackStatusResolved      FeedbackStatus = "resolved"
	FeedbackStatusClosed        FeedbackStatus = "closed"
)

// Valid reports whether s is a known status.
func (s FeedbackStatus) Valid() bool {
	switch s {
	case FeedbackStatusNew, FeedbackStatusUnderReview, FeedbackStatusInvestigating,
		FeedbackStatusResolved, FeedbackStatusClosed:
		return true
	}
	return false
}

// Open reports whether HR still has work to do on the report.
func (s FeedbackStatus) Open() bool {
	switch s {
	case FeedbackStatusNew, FeedbackStatusUnderReview, FeedbackStatusInvestigating:
		return true
	}
	return false
}

// FeedbackReport is an anonymous report to HR. It deliberately has no
// submitter column; the tracking code is the only handle the submitter keeps.
type FeedbackReport struct {
	Base
	Category        FeedbackCategory `gorm:"not null;index" json:"category"`
	Department      string           `gorm:"not null" json:"department"`
	Severity        FeedbackSeverity `gorm:"not null" json:"severity"`
	Subject         string           `gorm:"not null" json:"subject"`
	Description     string           `gorm:"not null" json:"description"`
	IncidentDate    *time.Time       `json:"incident_date,omitempty"`
	InvolvedParties *string          `json:"involved_parties,omitempty"`
	SubmittedAt     time.Time        `gorm:"not null" json:"submitted_at"`
	Status          FeedbackStatus   `gorm:"not null;default:new;index" json:"status"`
	HRNotes         *string          `json:"hr_notes,omitempty"`
	AssignedTo      *string          `json:"assigned_to,omitempty"`
	IsAnonymous     bool             `gorm:"not null;default:true" json:"is_anonymous"`
	TrackingCode    string           `gorm:"not null;uniqueIndex" json:"tracking_code"`
}

// Collection implements Record.
func (FeedbackReport) Collection() Collection { return CollectionFeedbackReports }

// FeedbackStatusView is what an anonymous submitter sees when checking a
// tracking code. HR notes and assignment stay internal.
type FeedbackStatusView struct {
	TrackingCode string           `json:"tracking_code"`
	Category     FeedbackCategory `json:"category"`
	Severity     FeedbackSeverity `json:"severity"`
	Subject      string           `json:"subject"`
	Status       FeedbackStatus   `json:"status"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StatusView returns the submitter-facing view of r.
func (r FeedbackReport) StatusView() FeedbackStatusView {
	return FeedbackStatusView{
		TrackingCode: r.TrackingCode,
		Category:     r.Category,
		Severity:     r.Severity,
		Subject:      r.Subject,
		Status:       r.Status,
		SubmittedAt:  r.SubmittedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
