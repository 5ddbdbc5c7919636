package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/lock"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/validator"
	"github.com/zenpa1/budget-tracker/internal/views"
)

const (
	trackingLockKey     = "feedback:tracking-code"
	maxTrackingAttempts = 5
)

// AddFeedbackInput is an anonymous report. Nothing in it identifies the
// submitter.
type AddFeedbackInput struct {
	Category        models.FeedbackCategory `json:"category" validate:"feedback_category"`
	Department      string                  `json:"department" validate:"notblank"`
	Severity        models.FeedbackSeverity `json:"severity" validate:"feedback_severity"`
	Subject         string                  `json:"subject" validate:"notblank"`
	Description     string                  `json:"description" validate:"notblank"`
	IncidentDate    *time.Time              `json:"incident_date,omitempty"`
	InvolvedParties *string                 `json:"involved_parties,omitempty"`
}

// UpdateFeedbackInput is an HR admin's change to a report. An empty HRNotes
// keeps the notes already on the report.
type UpdateFeedbackInput struct {
	Status     models.FeedbackStatus `json:"status" validate:"feedback_status"`
	HRNotes    *string               `json:"hr_notes,omitempty"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// FeedbackFilter narrows the HR inbox. Status wins over Bucket.
type FeedbackFilter struct {
	Status *models.FeedbackStatus
	Bucket views.FeedbackBucket
}

// feedbackService handles anonymous HR reports.
type feedbackService struct {
	store  store.Client
	cache  *cache.Cache
	locker lock.Locker
	now    func() time.Time
}

// NewFeedbackService creates a new FeedbackServicer.
func NewFeedbackService(st store.Client, c *cache.Cache, locker lock.Locker) FeedbackServicer {
	return &feedbackService{store: st, cache: c, locker: locker, now: utcNow}
}

// AddFeedbackReport stores an anonymous report and alerts HR. The tracking
// code is the only thing returned, and only the category is ever logged.
func (s *feedbackService) AddFeedbackReport(ctx context.Context, input AddFeedbackInput) (string, error) {
	if err := validator.Struct(input); err != nil {
		return "", err
	}

	unlock, err := s.locker.Lock(ctx, trackingLockKey)
	if err != nil {
		return "", storeError(err)
	}
	defer unlock()

	seq, err := s.nextSequence(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	log := logger.Named("feedback")
	for attempt := 1; ; attempt++ {
		var code string
		code, seq = s.freeTrackingCode(now.Year(), seq)

		report := &models.FeedbackReport{
			Category:        input.Category,
			Department:      strings.TrimSpace(input.Department),
			Severity:        input.Severity,
			Subject:         strings.TrimSpace(input.Subject),
			Description:     strings.TrimSpace(input.Description),
			IncidentDate:    input.IncidentDate,
			InvolvedParties: input.InvolvedParties,
			SubmittedAt:     now,
			Status:          models.FeedbackStatusNew,
			IsAnonymous:     true,
			TrackingCode:    code,
		}
		notification := &models.Notification{
			Type:      models.NotificationTypeAlert,
			Title:     "New Anonymous Report",
			Message:   fmt.Sprintf("A new %s report has been submitted", input.Category.Label()),
			Timestamp: now,
			Audience:  models.RoleHRAdmin,
		}

		res, err := s.store.Commit(ctx, &store.Batch{Inserts: []models.Record{report, notification}})
		if err == nil {
			s.cache.Apply(res.Records()...)
			log.Infow("Feedback report submitted", "category", input.Category)
			return code, nil
		}
		if !errors.Is(err, store.ErrDuplicate) || attempt == maxTrackingAttempts {
			cause := redactedCause(err)
			log.Errorw("Failed to submit feedback report", "category", input.Category, "attempt", attempt, "cause", cause.Error())
			return "", storeError(fmt.Errorf("feedback report was not stored: %w", cause))
		}
		seq++
	}
}

// redactedCause reduces a store failure to its class. Driver messages can echo
// the tracking code back, so only the sentinel or the error's type survives.
func redactedCause(err error) error {
	for _, known := range []error{store.ErrDuplicate, store.ErrVersionConflict, store.ErrNotFound, context.Canceled, context.DeadlineExceeded} {
		if errors.Is(err, known) {
			return known
		}
	}
	return fmt.Errorf("store: %T", err)
}

// nextSequence is one more than the number of reports known. The store is
// asked only while the cache is still loading.
func (s *feedbackService) nextSequence(ctx context.Context) (int, error) {
	if !s.cache.Loading() {
		return s.cache.FeedbackCount() + 1, nil
	}
	n, err := s.store.CountFeedbackReports(ctx)
	if err != nil {
		return 0, storeError(err)
	}
	return int(n) + 1, nil
}

// freeTrackingCode skips forward past codes already in the cache.
func (s *feedbackService) freeTrackingCode(year, seq int) (string, int) {
	for {
		code := TrackingCode(year, seq)
		if !s.cache.HasTrackingCode(code) {
			return code, seq
		}
		seq++
	}
}

// TrackingCode formats FB-<year>-<seq> with seq zero-padded to three digits.
func TrackingCode(year, seq int) string {
	return fmt.Sprintf("FB-%d-%03d", year, seq)
}

// UpdateFeedbackStatus changes a report's status, notes and assignee. Only
// an HR admin may do this, and the report's content cannot be edited.
func (s *feedbackService) UpdateFeedbackStatus(
	ctx context.Context,
	user *models.User,
	id string,
	input UpdateFeedbackInput,
) (*models.FeedbackReport, error) {
	if err := auth.Require(user, auth.ManageFeedback); err != nil {
		return nil, err
	}
	if err := validator.Struct(input); err != nil {
		return nil, err
	}

	report, ok := s.cache.FeedbackReport(id)
	if !ok {
		return nil, apperrors.ErrFeedbackNotFound
	}

	update := &models.FeedbackStatusUpdate{
		ID:         report.ID,
		Status:     input.Status,
		HRNotes:    nonBlank(input.HRNotes),
		AssignedTo: nonBlank(input.AssignedTo),
	}

	for attempt := 1; ; attempt++ {
		update.ExpectedVersion = report.Version
		res, err := s.store.Commit(ctx, &store.Batch{FeedbackStatus: update})
		if err == nil {
			s.cache.Apply(res.Records()...)
			for _, rec := range res.Updated {
				if r, ok := rec.(*models.FeedbackReport); ok {
					return r, nil
				}
			}
			return nil, apperrors.ErrFeedbackNotFound
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrFeedbackNotFound
		}
		if !errors.Is(err, store.ErrVersionConflict) || attempt == maxCommitAttempts {
			logger.Named("feedback").Errorw("Failed to update feedback status", "attempt", attempt, "error", err)
			return nil, storeError(err)
		}

		fresh, err := s.store.FindFeedbackByTrackingCode(ctx, report.TrackingCode)
		if err != nil {
			return nil, storeError(err)
		}
		report = *fresh
	}
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// LookupByTrackingCode lets an anonymous submitter check on a report. The
// code is matched without regard to case.
func (s *feedbackService) LookupByTrackingCode(ctx context.Context, code string) (*models.FeedbackStatusView, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "tracking_code is required")
	}

	if r, ok := s.cache.FindTrackingCode(code); ok {
		view := r.StatusView()
		return &view, nil
	}

	r, err := s.store.FindFeedbackByTrackingCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.ErrFeedbackNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	view := r.StatusView()
	return &view, nil
}

// ListFeedback returns the HR inbox.
func (s *feedbackService) ListFeedback(user *models.User, filter FeedbackFilter) ([]models.FeedbackReport, error) {
	if err := auth.Require(user, auth.ViewFeedbackInbox); err != nil {
		return nil, err
	}

	snap := s.cache.Snapshot()
	if filter.Status != nil {
		if !filter.Status.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrValidation, "status is not a valid feedback status")
		}
		return views.FeedbackByStatus(snap, *filter.Status), nil
	}

	bucket := filter.Bucket
	if bucket == "" {
		bucket = views.BucketAll
	}
	if !bucket.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "bucket must be one of all, active, resolved")
	}
	return views.FeedbackInBucket(snap, bucket), nil
}
