package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
)

// anomalyService handles the finance head's review of budget overruns.
type anomalyService struct {
	store store.Client
	cache *cache.Cache
}

// NewAnomalyService creates a new AnomalyServicer.
func NewAnomalyService(st store.Client, c *cache.Cache) AnomalyServicer {
	return &anomalyService{store: st, cache: c}
}

// ListAnomalies returns cached anomalies, optionally filtered by status.
func (s *anomalyService) ListAnomalies(status *models.AnomalyStatus) []models.Anomaly {
	anomalies := s.cache.Snapshot().Anomalies
	if status == nil {
		return anomalies
	}
	out := anomalies[:0]
	for _, a := range anomalies {
		if a.Status == *status {
			out = append(out, a)
		}
	}
	return out
}

// UpdateAnomalyStatus moves an anomaly along pending -> reviewed ->
// approved|rejected. Only a finance head may do this; the role and the
// transition are both checked before the store is touched.
func (s *anomalyService) UpdateAnomalyStatus(
	ctx context.Context,
	user *models.User,
	id string,
	status models.AnomalyStatus,
	reason *string,
) (*models.Anomaly, error) {
	if err := auth.Require(user, auth.ReviewAnomalies); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, fmt.Sprintf("status %q is not a valid anomaly status", status))
	}

	anomaly, ok := s.cache.Anomaly(id)
	if !ok {
		return nil, apperrors.ErrAnomalyNotFound
	}
	if !anomaly.Status.CanTransitionTo(status) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition,
			fmt.Sprintf("anomaly cannot move from %s to %s", anomaly.Status, status))
	}

	update := &models.AnomalyStatusUpdate{
		ID:              anomaly.ID,
		ExpectedVersion: anomaly.Version,
		Status:          status,
	}
	if reason != nil {
		if r := strings.TrimSpace(*reason); r != "" {
			update.Reason = &r
		}
	}

	res, err := s.store.Commit(ctx, &store.Batch{AnomalyStatus: update})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Someone else reviewed it first; the caller must look again.
			return nil, apperrors.WithMessage(apperrors.ErrInvalidTransition, "anomaly was changed by another reviewer")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.ErrAnomalyNotFound
		}
		logger.Get().Errorw("Failed to update anomaly status", "anomaly_id", id, "error", err)
		return nil, storeError(err)
	}

	s.cache.Apply(res.Records()...)
	for _, rec := range res.Updated {
		if a, ok := rec.(*models.Anomaly); ok {
			return a, nil
		}
	}
	return nil, apperrors.ErrAnomalyNotFound
}
