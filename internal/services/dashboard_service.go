package services

import (
	"github.com/xuri/excelize/v2"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/reports"
	"github.com/zenpa1/budget-tracker/internal/views"
)

// dashboardService serves read-only aggregates over the cache.
type dashboardService struct {
	cache *cache.Cache
}

// NewDashboardService creates a new DashboardServicer.
func NewDashboardService(c *cache.Cache) DashboardServicer {
	return &dashboardService{cache: c}
}

// Dashboard computes the stats cards for user from a fresh snapshot.
func (s *dashboardService) Dashboard(user *models.User) (*views.Dashboard, error) {
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}
	d := views.BuildDashboard(s.cache.Snapshot(), user.Role, auth.Can(user.Role, auth.ViewFeedbackInbox))
	return &d, nil
}

// Capabilities lists what user may do.
func (s *dashboardService) Capabilities(user *models.User) []auth.Action {
	if user == nil {
		return []auth.Action{auth.SubmitFeedback}
	}
	return auth.Capabilities(user.Role)
}

// AnomalyReport builds the anomaly workbook. Finance heads only.
func (s *dashboardService) AnomalyReport(user *models.User) (*excelize.File, error) {
	if err := auth.Require(user, auth.ExportReports); err != nil {
		return nil, err
	}
	f, err := reports.AnomalyWorkbook(s.cache.Snapshot())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return f, nil
}
