package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardHandler serves aggregates and exports.
type DashboardHandler struct {
	dashboardService services.DashboardServicer
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService services.DashboardServicer) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// GetDashboard returns the stats cards for the caller.
// @Summary     Get dashboard
// @Description Totals, utilization, anomalies, unread notifications and spending breakdowns, recomputed on every call
// @Tags        dashboard
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} views.Dashboard "Dashboard"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	d, err := h.dashboardService.Dashboard(middleware.CurrentUser(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ExportAnomalyReport downloads the anomaly workbook.
// @Summary     Export anomaly report
// @Description Download anomalies and exceeded budgets as an Excel workbook. Finance heads only.
// @Tags        dashboard
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security    BearerAuth
// @Success     200 {file} file "Workbook"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /reports/anomalies [get]
func (h *DashboardHandler) ExportAnomalyReport(c *gin.Context) {
	f, err := h.dashboardService.AnomalyReport(middleware.CurrentUser(c))
	if err != nil {
		respondWithError(c, err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Named("http").Warnw("Failed to close workbook", "error", err)
		}
	}()

	buf, err := f.WriteToBuffer()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	name := fmt.Sprintf("anomalies-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
