package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/pagination"
	"github.com/zenpa1/budget-tracker/internal/services"
	"github.com/zenpa1/budget-tracker/internal/views"
)

// FeedbackHandler handles anonymous HR reports. Submission and status
// lookup take no credentials; nothing about the caller is read or stored.
type FeedbackHandler struct {
	feedbackService services.FeedbackServicer
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedbackService services.FeedbackServicer) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// SubmitFeedbackResponse carries the only handle the submitter keeps.
type SubmitFeedbackResponse struct {
	TrackingCode string `json:"tracking_code"`
}

// SubmitFeedback files an anonymous report.
// @Summary     Submit anonymous feedback
// @Description File an anonymous report with HR and receive a tracking code
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Param       request body services.AddFeedbackInput true "Report"
// @Success     201 {object} SubmitFeedbackResponse "Report filed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     502 {object} ErrorResponse "Store error"
// @Router      /feedback [post]
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req services.AddFeedbackInput
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	code, err := h.feedbackService.AddFeedbackReport(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitFeedbackResponse{TrackingCode: code})
}

// GetFeedbackStatus looks up a report by tracking code.
// @Summary     Check report status
// @Description Look up an anonymous report by its tracking code (case-insensitive)
// @Tags        feedback
// @Produce     json
// @Param       code path string true "Tracking code, e.g. FB-2026-001"
// @Success     200 {object} models.FeedbackStatusView "Report status"
// @Failure     404 {object} ErrorResponse "No report found with this tracking code"
// @Router      /feedback/status/{code} [get]
func (h *FeedbackHandler) GetFeedbackStatus(c *gin.Context) {
	view, err := h.feedbackService.LookupByTrackingCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": view})
}

// GetFeedbackReports lists the HR inbox.
// @Summary     Get feedback inbox
// @Description List anonymous reports by status or bucket. HR admins only.
// @Tags        feedback
// @Produce     json
// @Security    BearerAuth
// @Param       status    query string false "Filter by status"
// @Param       bucket    query string false "all, active or resolved (default all)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.FeedbackReport] "Reports"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Router      /feedback [get]
func (h *FeedbackHandler) GetFeedbackReports(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filter := services.FeedbackFilter{Bucket: views.FeedbackBucket(c.Query("bucket"))}
	if v := c.Query("status"); v != "" {
		s := models.FeedbackStatus(v)
		filter.Status = &s
	}

	reports, err := h.feedbackService.ListFeedback(middleware.CurrentUser(c), filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, pagination.Slice(reports, page))
}

// UpdateFeedback changes a report's status, notes or assignee.
// @Summary     Update feedback report
// @Description Change the HR handling of a report. The report's content cannot be edited. HR admins only.
// @Tags        feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                       true "Report ID"
// @Param       request body services.UpdateFeedbackInput true "Changes"
// @Success     200 {object} models.FeedbackReport "Updated report"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Report not found"
// @Router      /feedback/{id} [patch]
func (h *FeedbackHandler) UpdateFeedback(c *gin.Context) {
	reportID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req services.UpdateFeedbackInput
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.feedbackService.UpdateFeedbackStatus(c.Request.Context(), middleware.CurrentUser(c), reportID, req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
