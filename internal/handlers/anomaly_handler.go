package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/middleware"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/services"
)

// AnomalyHandler handles review of budget overruns.
type AnomalyHandler struct {
	anomalyService services.AnomalyServicer
}

// NewAnomalyHandler creates a new AnomalyHandler.
func NewAnomalyHandler(anomalyService services.AnomalyServicer) *AnomalyHandler {
	return &AnomalyHandler{anomalyService: anomalyService}
}

// UpdateAnomalyRequest moves an anomaly along its review path.
type UpdateAnomalyRequest struct {
	Status models.AnomalyStatus `json:"status" binding:"required,anomaly_status"`
	Reason *string              `json:"reason"`
}

// GetAnomalies lists anomalies.
// @Summary     Get anomalies
// @Description List detected budget overruns, optionally filtered by review status
// @Tags        anomalies
// @Produce     json
// @Security    BearerAuth
// @Param       status query string false "Filter by status (pending/reviewed/approved/rejected)"
// @Success     200 {array}  models.Anomaly "Anomalies"
// @Failure     400 {object} ErrorResponse "Invalid status"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /anomalies [get]
func (h *AnomalyHandler) GetAnomalies(c *gin.Context) {
	var status *models.AnomalyStatus
	if v := c.Query("status"); v != "" {
		s := models.AnomalyStatus(v)
		if !s.Valid() {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "status must be 'pending', 'reviewed', 'approved' or 'rejected'"))
			return
		}
		status = &s
	}

	anomalies := h.anomalyService.ListAnomalies(status)
	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": anomalies})
}

// UpdateAnomalyStatus reviews an anomaly.
// @Summary     Review anomaly
// @Description Move an anomaly from pending to reviewed, approved or rejected. Finance heads only.
// @Tags        anomalies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Anomaly ID"
// @Param       request body UpdateAnomalyRequest true "New status"
// @Success     200 {object} models.Anomaly "Updated anomaly"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     404 {object} ErrorResponse "Anomaly not found"
// @Failure     409 {object} ErrorResponse "Invalid status change"
// @Router      /anomalies/{id} [patch]
func (h *AnomalyHandler) UpdateAnomalyStatus(c *gin.Context) {
	anomalyID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateAnomalyRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	anomaly, err := h.anomalyService.UpdateAnomalyStatus(c.Request.Context(), middleware.CurrentUser(c), anomalyID, req.Status, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"anomaly": anomaly})
}
