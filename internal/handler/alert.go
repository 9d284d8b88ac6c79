package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
)

type AlertHandler interface {
	ListAlerts(c *gin.Context)
	GetAlertByID(c *gin.Context)
	UpdateAlertStatus(c *gin.Context)
}

type alertHandler struct {
	alertRepo repository.AlertRepository
	logger    *zap.Logger
}

func NewAlertHandler(alertRepo repository.AlertRepository, logger *zap.Logger) AlertHandler {
	return &alertHandler{alertRepo: alertRepo, logger: logger}
}

func (h *alertHandler) ListAlerts(c *gin.Context) {
	status := c.Query("status")
	alertType := c.Query("type")

	alerts, err := h.alertRepo.ListAlerts(c.Request.Context(), status, alertType)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (h *alertHandler) GetAlertByID(c *gin.Context) {
	id := c.Param("id")

	alert, err := h.alertRepo.GetAlertByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get alert", zap.String("alert_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, alert)
}

type updateAlertStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *alertHandler) UpdateAlertStatus(c *gin.Context) {
	id := c.Param("id")

	var req updateAlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Status {
	case models.AlertStatusNew, models.AlertStatusDispatched, models.AlertStatusSuppressed, models.AlertStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown alert status"})
		return
	}

	if err := h.alertRepo.UpdateAlertStatus(c.Request.Context(), id, req.Status); err != nil {
		h.logger.Error("failed to update alert status", zap.String("alert_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert updated"})
}
