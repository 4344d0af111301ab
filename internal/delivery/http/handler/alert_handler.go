package handler

import (
	"net/http"

	"fluoride-monitor/internal/delivery/http/dto"
	"fluoride-monitor/internal/usecase/alerting"

	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	alerting *alerting.Service
}

func NewAlertHandler(alertingService *alerting.Service) *AlertHandler {
	return &AlertHandler{alerting: alertingService}
}

func (h *AlertHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/alerts", h.ListAlerts)
}

func (h *AlertHandler) ListAlerts(c *gin.Context) {
	events, err := h.alerting.ActiveAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AlertListResponse{
		Count:  len(events),
		Alerts: events,
	})
}
