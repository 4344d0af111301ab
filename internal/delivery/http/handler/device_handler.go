package handler

import (
	"net/http"

	"fluoride-monitor/internal/delivery/http/dto"
	"fluoride-monitor/internal/usecase/actuator"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	aggregation *aggregation.Service
	actuator    *actuator.Service
}

func NewDeviceHandler(aggregationService *aggregation.Service, actuatorService *actuator.Service) *DeviceHandler {
	return &DeviceHandler{
		aggregation: aggregationService,
		actuator:    actuatorService,
	}
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/led/:device_id", h.GetRelayState)
		devices.PUT("/led/:device_id", h.SetRelayState)
	}
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	views, err := h.aggregation.ListDevices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToDeviceListResponse(views))
}

func (h *DeviceHandler) GetRelayState(c *gin.Context) {
	deviceID := utils.NormalizeID(c.Param("device_id"))

	state, err := h.actuator.GetRelayState(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RelayStateResponse{
		DeviceID:   deviceID,
		RelayState: string(state),
	})
}

func (h *DeviceHandler) SetRelayState(c *gin.Context) {
	var body dto.SetRelayBody

	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, bindError(err, actuator.FieldMessage))
		return
	}

	device, err := h.actuator.SetRelayState(c.Request.Context(), &actuator.SetRelayRequest{
		DeviceID:   c.Param("device_id"),
		RelayState: body.RelayState,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SetRelayResponse{
		Message: "Relay state updated",
		Device:  actuator.ToRelayResponse(device),
	})
}
