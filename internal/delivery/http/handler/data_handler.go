package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"fluoride-monitor/internal/delivery/http/dto"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/internal/usecase/ingestion"
	appErrors "fluoride-monitor/pkg/errors"
	"fluoride-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
)

type DataHandler struct {
	ingestion   *ingestion.Service
	aggregation *aggregation.Service
}

func NewDataHandler(ingestionService *ingestion.Service, aggregationService *aggregation.Service) *DataHandler {
	return &DataHandler{
		ingestion:   ingestionService,
		aggregation: aggregationService,
	}
}

func (h *DataHandler) RegisterRoutes(router *gin.RouterGroup) {
	data := router.Group("/data")
	{
		data.POST("", h.IngestReading)
		data.GET("/:device_id", h.GetReadings)
	}
}

func (h *DataHandler) IngestReading(c *gin.Context) {
	var req ingestion.IngestRequest

	if err := decodeIngestRequest(c, &req); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.ingestion.Ingest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Reading stored successfully", dto.IngestResponse{
		Device:  dto.ToDeviceResponse(result.Device),
		Reading: dto.ToReadingResponse(result.Reading),
	})
}

func (h *DataHandler) GetReadings(c *gin.Context) {
	deviceID := utils.NormalizeID(c.Param("device_id"))

	// A missing or malformed limit falls back to the default window.
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = 0
	}

	readings, err := h.aggregation.RecentReadings(c.Request.Context(), deviceID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ReadingListResponse{
		DeviceID: deviceID,
		Count:    len(readings),
		Readings: dto.ToReadingResponses(readings),
	})
}

// decodeIngestRequest decodes the body one field at a time so that every
// field holding a value of the wrong type is reported, together with the
// rule failures of the fields that did decode.
func decodeIngestRequest(c *gin.Context, req *ingestion.IngestRequest) error {
	body, err := c.GetRawData()
	if err != nil {
		return invalidBody()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return invalidBody()
	}

	var undecodable []string
	for _, key := range sortedKeys(raw) {
		if strings.EqualFold(key, "metadata") {
			var nested map[string]json.RawMessage
			if json.Unmarshal(raw[key], &nested) == nil && nested != nil {
				if req.Metadata == nil {
					req.Metadata = &ingestion.MetadataRequest{}
				}
				undecodable = append(undecodable, decodeFields(nested, req.Metadata, "metadata.")...)
				continue
			}
		}
		undecodable = append(undecodable, decodeFields(map[string]json.RawMessage{key: raw[key]}, req, "")...)
	}

	if len(undecodable) == 0 {
		return nil
	}
	return ingestion.ValidateIngestRequest(req, undecodable...)
}

// decodeFields decodes each entry of raw into target and returns the
// prefixed names of the entries that did not fit.
func decodeFields(raw map[string]json.RawMessage, target interface{}, prefix string) []string {
	var fields []string
	for _, key := range sortedKeys(raw) {
		single, err := json.Marshal(map[string]json.RawMessage{key: raw[key]})
		if err != nil {
			fields = append(fields, prefix+strings.ToLower(key))
			continue
		}
		if err := json.Unmarshal(single, target); err != nil {
			fields = append(fields, prefix+fieldName(key, err))
		}
	}
	return fields
}

func fieldName(key string, err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field
	}
	return strings.ToLower(key)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func invalidBody() error {
	return appErrors.NewValidationError("body", "request body must be a JSON object")
}

// bindError turns a JSON decoding failure into a field-level validation
// error where the offending field is known.
func bindError(err error, message func(field string) string) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return appErrors.NewValidationError(typeErr.Field, message(typeErr.Field))
	}
	return invalidBody()
}
