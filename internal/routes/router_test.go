package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fluoride-monitor/internal/alert"
	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/domain"
	"fluoride-monitor/internal/infrastructure/database/memory"
	"fluoride-monitor/internal/usecase/actuator"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/internal/usecase/alerting"
	"fluoride-monitor/internal/usecase/ingestion"

	"github.com/gin-gonic/gin"
)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		RateLimit: config.RateLimitConfig{
			GeneralRPS:   1000,
			GeneralBurst: 1000,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT"},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	devices := memory.NewDeviceRepository()
	readings := memory.NewReadingRepository()
	agg := aggregation.NewService(devices, readings)

	return SetupRoutes(testConfig(), &Services{
		Ingestion:   ingestion.NewService(domain.NoopTransactor{}, devices, readings),
		Aggregation: agg,
		Actuator:    actuator.NewService(devices),
		Alerting:    alerting.NewService(agg, alert.NewEngine(alert.DefaultThresholds())),
		Store:       devices,
	})
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestIngestAndQuery(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/data", `{"device_id":"esp32-01","humidity":75,"fluoride":2.0,"location":"Gorakhpur","metadata":{"latitude":26.76,"longitude":83.37},"timestamp":"2024-05-01T08:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/data status = %d, body = %s", w.Code, w.Body.String())
	}

	var created struct {
		Message string `json:"message"`
		Data    struct {
			Device  map[string]interface{} `json:"device"`
			Reading map[string]interface{} `json:"reading"`
		} `json:"data"`
	}
	decode(t, w, &created)
	if created.Message != "Reading stored successfully" {
		t.Errorf("message = %q", created.Message)
	}
	if created.Data.Device["relay_state"] != "off" || created.Data.Device["location"] != "Gorakhpur" {
		t.Errorf("device = %v", created.Data.Device)
	}
	if created.Data.Reading["fluoride"] != 2.0 {
		t.Errorf("reading = %v", created.Data.Reading)
	}

	w = do(t, r, http.MethodGet, "/api/data/esp32-01?limit=5", "")
	var list struct {
		DeviceID string                   `json:"device_id"`
		Count    int                      `json:"count"`
		Readings []map[string]interface{} `json:"readings"`
	}
	decode(t, w, &list)
	if w.Code != http.StatusOK || list.DeviceID != "esp32-01" || list.Count != 1 || len(list.Readings) != 1 {
		t.Fatalf("GET /api/data = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/devices", "")
	var devices struct {
		Devices []struct {
			DeviceID    string                 `json:"device_id"`
			LastReading map[string]interface{} `json:"last_reading"`
			Metadata    map[string]interface{} `json:"metadata"`
		} `json:"devices"`
	}
	decode(t, w, &devices)
	if len(devices.Devices) != 1 || devices.Devices[0].LastReading == nil {
		t.Fatalf("GET /api/devices = %s", w.Body.String())
	}
	if devices.Devices[0].Metadata["latitude"] != 26.76 {
		t.Errorf("metadata = %v", devices.Devices[0].Metadata)
	}

	w = do(t, r, http.MethodGet, "/api/alerts", "")
	var alerts struct {
		Count  int `json:"count"`
		Alerts []struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"alerts"`
	}
	decode(t, w, &alerts)
	if alerts.Count != 2 || alerts.Alerts[0].Level != "warning" || alerts.Alerts[1].Message != "Humidity 75.0% above 70%" {
		t.Fatalf("GET /api/alerts = %s", w.Body.String())
	}
}

func TestIngestValidationErrors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"missing fields", `{}`, []string{"device_id", "fluoride"}},
		{"range errors", `{"device_id":"d","humidity":150,"fluoride":-1}`, []string{"humidity", "fluoride"}},
		{"humidity not a number", `{"device_id":"d","humidity":"wet","fluoride":1}`, []string{"humidity"}},
		{"mistyped field among others", `{"device_id":"","humidity":"wet","fluoride":-3}`, []string{"device_id", "humidity", "fluoride"}},
		{
			"mistyped nested fields and timestamp",
			`{"device_id":"d","fluoride":"x","metadata":{"latitude":"north","longitude":200},"timestamp":"yesterday"}`,
			[]string{"fluoride", "metadata.latitude", "metadata.longitude", "timestamp"},
		},
		{"hidden character in device id", `{"device_id":"esp\u200b01","fluoride":1}`, []string{"device_id"}},
		{"not an object", `[1,2]`, []string{"body"}},
		{"malformed json", `{"device_id":`, []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/data", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp struct {
				Errors []struct {
					Field   string `json:"field"`
					Message string `json:"message"`
				} `json:"errors"`
			}
			decode(t, w, &resp)
			if len(resp.Errors) != len(tt.fields) {
				t.Fatalf("errors = %+v, want fields %v", resp.Errors, tt.fields)
			}
			for i, field := range tt.fields {
				if resp.Errors[i].Field != field {
					t.Errorf("errors[%d].field = %q, want %q", i, resp.Errors[i].Field, field)
				}
			}
		})
	}

	w := do(t, r, http.MethodGet, "/api/devices", "")
	if !strings.Contains(w.Body.String(), `"devices":[]`) {
		t.Fatalf("invalid requests created devices: %s", w.Body.String())
	}
}

func TestRelayEndpoints(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/devices/led/unknown", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"relay_state":"off"`) {
		t.Fatalf("GET relay for unknown device = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/api/devices/led/pump-7", `{"relay_state":"on"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT relay status = %d, body = %s", w.Code, w.Body.String())
	}
	var updated struct {
		Message string `json:"message"`
		Device  struct {
			DeviceID   string `json:"device_id"`
			RelayState string `json:"relay_state"`
			Location   string `json:"location"`
			LastSeen   string `json:"last_seen"`
		} `json:"device"`
	}
	decode(t, w, &updated)
	if updated.Message != "Relay state updated" || updated.Device.RelayState != "on" || updated.Device.Location != "Unknown" || updated.Device.LastSeen == "" {
		t.Fatalf("PUT relay response = %s", w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/devices/led/pump-7", "")
	if !strings.Contains(w.Body.String(), `"relay_state":"on"`) {
		t.Fatalf("relay not persisted: %s", w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/api/devices/led/pump-7", `{"relay_state":"blink"}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "relay_state must be either 'on' or 'off'") {
		t.Fatalf("invalid relay state = %d %s", w.Code, w.Body.String())
	}
}

func TestDeviceIDsAreTrimmedConsistently(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/data", `{"device_id":" esp32-01 ","fluoride":0.4}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/data = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/data/%20esp32-01%20", "")
	var list struct {
		DeviceID string `json:"device_id"`
		Count    int    `json:"count"`
	}
	decode(t, w, &list)
	if w.Code != http.StatusOK || list.DeviceID != "esp32-01" || list.Count != 1 {
		t.Fatalf("GET padded id = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/devices/led/%20esp32-01", "")
	if !strings.Contains(w.Body.String(), `"device_id":"esp32-01"`) {
		t.Fatalf("GET relay padded id = %s", w.Body.String())
	}

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/data/esp%E2%80%8B01", ""},
		{http.MethodGet, "/api/devices/led/esp%E2%80%8B01", ""},
		{http.MethodPut, "/api/devices/led/esp%E2%80%8B01", `{"relay_state":"on"}`},
	} {
		w = do(t, r, req.method, req.path, req.body)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"field":"device_id"`) {
			t.Errorf("%s %s = %d %s", req.method, req.path, w.Code, w.Body.String())
		}
	}
}

func TestSetRelayReportsUnreadableBody(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name, body, field string
	}{
		{"truncated json", `{"relay_state":`, "body"},
		{"empty body", "", "body"},
		{"wrong type", `{"relay_state":1}`, "relay_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPut, "/api/devices/led/pump-7", tt.body)
			if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"field":"`+tt.field+`"`) {
				t.Fatalf("PUT = %d %s, want field %s", w.Code, w.Body.String(), tt.field)
			}
		})
	}

	w := do(t, r, http.MethodGet, "/api/devices", "")
	if !strings.Contains(w.Body.String(), `"devices":[]`) {
		t.Fatalf("rejected relay requests created devices: %s", w.Body.String())
	}
}

func TestHealthAndNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"message"`) {
		t.Fatalf("unknown route = %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
}

func TestHealthReportsStoreOutage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	devices := memory.NewDeviceRepository()
	readings := memory.NewReadingRepository()
	agg := aggregation.NewService(devices, readings)
	r := SetupRoutes(testConfig(), &Services{
		Ingestion:   ingestion.NewService(nil, devices, readings),
		Aggregation: agg,
		Actuator:    actuator.NewService(devices),
		Alerting:    alerting.NewService(agg, alert.NewEngine(alert.DefaultThresholds())),
		Store:       downStore{},
	})

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health with store down = %d", w.Code)
	}
}
