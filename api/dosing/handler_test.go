package dosing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutetra/doser/core/controller"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/infra/logger"
)

type stubSensors struct{ reading model.SensorReading }

func (s stubSensors) GetReadings(context.Context) (model.SensorReading, error) {
	return s.reading, nil
}

type stubProfiles struct{ profile *model.Profile }

func (s stubProfiles) ActiveProfile(context.Context) (*model.Profile, error) {
	return s.profile, nil
}

type stubActuator struct{}

func (stubActuator) Dispense(context.Context, string, float64, float64) error { return nil }

func newTestController(t *testing.T) *controller.Controller {
	t.Helper()
	cfg := controller.Config{
		CheckInterval:    time.Minute,
		DosingCooldown:   5 * time.Minute,
		BetweenDoseDelay: time.Second,
	}
	c, err := controller.New(cfg, stubSensors{model.SensorReading{Ph: 6.0, Ec: 1.2}}, stubProfiles{}, stubActuator{}, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

func TestStatusHandler(t *testing.T) {
	ctrl := newTestController(t)
	h := NewStatusHandler(ctrl, "")

	req := httptest.NewRequest(http.MethodGet, "/api/dosing/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var st controller.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Enabled)
	assert.InDelta(t, 60.0, st.Config.CheckInterval, 1e-9)
}

func TestStatusHandlerMethodNotAllowed(t *testing.T) {
	h := NewStatusHandler(newTestController(t), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusHandlerAuth(t *testing.T) {
	h := NewStatusHandler(newTestController(t), "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/dosing/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartAndStopHandlers(t *testing.T) {
	ctrl := newTestController(t)

	rec := httptest.NewRecorder()
	NewStartHandler(ctrl, "").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.GetStatus().Running)

	rec = httptest.NewRecorder()
	NewStopHandler(ctrl, "").ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ctrl.GetStatus().Running)
}

func TestHistoryHandler(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.Recorder().AppendDose(model.DosingRecord{Pump: "pH Up", AmountMl: 0.5, Reason: model.ReasonPhAdjustment})
	h := NewHistoryHandler(ctrl, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/history?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hist controller.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.DosingHistory, 1)
	assert.Equal(t, "pH Up", hist.DosingHistory[0].Pump)
}

func TestHistoryHandlerDefaultLimit(t *testing.T) {
	ctrl := newTestController(t)
	for i := 0; i < defaultHistoryLimit+10; i++ {
		ctrl.Recorder().AppendDose(model.DosingRecord{Pump: "pH Up", AmountMl: 0.5, Reason: model.ReasonPhAdjustment})
	}
	h := NewHistoryHandler(ctrl, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var hist controller.History
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.DosingHistory, defaultHistoryLimit)

	// An explicit limit=0 still means everything.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/history?limit=0", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.DosingHistory, defaultHistoryLimit+10)
}

func TestHistoryHandlerInvalidLimit(t *testing.T) {
	h := NewHistoryHandler(newTestController(t), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/history?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigHandlerRoundTrip(t *testing.T) {
	ctrl := newTestController(t)
	h := NewConfigHandler(ctrl, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dosing/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := strings.NewReader(`{"check_interval": 120, "ph_tolerance": 0.3}`)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/config", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var echo controller.ConfigEcho
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &echo))
	assert.InDelta(t, 120.0, echo.CheckInterval, 1e-9)
	assert.InDelta(t, 0.3, echo.PhTolerance, 1e-9)
}

func TestConfigHandlerRejectsInvalid(t *testing.T) {
	h := NewConfigHandler(newTestController(t), "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/config", strings.NewReader(`{"check_interval": -5}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/config", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerWithoutStore(t *testing.T) {
	h := NewExportHandler(newTestController(t), "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/dosing/export", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
