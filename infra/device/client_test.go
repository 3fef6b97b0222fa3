package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutetra/doser/infra/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, logger.NopLogger{})
}

func TestGetReadingsBarePayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sensors", r.URL.Path)
		w.Write([]byte(`{"ph": 6.2, "ec": 1.4, "waterTemp": 21.5}`))
	}))

	r, err := c.GetReadings(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 6.2, r.Ph, 1e-9)
	assert.InDelta(t, 1.4, r.Ec, 1e-9)
	assert.InDelta(t, 21.5, r.WaterTemp, 1e-9)
	assert.False(t, r.ObservedAt.IsZero())
}

func TestGetReadingsEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": "success", "data": {"ph": 5.8, "ec": 2.0}}`))
	}))

	r, err := c.GetReadings(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.8, r.Ph, 1e-9)
	assert.InDelta(t, 2.0, r.Ec, 1e-9)
}

func TestGetReadingsErrorEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": "error", "data": {"message": "probes offline"}}`))
	}))

	_, err := c.GetReadings(context.Background())
	assert.Error(t, err)
}

func TestGetReadingsServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.GetReadings(context.Background())
	assert.Error(t, err)
}

func TestActiveProfile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/profiles/active", r.URL.Path)
		w.Write([]byte(`{"status": "success", "data": {
			"name": "Basil",
			"targetPh": {"target": 6.0, "buffer": 0.25},
			"targetEc": {"min": 1.0, "max": 1.6},
			"pumpAssignments": [{"pumpName": "Pump 1", "dosage": 5, "productName": "Grow A"}]
		}}`))
	}))

	p, err := c.ActiveProfile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Basil", p.Name)
	assert.InDelta(t, 6.0, p.TargetPh.Resolve(0), 1e-9)
	assert.InDelta(t, 1.3, p.TargetEc.Resolve(0), 1e-9)
	require.Len(t, p.PumpAssignments, 1)
	assert.True(t, p.PumpAssignments[0].IsNutrientPump())
}

func TestActiveProfileNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	p, err := c.ActiveProfile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestActiveProfileNullPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status": "success", "data": null}`))
	}))

	p, err := c.ActiveProfile(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDispense(t *testing.T) {
	var got dispenseRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pumps/dispense", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status": "success"}`))
	}))

	err := c.Dispense(context.Background(), "pH Down", 0.5, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "pH Down", got.Pump)
	assert.InDelta(t, 0.5, got.Amount, 1e-9)
	assert.InDelta(t, 1.0, got.FlowRate, 1e-9)
}

func TestDispenseFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "pump busy", http.StatusConflict)
	}))

	err := c.Dispense(context.Background(), "Pump 1", 5, 1.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pump busy")
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}
