// Package dosing exposes the controller over HTTP for the host UI.
package dosing

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nutetra/doser/core/controller"
)

// authorized checks the optional bearer token. An empty token disables the
// check, matching the local-only deployment default.
func authorized(r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+token
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewStatusHandler returns an HTTP handler exposing the controller status via
// GET /api/dosing/status.
func NewStatusHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, ctrl.GetStatus())
	})
}

// defaultHistoryLimit caps the history response when no limit is given.
// limit=0 still returns the full logs.
const defaultHistoryLimit = 50

// NewHistoryHandler returns an HTTP handler exposing recent dosing and sensor
// history via GET /api/dosing/history?limit=N.
func NewHistoryHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = v
		}
		writeJSON(w, ctrl.GetHistory(limit))
	})
}

// NewStartHandler starts the monitoring loop via POST /api/dosing/start.
func NewStartHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctrl.Start()
		writeJSON(w, ctrl.GetStatus())
	})
}

// NewStopHandler stops the monitoring loop via POST /api/dosing/stop.
func NewStopHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctrl.Stop()
		writeJSON(w, ctrl.GetStatus())
	})
}

// configUpdateRequest is the wire form of a partial config change. Durations
// are given in seconds, the unit the host UI uses.
type configUpdateRequest struct {
	CheckInterval    *float64 `json:"check_interval,omitempty"`
	DosingCooldown   *float64 `json:"dosing_cooldown,omitempty"`
	BetweenDoseDelay *float64 `json:"between_dose_delay,omitempty"`
	PhTolerance      *float64 `json:"ph_tolerance,omitempty"`
	EcTolerance      *float64 `json:"ec_tolerance,omitempty"`
	Enabled          *bool    `json:"enabled,omitempty"`
}

func (req configUpdateRequest) toUpdate() controller.ConfigUpdate {
	u := controller.ConfigUpdate{
		PhTolerance: req.PhTolerance,
		EcTolerance: req.EcTolerance,
		Enabled:     req.Enabled,
	}
	secs := func(v *float64) *time.Duration {
		if v == nil {
			return nil
		}
		d := time.Duration(*v * float64(time.Second))
		return &d
	}
	u.CheckInterval = secs(req.CheckInterval)
	u.DosingCooldown = secs(req.DosingCooldown)
	u.BetweenDoseDelay = secs(req.BetweenDoseDelay)
	return u
}

// NewConfigHandler reads the active config via GET and merges a partial
// update via POST on /api/dosing/config.
func NewConfigHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, ctrl.GetStatus().Config)
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			var req configUpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if err := ctrl.UpdateConfig(req.toUpdate()); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, ctrl.GetStatus().Config)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// NewExportHandler persists a history snapshot via POST /api/dosing/export.
func NewExportHandler(ctrl *controller.Controller, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := ctrl.ExportHistory(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"status": "exported"})
	})
}
