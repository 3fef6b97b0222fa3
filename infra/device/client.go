// Package device talks to the host hydroponics system over its local REST
// API: sensor readings, the active crop profile and the pump dispense
// endpoint.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nutetra/doser/core/logger"
	"github.com/nutetra/doser/core/model"
)

const (
	DefaultBaseURL = "http://localhost:3000"
	DefaultTimeout = 5 * time.Second
)

// Config holds the connection settings for the host API.
type Config struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client is an HTTP client for the host API. It implements the controller's
// sensor and profile sources and the doser actuator.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a Client against cfg.BaseURL.
func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

// envelope is the host API's optional response wrapper. Older firmware
// returns the payload bare; newer firmware wraps it.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// unwrap returns the payload bytes, unwrapping the {status, data} envelope
// when present.
func unwrap(body []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		if env.Status != "" && env.Status != "success" && env.Status != "ok" {
			return nil, fmt.Errorf("api status %q", env.Status)
		}
		return env.Data, nil
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// GetReadings fetches the current reservoir sensor values.
func (c *Client) GetReadings(ctx context.Context) (model.SensorReading, error) {
	body, status, err := c.get(ctx, "/api/sensors")
	if err != nil {
		return model.SensorReading{}, err
	}
	if status != http.StatusOK {
		return model.SensorReading{}, fmt.Errorf("GET /api/sensors: status %d", status)
	}
	payload, err := unwrap(body)
	if err != nil {
		return model.SensorReading{}, fmt.Errorf("GET /api/sensors: %w", err)
	}
	var r model.SensorReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return model.SensorReading{}, fmt.Errorf("decode sensors: %w", err)
	}
	if r.ObservedAt.IsZero() {
		r.ObservedAt = time.Now()
	}
	return r, nil
}

// ActiveProfile fetches the active crop profile. A 404 or empty payload means
// no profile is active and returns (nil, nil).
func (c *Client) ActiveProfile(ctx context.Context) (*model.Profile, error) {
	body, status, err := c.get(ctx, "/api/profiles/active")
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, nil
	case status != http.StatusOK:
		return nil, fmt.Errorf("GET /api/profiles/active: status %d", status)
	}
	payload, err := unwrap(body)
	if err != nil {
		return nil, fmt.Errorf("GET /api/profiles/active: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, nil
	}
	var p model.Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

type dispenseRequest struct {
	Pump     string  `json:"pump"`
	Amount   float64 `json:"amount"`
	FlowRate float64 `json:"flowRate"`
}

// Dispense runs the named pump for amountMl at flowRate ml/s via the host's
// pump endpoint. The HTTP round trip returns once the host has accepted the
// command; the host blocks until the dispense completes.
func (c *Client) Dispense(ctx context.Context, pumpName string, amountMl, flowRate float64) error {
	payload, err := json.Marshal(dispenseRequest{Pump: pumpName, Amount: amountMl, FlowRate: flowRate})
	if err != nil {
		return fmt.Errorf("encode dispense request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pumps/dispense", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST /api/pumps/dispense: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("POST /api/pumps/dispense: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	c.log.Debugf("dispensed %.2fml from %s", amountMl, pumpName)
	return nil
}
