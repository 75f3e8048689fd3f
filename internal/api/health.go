package api

import (
	"net/http"
	"time"

	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/platform"
)

// HealthHandler reports bridge and gateway status
type HealthHandler struct {
	controllers []*hubitat.Controller
	platform    *platform.Platform
	version     string
	started     time.Time
}

// NewHealthHandler creates new health handler
func NewHealthHandler(controllers []*hubitat.Controller, p *platform.Platform, version string) *HealthHandler {
	return &HealthHandler{
		controllers: controllers,
		platform:    p,
		version:     version,
		started:     time.Now(),
	}
}

// GatewayStatus is the JSON view of one controller
type GatewayStatus struct {
	Name        string     `json:"name"`
	Connected   bool       `json:"connected"`
	Polling     string     `json:"polling"`
	Devices     int        `json:"devices"`
	Sensors     int        `json:"sensors"`
	Switches    int        `json:"switches"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`
	Pending     string     `json:"pendingCommand,omitempty"`
}

func gatewayStatus(c *hubitat.Controller) GatewayStatus {
	st := GatewayStatus{
		Name:      c.Name(),
		Connected: c.Connected(),
		Polling:   string(c.Poller().State()),
		Devices:   len(c.Registry().Snapshot()),
		Sensors:   len(c.Sensors()),
		Switches:  len(c.Switches()),
	}
	if t := c.Registry().LastRefresh(); !t.IsZero() {
		st.LastRefresh = &t
	}
	if p, ok := c.Queue().Pending(); ok {
		st.Pending = p.DeviceID + "/" + p.Command
	}
	return st
}

// Health handles GET /api/health. It answers 503 when no gateway is connected.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	connected := 0
	for _, c := range h.controllers {
		if c.Connected() {
			connected++
		}
	}

	status := http.StatusOK
	state := "ok"
	if connected == 0 {
		status = http.StatusServiceUnavailable
		state = "unavailable"
	} else if connected < len(h.controllers) {
		state = "degraded"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"version":   h.version,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"gateways":  len(h.controllers),
		"connected": connected,
		"entities":  len(h.platform.Entities()),
	})
}

// Gateways handles GET /api/gateways
func (h *HealthHandler) Gateways(w http.ResponseWriter, r *http.Request) {
	result := make([]GatewayStatus, 0, len(h.controllers))
	for _, c := range h.controllers {
		result = append(result, gatewayStatus(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"gateways": result})
}
