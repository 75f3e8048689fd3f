package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hubitatbridge/internal/auth"
	"hubitatbridge/internal/platform"
)

// EntityHandler serves entity state and commands
type EntityHandler struct {
	platform *platform.Platform
}

// NewEntityHandler creates new entity handler
func NewEntityHandler(p *platform.Platform) *EntityHandler {
	return &EntityHandler{platform: p}
}

// EntityResponse is the JSON view of an entity
type EntityResponse struct {
	EntityID        string                 `json:"entityId"`
	UniqueID        string                 `json:"uniqueId"`
	Name            string                 `json:"name"`
	Domain          string                 `json:"domain"`
	Gateway         string                 `json:"gateway"`
	DeviceID        string                 `json:"deviceId"`
	DeviceType      string                 `json:"deviceType"`
	DeviceClass     string                 `json:"deviceClass,omitempty"`
	State           string                 `json:"state"`
	RawValue        string                 `json:"rawValue"`
	Attributes      map[string]interface{} `json:"attributes"`
	Commands        []string               `json:"commands,omitempty"`
	LastLocalChange *time.Time             `json:"lastLocalChange,omitempty"`
}

func toEntityResponse(e *platform.Entity) EntityResponse {
	dev := e.Device()
	resp := EntityResponse{
		EntityID:    e.EntityID(),
		UniqueID:    e.UniqueID(),
		Name:        e.Name(),
		Domain:      string(e.Domain()),
		Gateway:     e.Gateway(),
		DeviceID:    dev.ID,
		DeviceType:  dev.Type,
		DeviceClass: e.DeviceClass(),
		State:       e.State(),
		RawValue:    dev.Value(),
		Attributes:  e.Attributes(),
	}
	if e.Domain() == platform.DomainSwitch && !dev.Commands.Empty() {
		resp.Commands = []string{dev.Commands.Off, dev.Commands.On}
	}
	if pending, at := dev.LocallyChanged(); pending {
		resp.LastLocalChange = &at
	}
	return resp
}

// List handles GET /api/entities?domain=switch&gateway=home
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	gateway := r.URL.Query().Get("gateway")

	result := []EntityResponse{}
	for _, e := range h.platform.Entities() {
		if domain != "" && string(e.Domain()) != domain {
			continue
		}
		if gateway != "" && e.Gateway() != gateway {
			continue
		}
		result = append(result, toEntityResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entities": result,
		"count":    len(result),
	})
}

// Get handles GET /api/entities/{entityID}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.platform.Entity(chi.URLParam(r, "entityID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// TurnOn handles POST /api/entities/{entityID}/turn_on
func (h *EntityHandler) TurnOn(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.platform.TurnOn)
}

// TurnOff handles POST /api/entities/{entityID}/turn_off
func (h *EntityHandler) TurnOff(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.platform.TurnOff)
}

func (h *EntityHandler) command(w http.ResponseWriter, r *http.Request, send func(entityID, source string) error) {
	entityID := chi.URLParam(r, "entityID")

	source := "api"
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		source = "api:" + user.Username
	}

	if err := send(entityID, source); err != nil {
		switch {
		case errors.Is(err, platform.ErrEntityNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, platform.ErrNotSwitchable):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	e, _ := h.platform.Entity(entityID)
	writeJSON(w, http.StatusAccepted, toEntityResponse(e))
}
