package mcp

import (
	"hubitatbridge/internal/events"
	"hubitatbridge/internal/platform"
)

// GatewayInfo is one gateway in the get_health output
type GatewayInfo struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Polling   string `json:"polling"`
	Entities  int    `json:"entities"`
}

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status   string        `json:"status"`
	Gateways []GatewayInfo `json:"gateways"`
}

// EntityInfo represents an entity in tool outputs
type EntityInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Domain      string         `json:"domain"`
	Gateway     string         `json:"gateway"`
	DeviceClass string         `json:"device_class,omitempty"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// EntityToInfo converts a platform entity
func EntityToInfo(e *platform.Entity) EntityInfo {
	return EntityInfo{
		ID:          e.EntityID(),
		Name:        e.Name(),
		Domain:      string(e.Domain()),
		Gateway:     e.Gateway(),
		DeviceClass: e.DeviceClass(),
		State:       e.State(),
		Attributes:  e.Attributes(),
	}
}

// ListEntitiesOutput is the output for the list_entities tool
type ListEntitiesOutput struct {
	Entities []EntityInfo `json:"entities"`
	Count    int          `json:"count"`
}

// GetEntityOutput is the output for the get_entity tool
type GetEntityOutput struct {
	Entity EntityInfo `json:"entity"`
}

// CommandOutput is the output for the turn_on and turn_off tools
type CommandOutput struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
	Message  string `json:"message"`
}

// RecentEventsOutput is the output for the recent_events tool
type RecentEventsOutput struct {
	Events []events.Event `json:"events"`
	Count  int            `json:"count"`
}
