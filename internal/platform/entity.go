// Package platform turns discovered hub devices into host entities:
// binary sensors for motion devices and switches for everything that
// takes an on/off (or lock/unlock) command.
package platform

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"hubitatbridge/internal/hubitat"
)

var (
	// ErrEntityNotFound is returned when no entity matches the given id
	ErrEntityNotFound = errors.New("entity not found")

	// ErrNotSwitchable is returned when a command targets a binary sensor
	ErrNotSwitchable = errors.New("entity does not accept commands")
)

// Domain is the host entity domain
type Domain string

const (
	DomainBinarySensor Domain = "binary_sensor"
	DomainSwitch       Domain = "switch"
)

// DeviceClassMotion is reported by every binary sensor
const DeviceClassMotion = "motion"

// Entity is the host-facing view of one hub device
type Entity struct {
	gateway  string
	domain   Domain
	objectID string
	uniqueID string
	device   *hubitat.Device

	mu    sync.RWMutex
	state bool
}

func newEntity(gateway string, domain Domain, dev *hubitat.Device) *Entity {
	uniqueID := "hubitat_" + slug(gateway) + "_" + slug(dev.ID)

	objectID := uniqueID
	if dev.EntityID != "" {
		objectID = dev.EntityID
		// Overrides may carry the domain already
		if i := strings.IndexByte(objectID, '.'); i >= 0 {
			objectID = objectID[i+1:]
		}
	}

	return &Entity{
		gateway:  gateway,
		domain:   domain,
		objectID: objectID,
		uniqueID: uniqueID,
		device:   dev,
	}
}

// EntityID returns "<domain>.<object id>"
func (e *Entity) EntityID() string {
	return string(e.domain) + "." + e.objectID
}

func (e *Entity) ObjectID() string { return e.objectID }
func (e *Entity) UniqueID() string { return e.uniqueID }
func (e *Entity) Domain() Domain   { return e.domain }
func (e *Entity) Gateway() string  { return e.gateway }
func (e *Entity) Name() string     { return e.device.Label }

// Device returns the underlying device model
func (e *Entity) Device() *hubitat.Device { return e.device }

// DeviceClass returns "motion" for binary sensors and "" otherwise
func (e *Entity) DeviceClass() string {
	if e.domain == DomainBinarySensor {
		return DeviceClassMotion
	}
	return ""
}

// IsOn returns the last state computed by Update or set by a command
func (e *Entity) IsOn() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// State returns the state as a host string ("on"/"off")
func (e *Entity) State() string {
	if e.IsOn() {
		return "on"
	}
	return "off"
}

// Attributes returns the extra state attributes
func (e *Entity) Attributes() map[string]any {
	attrs := map[string]any{
		"hubitat_id":   e.device.ID,
		"hubitat_type": e.device.Type,
	}
	if lux, ok := e.device.Illuminance(); ok {
		attrs["illuminance"] = lux
	}
	return attrs
}

// Update refreshes the device from the latest snapshot and reports
// whether the entity state changed. While a local command is debounced
// the device is not refreshed and the optimistic state is kept.
func (e *Entity) Update() bool {
	// Held across the refresh so a command cannot land between the
	// debounce check and the state write
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.device.RefreshState() {
		return false
	}

	on := e.device.IsOn()
	changed := e.state != on
	e.state = on
	return changed
}

// TurnOn sends the device's on command
func (e *Entity) TurnOn() (string, error) {
	return e.send(true)
}

// TurnOff sends the device's off command
func (e *Entity) TurnOff() (string, error) {
	return e.send(false)
}

func (e *Entity) send(on bool) (string, error) {
	if e.domain != DomainSwitch || e.device.Commands.Empty() {
		return "", fmt.Errorf("%s: %w", e.EntityID(), ErrNotSwitchable)
	}

	cmd := e.device.Commands.Off
	if on {
		cmd = e.device.Commands.On
	}
	e.mu.Lock()
	e.device.IssueCommand(cmd)
	e.state = on
	e.mu.Unlock()

	return cmd, nil
}

// slug lowercases s and replaces anything outside [a-z0-9] with '_'
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
