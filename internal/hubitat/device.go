package hubitat

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long a locally issued command shields the
// device from being overwritten by hub state that has not caught up yet.
const DefaultDebounceWindow = 15 * time.Second

const (
	// ValueOff is the value a device resets to before reading capabilities.
	ValueOff = "off"
	// ValueUnknown is used when the device is missing from the snapshot.
	ValueUnknown = "unknown"
)

// Backend is the shared per-hub state a device reads from and writes to.
type Backend interface {
	Lookup(deviceID string) (Record, bool)
	Enqueue(deviceID, command string)
}

// Device is the state model for one hub device. It is created at
// discovery time and lives as long as its controller.
type Device struct {
	ID       string
	Label    string
	Type     string
	Category Category
	Commands CommandPair
	EntityID string // user override; empty when not configured

	backend  Backend
	debounce time.Duration
	now      func() time.Time

	mu                sync.RWMutex
	value             string
	illuminance       *float64
	wasLocallyChanged bool
	lastLocalChange   time.Time
}

func newDevice(rec Record, dt DeviceType, entityID string, backend Backend, debounce time.Duration, now func() time.Time) *Device {
	if debounce <= 0 {
		debounce = DefaultDebounceWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Device{
		ID:       rec.ID(),
		Label:    rec.Label(),
		Type:     rec.Type(),
		Category: dt.Category,
		Commands: dt.Commands,
		EntityID: entityID,
		backend:  backend,
		debounce: debounce,
		now:      now,
		value:    ValueOff,
	}
}

// RefreshState re-derives the device value from the latest snapshot.
// Within the debounce window after a local command it does nothing and
// returns false.
func (d *Device) RefreshState() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.wasLocallyChanged && d.now().Sub(d.lastLocalChange) < d.debounce {
		return false
	}

	rec, ok := d.backend.Lookup(d.ID)
	if !ok {
		d.value = ValueUnknown
		return true
	}

	d.wasLocallyChanged = false

	if lux, ok := rec.Illuminance(); ok {
		d.illuminance = &lux
	} else {
		d.illuminance = nil
	}

	d.value = ValueOff
	if c, ok := primaryCapability(rec.Capabilities()); ok {
		if v, ok := rec.Attribute(c.Attribute()); ok {
			d.value = v
		}
	}

	return true
}

// IssueCommand queues a command for the device and opens the debounce
// window.
func (d *Device) IssueCommand(command string) {
	d.mu.Lock()
	d.wasLocallyChanged = true
	d.lastLocalChange = d.now()
	d.mu.Unlock()

	d.backend.Enqueue(d.ID, command)
}

// Value returns the raw value of the device's primary attribute.
func (d *Device) Value() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// IsOn returns the normalized value.
func (d *Device) IsOn() bool {
	return Normalize(d.Value())
}

// Illuminance returns the last captured illuminance, if any.
func (d *Device) Illuminance() (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.illuminance == nil {
		return 0, false
	}
	return *d.illuminance, true
}

// LocallyChanged reports whether a local command is still awaiting
// confirmation from the hub, and when it was issued.
func (d *Device) LocallyChanged() (bool, time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wasLocallyChanged, d.lastLocalChange
}
