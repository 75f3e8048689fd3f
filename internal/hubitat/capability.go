package hubitat

// Capability is a hub-declared feature that drives a device's on/off value.
type Capability int

const (
	CapabilityMotionSensor Capability = iota
	CapabilityLock
	CapabilitySwitch
)

// capabilityPriority is the order in which capabilities are consulted.
// The first one a device declares wins; values are never merged.
var capabilityPriority = []Capability{
	CapabilityMotionSensor,
	CapabilityLock,
	CapabilitySwitch,
}

// Name returns the capability name as reported by the hub.
func (c Capability) Name() string {
	switch c {
	case CapabilityMotionSensor:
		return "MotionSensor"
	case CapabilityLock:
		return "Lock"
	case CapabilitySwitch:
		return "Switch"
	default:
		return ""
	}
}

// Attribute returns the attribute that carries the capability's value.
func (c Capability) Attribute() string {
	switch c {
	case CapabilityMotionSensor:
		return "motion"
	case CapabilityLock:
		return "lock"
	case CapabilitySwitch:
		return "switch"
	default:
		return ""
	}
}

func (c Capability) String() string {
	return c.Name()
}

// onValues are the raw attribute strings treated as the on-state.
var onValues = map[string]struct{}{
	"on":     {},
	"1":      {},
	"active": {},
	"true":   {},
	"locked": {},
	"lock":   {},
}

// Normalize maps a raw hub attribute value to on (true) or off (false).
// Only exact matches count; padded or differently cased values are off.
func Normalize(raw string) bool {
	_, ok := onValues[raw]
	return ok
}

// primaryCapability returns the highest-priority capability in caps.
func primaryCapability(caps []string) (Capability, bool) {
	declared := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		declared[c] = struct{}{}
	}
	for _, c := range capabilityPriority {
		if _, ok := declared[c.Name()]; ok {
			return c, true
		}
	}
	return 0, false
}
