package mqtt

// Component is the Home Assistant integration an entity is discovered as
type Component string

const (
	ComponentBinarySensor Component = "binary_sensor"
	ComponentSwitch       Component = "switch"
)

const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// EntityConfig contains entity configuration for Home Assistant Discovery
type EntityConfig struct {
	// Basic parameters
	ObjectID  string    // Topic-safe object id
	UniqueID  string    // Stable unique id
	Name      string    // Display name
	Component Component // binary_sensor or switch

	// MQTT topics, relative to the client prefix
	StateTopic      string
	AttributesTopic string
	CommandTopic    string // switches only

	// Home Assistant parameters
	DeviceClass string // motion for binary sensors

	// Device grouping
	DeviceInfo *DeviceInfo
}

// DeviceInfo contains device information for grouping in Home Assistant
type DeviceInfo struct {
	Identifiers  []string // Unique device identifiers
	Name         string   // Device name
	Model        string   // Model
	Manufacturer string   // Manufacturer
	ViaDevice    string   // Hub the device is reached through
}

func stateTopic(c Component, objectID string) string {
	return string(c) + "/" + objectID + "/state"
}

func attributesTopic(c Component, objectID string) string {
	return string(c) + "/" + objectID + "/attributes"
}

func commandTopic(c Component, objectID string) string {
	return string(c) + "/" + objectID + "/set"
}
