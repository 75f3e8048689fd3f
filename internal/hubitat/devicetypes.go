package hubitat

// Category is the kind of host entity a device is exposed as.
type Category string

const (
	CategorySensor Category = "sensor"
	CategorySwitch Category = "switch"
)

// CommandPair holds the hub commands that turn a device off and on.
// Sensors have an empty pair.
type CommandPair struct {
	Off string
	On  string
}

// Empty reports whether the pair carries no commands.
func (p CommandPair) Empty() bool {
	return p.Off == "" && p.On == ""
}

// DeviceType is the entry for one hub driver name.
type DeviceType struct {
	Category Category
	Commands CommandPair
}

var (
	switchCommands = CommandPair{Off: "off", On: "on"}
	lockCommands   = CommandPair{Off: "unlock", On: "lock"}
)

// DeviceTypes maps a hub driver name to its entity category and commands.
// Drivers missing from the map are not exposed.
var DeviceTypes = map[string]DeviceType{
	"Fibaro Motion Sensor ZW5":     {Category: CategorySensor},
	"Generic Z-Wave Motion Sensor": {Category: CategorySensor},
	"Generic Zigbee Motion Sensor": {Category: CategorySensor},
	"Virtual Motion Sensor":        {Category: CategorySensor},

	"Generic Z-Wave Switch":          {Category: CategorySwitch, Commands: switchCommands},
	"Generic Z-Wave Smart Switch":    {Category: CategorySwitch, Commands: switchCommands},
	"Generic Z-Wave Outlet":          {Category: CategorySwitch, Commands: switchCommands},
	"Generic Zigbee Switch":          {Category: CategorySwitch, Commands: switchCommands},
	"Generic Zigbee Outlet":          {Category: CategorySwitch, Commands: switchCommands},
	"Fibaro Double Switch 2 FGS-223": {Category: CategorySwitch, Commands: switchCommands},
	"Virtual Switch":                 {Category: CategorySwitch, Commands: switchCommands},

	"Generic Z-Wave Lock": {Category: CategorySwitch, Commands: lockCommands},
	"Generic Zigbee Lock": {Category: CategorySwitch, Commands: lockCommands},
	"Virtual Lock":        {Category: CategorySwitch, Commands: lockCommands},
}

// LookupDeviceType returns the mapping for a driver name.
func LookupDeviceType(name string) (DeviceType, bool) {
	t, ok := DeviceTypes[name]
	return t, ok
}
