package hubitat

import "testing"

func TestNormalize(t *testing.T) {
	for _, raw := range []string{"on", "1", "active", "true", "locked", "lock"} {
		if !Normalize(raw) {
			t.Errorf("Normalize(%q) = false, want true", raw)
		}
	}

	for _, raw := range []string{"off", "0", "inactive", "false", "unlocked", "unknown", "", "ON", "open", " on", "on\n", "\tactive ", "locked "} {
		if Normalize(raw) {
			t.Errorf("Normalize(%q) = true, want false", raw)
		}
	}
}

func TestPrimaryCapability(t *testing.T) {
	tests := []struct {
		name string
		caps []string
		want Capability
		ok   bool
	}{
		{"motion only", []string{"MotionSensor"}, CapabilityMotionSensor, true},
		{"switch and motion", []string{"Switch", "Refresh", "MotionSensor"}, CapabilityMotionSensor, true},
		{"lock beats switch", []string{"Switch", "Lock"}, CapabilityLock, true},
		{"switch only", []string{"Actuator", "Switch"}, CapabilitySwitch, true},
		{"none", []string{"TemperatureMeasurement"}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := primaryCapability(tt.caps)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("capability: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCapabilityAttribute(t *testing.T) {
	want := map[Capability]string{
		CapabilityMotionSensor: "motion",
		CapabilityLock:         "lock",
		CapabilitySwitch:       "switch",
	}
	for c, attr := range want {
		if c.Attribute() != attr {
			t.Errorf("%s attribute: got %q, want %q", c, c.Attribute(), attr)
		}
	}
}
