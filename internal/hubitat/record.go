package hubitat

import (
	"fmt"
	"strconv"
)

// Record is a raw device object as returned by the hub's Maker API.
// It is kept opaque; accessors pull out the fields the bridge needs.
type Record map[string]any

// ID returns the device id as a string. Numeric ids are formatted in
// decimal so "12" and 12 refer to the same device.
func (r Record) ID() string {
	return idString(r["id"])
}

// Label returns the display name of the device.
func (r Record) Label() string {
	s, _ := r["label"].(string)
	return s
}

// Type returns the declared device type (driver name).
func (r Record) Type() string {
	s, _ := r["type"].(string)
	return s
}

// Capabilities returns the capability names of the device. The hub mixes
// plain strings and attribute descriptor objects in this list; only the
// strings are capability names.
func (r Record) Capabilities() []string {
	raw, ok := r["capabilities"].([]any)
	if !ok {
		return nil
	}
	caps := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok {
			caps = append(caps, s)
		}
	}
	return caps
}

// Attribute returns a single attribute value as a string.
func (r Record) Attribute(name string) (string, bool) {
	attrs, ok := r["attributes"].(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := attrs[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Illuminance returns the illuminance attribute when present and numeric.
func (r Record) Illuminance() (float64, bool) {
	s, ok := r.Attribute("illuminance")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// recordsFrom converts a decoded JSON value into records. It reports
// false when the value is not an array.
func recordsFrom(v any) ([]Record, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records, true
}
