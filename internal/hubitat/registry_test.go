package hubitat

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestRegistry_RefreshReplacesSnapshot(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{
		device("1", "Hall", "Virtual Switch", []any{"Switch"}, map[string]any{"switch": "on"}),
		device("2", "Porch", "Virtual Switch", []any{"Switch"}, map[string]any{"switch": "off"}),
	})
	reg := NewRegistry(gw, "http://hub/", "tok", zerolog.Nop())

	if !reg.Refresh(context.Background()) {
		t.Fatal("refresh should succeed")
	}
	if len(reg.Snapshot()) != 2 {
		t.Fatalf("snapshot size: got %d, want 2", len(reg.Snapshot()))
	}

	// A smaller list fully replaces the old one.
	gw.set("devices/all", []any{
		device("3", "Kitchen", "Virtual Switch", []any{"Switch"}, map[string]any{"switch": "on"}),
	})
	reg.Refresh(context.Background())

	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0].ID() != "3" {
		t.Errorf("snapshot after replace: got %v", snap)
	}
	if _, ok := reg.Lookup("1"); ok {
		t.Error("device 1 should be gone after replace")
	}
}

func TestRegistry_FailedRefreshKeepsSnapshot(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{
		device("1", "Hall", "Virtual Switch", []any{"Switch"}, map[string]any{"switch": "on"}),
	})
	reg := NewRegistry(gw, "http://hub/", "tok", zerolog.Nop())
	reg.Refresh(context.Background())
	before := reg.Snapshot()
	refreshedAt := reg.LastRefresh()

	tests := []struct {
		name  string
		value any
	}{
		{"null response", nil},
		{"object instead of list", map[string]any{"error": "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw.set("devices/all", tt.value)
			if reg.Refresh(context.Background()) {
				t.Fatal("refresh should report failure")
			}
			if !reflect.DeepEqual(before, reg.Snapshot()) {
				t.Error("snapshot changed after failed refresh")
			}
			if !reg.LastRefresh().Equal(refreshedAt) {
				t.Error("last refresh time changed after failed refresh")
			}
		})
	}
}

func TestRegistry_Lookup(t *testing.T) {
	gw := newFakeGetter()
	reg := NewRegistry(gw, "http://hub/", "tok", zerolog.Nop())

	if _, ok := reg.Lookup("1"); ok {
		t.Error("lookup on empty snapshot should miss")
	}

	gw.set("devices/all", []any{
		device(float64(1), "Hall", "Fibaro Motion Sensor ZW5", nil, nil),
		device("22", "Door", "Generic Z-Wave Lock", nil, nil),
	})
	reg.Refresh(context.Background())

	if rec, ok := reg.Lookup("1"); !ok || rec.Label() != "Hall" {
		t.Errorf("numeric id lookup: got %v %v", rec, ok)
	}
	if rec, ok := reg.Lookup("22"); !ok || rec.Label() != "Door" {
		t.Errorf("string id lookup: got %v %v", rec, ok)
	}
	if _, ok := reg.Lookup("99"); ok {
		t.Error("unknown id should miss")
	}
}
