package hubitat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestController_DiscoversMotionSensor(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{
		device(float64(1), "Hall", "Fibaro Motion Sensor ZW5", []any{"MotionSensor"}, map[string]any{"motion": "active"}),
	})
	c := connectedController(t, gw, newFakeClock())

	sensors := c.Sensors()
	if len(sensors) != 1 || len(c.Switches()) != 0 {
		t.Fatalf("buckets: got %d sensors, %d switches", len(sensors), len(c.Switches()))
	}

	hall := sensors[0]
	if hall.ID != "1" || hall.Label != "Hall" || hall.Category != CategorySensor {
		t.Errorf("device: got %+v", hall)
	}
	hall.RefreshState()
	if !hall.IsOn() {
		t.Errorf("value: got %q, want on", hall.Value())
	}
}

func TestController_ConnectFailure(t *testing.T) {
	gw := newFakeGetter()
	c := NewController(GatewayConfig{Name: "home", BaseURL: "http://hub/"}, zerolog.Nop(), WithGetter(gw))

	if c.Connect(context.Background()) {
		t.Fatal("connect should fail when the hub returns nothing")
	}
	if c.Connected() || len(c.Sensors()) != 0 || len(c.Switches()) != 0 {
		t.Error("no devices should exist after failed discovery")
	}
}

func TestController_DropsUnmappedAndMalformed(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{
		device("1", "Thermostat", "Generic Z-Wave Thermostat", []any{"Thermostat"}, nil),
		map[string]any{"id": "2", "type": "Virtual Switch"}, // no label
		device("3", "Porch", "Virtual Switch", []any{"Switch"}, map[string]any{"switch": "on"}),
	})
	c := connectedController(t, gw, newFakeClock())

	switches := c.Switches()
	if len(switches) != 1 || switches[0].ID != "3" {
		t.Errorf("switches: got %d, want only device 3", len(switches))
	}
	if len(c.Sensors()) != 0 {
		t.Errorf("sensors: got %d, want 0", len(c.Sensors()))
	}
}

func TestController_EntityOverride(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{
		device("3", "Porch", "Virtual Switch", []any{"Switch"}, nil),
		device("4", "Garage", "Virtual Switch", []any{"Switch"}, nil),
	})
	c := NewController(GatewayConfig{
		Name:      "home",
		BaseURL:   "http://hub/",
		EntityIDs: map[string]string{"3": "switch.porch_light"},
	}, zerolog.Nop(), WithGetter(gw))
	c.Connect(context.Background())

	got := map[string]string{}
	for _, d := range c.Switches() {
		got[d.ID] = d.EntityID
	}
	if got["3"] != "switch.porch_light" || got["4"] != "" {
		t.Errorf("overrides: got %v", got)
	}
}

// TestController_CommandRoundTrip drives a real HTTP hub: a lock command
// goes out on the next tick, before the snapshot refresh.
func TestController_CommandRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var requests []string

	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.RequestURI())
		mu.Unlock()

		if strings.HasSuffix(r.URL.Path, "/devices/all") {
			w.Write([]byte(`[{"id":"2","label":"Front Door","type":"Generic Z-Wave Lock","capabilities":["Lock"],"attributes":{"lock":"unlocked"}}]`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer hub.Close()

	c := NewController(GatewayConfig{
		Name:        "home",
		BaseURL:     hub.URL + "/apps/api/1/",
		AccessToken: "secret",
	}, zerolog.Nop())
	if !c.Connect(context.Background()) {
		t.Fatal("connect failed")
	}

	door := c.Switches()[0]
	door.IssueCommand("lock")

	res := c.Poller().Tick(context.Background())
	if res.Sent == nil || res.Sent.Command != "lock" || !res.Refreshed {
		t.Fatalf("tick: got %+v", res)
	}
	if _, ok := c.Queue().Pending(); ok {
		t.Error("queue should be empty after the tick")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 3 {
		t.Fatalf("requests: got %v", requests)
	}
	if requests[1] != "/apps/api/1/devices/2/lock?access_token=secret" {
		t.Errorf("command url: got %s", requests[1])
	}
	if requests[2] != "/apps/api/1/devices/all?access_token=secret" {
		t.Errorf("refresh after command: got %s", requests[2])
	}
}

func TestController_StartWaitsScanIntervalThenRepolls(t *testing.T) {
	gw := newFakeGetter()
	gw.set("devices/all", []any{})

	const (
		scan   = 300 * time.Millisecond
		repoll = 10 * time.Millisecond
	)
	c := NewController(GatewayConfig{
		Name:           "home",
		BaseURL:        "http://hub.local/apps/api/1/",
		ScanInterval:   scan,
		RepollInterval: repoll,
	}, zerolog.Nop(), WithGetter(gw))

	var (
		mu    sync.Mutex
		ticks []time.Time
	)
	c.OnRefresh(func(r TickResult) {
		mu.Lock()
		ticks = append(ticks, time.Now())
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks)
	}

	started := time.Now()
	c.Start(context.Background())
	defer c.Stop()

	time.Sleep(scan / 2)
	if n := count(); n != 0 {
		t.Fatalf("ticks before scan interval: got %d, want 0", n)
	}

	deadline := time.Now().Add(5 * time.Second)
	for count() < 4 && time.Now().Before(deadline) {
		time.Sleep(repoll)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) < 4 {
		t.Fatalf("ticks: got %d, want at least 4", len(ticks))
	}
	if first := ticks[0].Sub(started); first < scan {
		t.Errorf("first tick after %v, want at least %v", first, scan)
	}
	// Three repoll gaps must be well under one scan interval
	if span := ticks[3].Sub(ticks[0]); span >= scan {
		t.Errorf("ticks 1-4 took %v, want repoll cadence well under %v", span, scan)
	}
}
