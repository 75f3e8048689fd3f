package platform

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/events"
	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/storage"
)

// hubStub answers devices/all with the current device list and records
// command URLs.
type hubStub struct {
	mu       sync.Mutex
	devices  []any
	offline  bool
	commands []string
}

func (h *hubStub) Get(_ context.Context, rawURL string) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.offline {
		return nil
	}
	if strings.Contains(rawURL, "devices/all") {
		return h.devices
	}
	h.commands = append(h.commands, rawURL)
	return map[string]any{}
}

func (h *hubStub) setAttr(index int, name, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev := h.devices[index].(map[string]any)
	dev["attributes"].(map[string]any)[name] = value
}

func (h *hubStub) setOffline(offline bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offline = offline
}

func newHubStub() *hubStub {
	return &hubStub{devices: []any{
		map[string]any{
			"id": "1", "label": "Hall", "type": "Fibaro Motion Sensor ZW5",
			"capabilities": []any{"MotionSensor", "IlluminanceMeasurement"},
			"attributes":   map[string]any{"motion": "active", "illuminance": "37"},
		},
		map[string]any{
			"id": "2", "label": "Front Door", "type": "Generic Z-Wave Lock",
			"capabilities": []any{"Lock"},
			"attributes":   map[string]any{"lock": "unlocked"},
		},
		map[string]any{
			"id": "3", "label": "Porch", "type": "Generic Z-Wave Switch",
			"capabilities": []any{"Switch"},
			"attributes":   map[string]any{"switch": "off"},
		},
	}}
}

// recordingSink collects published entity ids
type recordingSink struct {
	mu  sync.Mutex
	ids []string
}

func (s *recordingSink) PublishState(e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, e.EntityID()+"="+e.State())
	return nil
}

func (s *recordingSink) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func setup(t *testing.T, hub *hubStub, overrides map[string]string) (*Platform, *hubitat.Controller, *events.Store, storage.Storage) {
	t.Helper()

	c := hubitat.NewController(hubitat.GatewayConfig{
		Name:        "home",
		BaseURL:     "http://hub.local/apps/api/1",
		AccessToken: "secret",
		EntityIDs:   overrides,
	}, zerolog.Nop(), hubitat.WithGetter(hub))

	if !c.Connect(context.Background()) {
		t.Fatal("connect failed")
	}

	store, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ev := events.NewStore(50)
	p := New(ev, store, zerolog.Nop())
	p.AddController(c)
	return p, c, ev, store
}

func TestAddController_Entities(t *testing.T) {
	p, _, ev, _ := setup(t, newHubStub(), map[string]string{"3": "porch_light"})

	entities := p.Entities()
	if len(entities) != 3 {
		t.Fatalf("entities: got %d, want 3", len(entities))
	}

	hall, err := p.Entity("binary_sensor.hubitat_home_1")
	if err != nil {
		t.Fatalf("hall: %v", err)
	}
	if hall.Name() != "Hall" || !hall.IsOn() || hall.DeviceClass() != DeviceClassMotion {
		t.Errorf("hall: name=%q on=%v class=%q", hall.Name(), hall.IsOn(), hall.DeviceClass())
	}
	if lux := hall.Attributes()["illuminance"]; lux != 37.0 {
		t.Errorf("illuminance: got %v", lux)
	}

	door, err := p.Entity("switch.hubitat_home_2")
	if err != nil {
		t.Fatalf("door: %v", err)
	}
	if door.IsOn() {
		t.Error("unlocked door should be off")
	}

	porch, err := p.Entity("switch.porch_light")
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if porch.UniqueID() != "hubitat_home_3" {
		t.Errorf("unique id: got %q", porch.UniqueID())
	}

	if got, _ := p.EntityByObjectID("porch_light"); got != porch {
		t.Error("lookup by object id failed")
	}

	if last := ev.GetLast(1); len(last) != 1 || last[0].Type != events.EventDiscovery {
		t.Errorf("expected discovery event, got %+v", last)
	}
}

func TestEntity_OverrideWithDomain(t *testing.T) {
	p, _, _, _ := setup(t, newHubStub(), map[string]string{"2": "switch.front_door"})
	if _, err := p.Entity("switch.front_door"); err != nil {
		t.Errorf("override with domain: %v", err)
	}
}

func TestTurnOn_OptimisticAndQueued(t *testing.T) {
	hub := newHubStub()
	p, c, ev, store := setup(t, hub, nil)
	sink := &recordingSink{}
	p.AddSink(sink)

	if err := p.TurnOn("switch.hubitat_home_2", "api"); err != nil {
		t.Fatalf("turn on: %v", err)
	}

	door, _ := p.Entity("switch.hubitat_home_2")
	if !door.IsOn() {
		t.Error("optimistic state should be on")
	}

	pending, ok := c.Queue().Pending()
	if !ok || pending.DeviceID != "2" || pending.Command != "lock" {
		t.Errorf("pending: got %+v, %v", pending, ok)
	}

	// Hub has not caught up; the tick must not flip the entity back
	c.Poller().Tick(context.Background())
	if !door.IsOn() {
		t.Error("debounced entity was overwritten by stale hub state")
	}
	if len(hub.commands) != 1 || !strings.Contains(hub.commands[0], "devices/2/lock") {
		t.Errorf("commands sent: %v", hub.commands)
	}

	if got := sink.published(); len(got) != 1 || got[0] != "switch.hubitat_home_2=on" {
		t.Errorf("published: %v", got)
	}

	history, err := store.GetCommandHistory(10)
	if err != nil || len(history) != 1 || history[0].Command != "lock" || history[0].Source != "api" {
		t.Errorf("history: %+v (%v)", history, err)
	}

	found := false
	for _, e := range ev.GetLast(10) {
		if e.Type == events.EventCommandIssued && e.EntityID == "switch.hubitat_home_2" {
			found = true
		}
	}
	if !found {
		t.Error("missing command_issued event")
	}
}

func TestTurnOff_SwitchCommand(t *testing.T) {
	p, c, _, _ := setup(t, newHubStub(), nil)

	if err := p.TurnOff("switch.hubitat_home_3", "mqtt"); err != nil {
		t.Fatalf("turn off: %v", err)
	}
	pending, _ := c.Queue().Pending()
	if pending.Command != "off" {
		t.Errorf("command: got %q, want off", pending.Command)
	}
}

func TestCommand_Errors(t *testing.T) {
	p, _, _, _ := setup(t, newHubStub(), nil)

	if err := p.TurnOn("switch.nope", "api"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("missing entity: got %v", err)
	}
	if err := p.TurnOn("binary_sensor.hubitat_home_1", "api"); !errors.Is(err, ErrNotSwitchable) {
		t.Errorf("sensor: got %v", err)
	}
}

func TestRefresh_StateChangedAndFailures(t *testing.T) {
	hub := newHubStub()
	p, c, ev, _ := setup(t, hub, nil)
	sink := &recordingSink{}
	p.AddSink(sink)

	hub.setAttr(2, "switch", "on")
	c.Poller().Tick(context.Background())

	if got := sink.published(); len(got) != 1 || got[0] != "switch.hubitat_home_3=on" {
		t.Errorf("published after change: %v", got)
	}

	// No change, nothing published
	c.Poller().Tick(context.Background())
	if got := sink.published(); len(got) != 1 {
		t.Errorf("published without change: %v", got)
	}

	hub.setOffline(true)
	c.Poller().Tick(context.Background())
	c.Poller().Tick(context.Background())
	hub.setOffline(false)
	c.Poller().Tick(context.Background())

	var failed, resumed int
	for _, e := range ev.GetLast(50) {
		switch e.Type {
		case events.EventRefreshFailed:
			failed++
		case events.EventRefreshResumed:
			resumed++
		}
	}
	if failed != 1 || resumed != 1 {
		t.Errorf("transitions: failed=%d resumed=%d, want 1 and 1", failed, resumed)
	}

	porch, _ := p.Entity("switch.hubitat_home_3")
	if !porch.IsOn() {
		t.Error("stale snapshot should keep the last known state")
	}
}

func TestAddController_Offline(t *testing.T) {
	hub := newHubStub()
	hub.setOffline(true)

	c := hubitat.NewController(hubitat.GatewayConfig{Name: "cabin", BaseURL: "http://x"}, zerolog.Nop(), hubitat.WithGetter(hub))
	c.Connect(context.Background())

	ev := events.NewStore(10)
	p := New(ev, nil, zerolog.Nop())
	if added := p.AddController(c); added != nil {
		t.Errorf("offline gateway added %d entities", len(added))
	}
	if last := ev.GetLast(1); len(last) != 1 || last[0].Type != events.EventGatewayOffline {
		t.Errorf("expected gateway_offline event, got %+v", last)
	}
}

func TestAddController_DuplicateOverrideKeepsFirst(t *testing.T) {
	p, _, _, _ := setup(t, newHubStub(), map[string]string{"3": "switch.porch"})

	other := hubitat.NewController(hubitat.GatewayConfig{
		Name:      "garage",
		BaseURL:   "http://garage.local/apps/api/1/",
		EntityIDs: map[string]string{"3": "porch"},
	}, zerolog.Nop(), hubitat.WithGetter(newHubStub()))
	if !other.Connect(context.Background()) {
		t.Fatal("connect failed")
	}

	added := p.AddController(other)
	if len(added) != 2 {
		t.Fatalf("added: got %d entities, want 2", len(added))
	}
	for _, e := range added {
		if e.EntityID() == "switch.porch" {
			t.Error("duplicate entity should not be registered")
		}
	}

	e, err := p.Entity("switch.porch")
	if err != nil || e.Gateway() != "home" {
		t.Errorf("switch.porch: got %v (%v), want the home entity", e, err)
	}
	if len(p.Entities()) != 5 {
		t.Errorf("entities: got %d, want 5", len(p.Entities()))
	}
}

// steppedClock is a goroutine-safe clock advanced by hand
type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEntity_ConcurrentUpdateKeepsOptimisticState(t *testing.T) {
	clock := &steppedClock{now: time.Unix(1700000000, 0)}
	c := hubitat.NewController(hubitat.GatewayConfig{
		Name:    "home",
		BaseURL: "http://hub.local/apps/api/1/",
	}, zerolog.Nop(), hubitat.WithGetter(newHubStub()), hubitat.WithClock(clock.Now))
	if !c.Connect(context.Background()) {
		t.Fatal("connect failed")
	}

	var porch *Entity
	for _, dev := range c.Switches() {
		if dev.ID == "3" {
			porch = newEntity("home", DomainSwitch, dev)
		}
	}
	if porch == nil {
		t.Fatal("porch switch not discovered")
	}

	for i := 0; i < 500; i++ {
		// Past the debounce window the hub's "off" wins again
		clock.Advance(hubitat.DefaultDebounceWindow + time.Second)
		porch.Update()
		if porch.IsOn() {
			t.Fatalf("iteration %d: hub state not applied", i)
		}

		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-stop:
					return
				default:
					porch.Update()
				}
			}
		}()

		if _, err := porch.TurnOn(); err != nil {
			t.Fatalf("turn on: %v", err)
		}
		close(stop)
		<-done

		if !porch.IsOn() {
			t.Fatalf("iteration %d: optimistic state overwritten by concurrent update", i)
		}
	}
}
