package hubitat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/schema"
)

// DefaultScanInterval is the delay before the first poll tick.
const DefaultScanInterval = 15 * time.Second

// GatewayConfig is the per-hub configuration. It is not modified after
// the controller is created.
type GatewayConfig struct {
	Name           string
	BaseURL        string
	AccessToken    string
	ScanInterval   time.Duration
	EntityIDs      map[string]string // device id -> entity id override
	DebounceWindow time.Duration
	RepollInterval time.Duration
	RequestTimeout time.Duration
}

// Option customizes a Controller.
type Option func(*Controller)

// WithGetter replaces the HTTP gateway, mainly for tests.
func WithGetter(g Getter) Option {
	return func(c *Controller) { c.gateway = g }
}

// WithClock replaces the time source used by the debounce gate.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the shared state for one hub: the snapshot cache, the
// command queue and the polling loop. Devices discovered from the hub
// read from and write to it.
type Controller struct {
	cfg       GatewayConfig
	gateway   Getter
	registry  *Registry
	queue     *CommandQueue
	poller    *Poller
	validator *schema.Validator
	now       func() time.Time
	logger    zerolog.Logger

	mu        sync.RWMutex
	connected bool
	sensors   []*Device
	switches  []*Device
}

// NewController creates a controller. Nothing is fetched until Connect.
func NewController(cfg GatewayConfig, logger zerolog.Logger, opts ...Option) *Controller {
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}

	logger = logger.With().Str("gateway", cfg.Name).Logger()

	c := &Controller{
		cfg:       cfg,
		validator: schema.NewValidator(),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gateway == nil {
		c.gateway = NewGateway(cfg.RequestTimeout, logger)
	}

	c.queue = NewCommandQueue()
	c.registry = NewRegistry(c.gateway, cfg.BaseURL, cfg.AccessToken, logger)
	c.poller = NewPoller(c.gateway, c.queue, c.registry, cfg.BaseURL, cfg.AccessToken, cfg.RepollInterval, logger)

	return c
}

// Connect fetches the device list once and builds the device models.
// It returns false when the hub could not be reached; no devices are
// created in that case.
func (c *Controller) Connect(ctx context.Context) bool {
	if !c.registry.Refresh(ctx) {
		c.logger.Warn().Msg("discovery failed, hub unreachable")
		return false
	}

	var sensors, switches []*Device
	for _, rec := range c.registry.Snapshot() {
		if err := c.validator.Validate(schema.DeviceRecord, map[string]any(rec)); err != nil {
			c.logger.Warn().Err(err).Str("device_id", rec.ID()).Msg("skipping malformed device record")
			continue
		}

		dt, ok := LookupDeviceType(rec.Type())
		if !ok {
			c.logger.Debug().
				Str("device_id", rec.ID()).
				Str("type", rec.Type()).
				Msg("unsupported device type")
			continue
		}

		dev := newDevice(rec, dt, c.cfg.EntityIDs[rec.ID()], c, c.cfg.DebounceWindow, c.now)
		switch dt.Category {
		case CategorySensor:
			sensors = append(sensors, dev)
		case CategorySwitch:
			switches = append(switches, dev)
		}
	}

	c.mu.Lock()
	c.sensors = sensors
	c.switches = switches
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().
		Int("sensors", len(sensors)).
		Int("switches", len(switches)).
		Msg("discovery complete")

	return true
}

// Start begins polling. The first tick runs after the scan interval.
func (c *Controller) Start(ctx context.Context) {
	c.poller.Start(ctx, c.cfg.ScanInterval)
}

// Stop ends polling.
func (c *Controller) Stop() {
	c.poller.Stop()
}

// OnRefresh registers fn to run after every poll tick.
func (c *Controller) OnRefresh(fn func(TickResult)) {
	c.poller.OnTick(fn)
}

// Lookup implements Backend.
func (c *Controller) Lookup(deviceID string) (Record, bool) {
	return c.registry.Lookup(deviceID)
}

// Enqueue implements Backend.
func (c *Controller) Enqueue(deviceID, command string) {
	c.queue.Enqueue(deviceID, command)
}

// Name returns the gateway name.
func (c *Controller) Name() string {
	return c.cfg.Name
}

// Connected reports whether discovery succeeded.
func (c *Controller) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Sensors returns the devices exposed as binary sensors.
func (c *Controller) Sensors() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*Device, len(c.sensors))
	copy(result, c.sensors)
	return result
}

// Switches returns the devices exposed as switches.
func (c *Controller) Switches() []*Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*Device, len(c.switches))
	copy(result, c.switches)
	return result
}

// Registry returns the controller's snapshot cache.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Queue returns the controller's command queue.
func (c *Controller) Queue() *CommandQueue {
	return c.queue
}

// Poller returns the controller's polling loop.
func (c *Controller) Poller() *Poller {
	return c.poller
}
