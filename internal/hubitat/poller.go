package hubitat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRepollInterval is the delay between ticks once polling runs.
const DefaultRepollInterval = 3 * time.Second

// PollerState is the lifecycle state of a Poller.
type PollerState string

const (
	PollerIdle    PollerState = "idle"
	PollerTicking PollerState = "ticking"
)

// TickResult describes one completed poll tick.
type TickResult struct {
	Sent      *PendingCommand
	Refreshed bool
	At        time.Time
}

// Poller flushes the command queue and refreshes the registry on a fixed
// cadence. Within a tick the flush always precedes the refresh.
type Poller struct {
	gateway  Getter
	queue    *CommandQueue
	registry *Registry
	baseURL  string
	token    string
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	task      *Task
	listeners []func(TickResult)
}

// NewPoller creates an idle poller.
func NewPoller(gw Getter, queue *CommandQueue, registry *Registry, baseURL, token string, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultRepollInterval
	}
	return &Poller{
		gateway:  gw,
		queue:    queue,
		registry: registry,
		baseURL:  baseURL,
		token:    token,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// OnTick registers fn to run after every tick.
func (p *Poller) OnTick(fn func(TickResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Start schedules the first tick after firstDelay. Starting a poller
// that is already ticking is a no-op.
func (p *Poller) Start(ctx context.Context, firstDelay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task != nil {
		return
	}

	p.logger.Info().
		Dur("first_tick", firstDelay).
		Dur("interval", p.interval).
		Msg("polling started")

	p.task = StartTask(ctx, firstDelay, func(ctx context.Context) time.Duration {
		p.Tick(ctx)
		return p.interval
	})
}

// Stop cancels polling and waits for an in-flight tick.
func (p *Poller) Stop() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.mu.Unlock()

	if task != nil {
		task.Stop()
		p.logger.Info().Msg("polling stopped")
	}
}

// State reports whether the poller is running.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task == nil {
		return PollerIdle
	}
	return PollerTicking
}

// Tick runs one poll cycle: flush the pending command, then refresh the
// snapshot, then notify listeners.
func (p *Poller) Tick(ctx context.Context) TickResult {
	var result TickResult

	if cmd, ok := p.queue.Flush(ctx, p.gateway, p.baseURL, p.token); ok {
		p.logger.Debug().
			Str("device_id", cmd.DeviceID).
			Str("command", cmd.Command).
			Msg("command sent")
		result.Sent = &cmd
	}

	result.Refreshed = p.registry.Refresh(ctx)
	result.At = time.Now()

	p.mu.Lock()
	listeners := make([]func(TickResult), len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}

	return result
}
