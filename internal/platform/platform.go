package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/events"
	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/storage"
)

// MaxCommandHistory is the number of issued commands kept in storage
const MaxCommandHistory = 500

// StateSink receives entity states whenever they change
type StateSink interface {
	PublishState(e *Entity) error
}

// Platform holds every entity across all connected gateways
type Platform struct {
	events  *events.Store
	history storage.Storage // optional
	logger  zerolog.Logger

	mu       sync.RWMutex
	entities []*Entity
	byID     map[string]*Entity
	failing  map[string]bool // gateway -> last refresh failed
	sinks    []StateSink
}

// New creates an empty platform. history may be nil.
func New(eventStore *events.Store, history storage.Storage, logger zerolog.Logger) *Platform {
	return &Platform{
		events:  eventStore,
		history: history,
		logger:  logger.With().Str("component", "platform").Logger(),
		byID:    make(map[string]*Entity),
		failing: make(map[string]bool),
	}
}

// AddSink registers a sink for state changes
func (p *Platform) AddSink(s StateSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// AddController creates entities for every device a connected controller
// discovered and subscribes them to its poll ticks. Controllers that are
// not connected contribute nothing.
func (p *Platform) AddController(c *hubitat.Controller) []*Entity {
	if !c.Connected() {
		p.logger.Warn().Str("gateway", c.Name()).Msg("gateway offline, no entities registered")
		p.events.Add(events.Event{
			Type:    events.EventGatewayOffline,
			Gateway: c.Name(),
		})
		return nil
	}

	var candidates []*Entity
	for _, dev := range c.Sensors() {
		candidates = append(candidates, newEntity(c.Name(), DomainBinarySensor, dev))
	}
	for _, dev := range c.Switches() {
		candidates = append(candidates, newEntity(c.Name(), DomainSwitch, dev))
	}

	var added []*Entity
	p.mu.Lock()
	for _, e := range candidates {
		if _, exists := p.byID[e.EntityID()]; exists {
			p.logger.Warn().Str("entity_id", e.EntityID()).Msg("duplicate entity id, keeping first")
			continue
		}
		p.entities = append(p.entities, e)
		p.byID[e.EntityID()] = e
		added = append(added, e)
	}
	p.mu.Unlock()

	for _, e := range added {
		e.Update()
	}

	p.events.Add(events.Event{
		Type:    events.EventDiscovery,
		Gateway: c.Name(),
		Details: fmt.Sprintf("%d entities", len(added)),
	})

	c.OnRefresh(func(res hubitat.TickResult) {
		p.handleRefresh(c.Name(), added, res)
	})

	return added
}

func (p *Platform) handleRefresh(gateway string, entities []*Entity, res hubitat.TickResult) {
	p.mu.Lock()
	wasFailing := p.failing[gateway]
	p.failing[gateway] = !res.Refreshed
	p.mu.Unlock()

	switch {
	case !res.Refreshed && !wasFailing:
		p.logger.Warn().Str("gateway", gateway).Msg("device refresh failed, keeping last snapshot")
		p.events.Add(events.Event{Type: events.EventRefreshFailed, Gateway: gateway})
	case res.Refreshed && wasFailing:
		p.logger.Info().Str("gateway", gateway).Msg("device refresh resumed")
		p.events.Add(events.Event{Type: events.EventRefreshResumed, Gateway: gateway})
	}

	for _, e := range entities {
		if !e.Update() {
			continue
		}
		p.events.Add(events.Event{
			Type:     events.EventStateChanged,
			Gateway:  gateway,
			EntityID: e.EntityID(),
			State:    e.State(),
			Source:   "hub",
		})
		p.publish(e)
	}
}

func (p *Platform) publish(e *Entity) {
	p.mu.RLock()
	sinks := make([]StateSink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.RUnlock()

	for _, s := range sinks {
		if err := s.PublishState(e); err != nil {
			p.logger.Debug().Err(err).Str("entity_id", e.EntityID()).Msg("failed to publish state")
		}
	}
}

// Entities returns all entities in registration order
func (p *Platform) Entities() []*Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Entity, len(p.entities))
	copy(result, p.entities)
	return result
}

// Entity returns the entity with the given entity id
func (p *Platform) Entity(entityID string) (*Entity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byID[entityID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", entityID, ErrEntityNotFound)
	}
	return e, nil
}

// EntityByObjectID finds an entity by the part after the domain
func (p *Platform) EntityByObjectID(objectID string) (*Entity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.entities {
		if e.ObjectID() == objectID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", objectID, ErrEntityNotFound)
}

// TurnOn issues the on command for a switch entity
func (p *Platform) TurnOn(entityID, source string) error {
	return p.command(entityID, source, true)
}

// TurnOff issues the off command for a switch entity
func (p *Platform) TurnOff(entityID, source string) error {
	return p.command(entityID, source, false)
}

func (p *Platform) command(entityID, source string, on bool) error {
	e, err := p.Entity(entityID)
	if err != nil {
		return err
	}

	send := e.TurnOff
	if on {
		send = e.TurnOn
	}
	cmd, err := send()
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("entity_id", entityID).
		Str("command", cmd).
		Str("source", source).
		Msg("command queued")

	p.events.Add(events.Event{
		Type:     events.EventCommandIssued,
		Gateway:  e.Gateway(),
		EntityID: entityID,
		State:    e.State(),
		Source:   source,
		Details:  cmd,
	})
	p.publish(e)

	if p.history != nil {
		entry := storage.CommandHistoryEntry{
			Gateway:   e.Gateway(),
			EntityID:  entityID,
			DeviceID:  e.Device().ID,
			Command:   cmd,
			Source:    source,
			Timestamp: time.Now(),
		}
		if err := p.history.SaveCommandHistory(entry); err != nil {
			p.logger.Error().Err(err).Msg("failed to save command history")
		} else if err := p.history.TrimCommandHistory(MaxCommandHistory); err != nil {
			p.logger.Error().Err(err).Msg("failed to trim command history")
		}
	}

	return nil
}
