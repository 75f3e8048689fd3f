package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/platform"
)

// Publisher publishes entity states. It implements platform.StateSink.
type Publisher struct {
	broker Broker
	logger zerolog.Logger

	// Cache of sanitized object IDs
	objectIDCache   map[string]string
	objectIDCacheMu sync.RWMutex
}

// NewPublisher creates a new Publisher instance
func NewPublisher(broker Broker, logger zerolog.Logger) *Publisher {
	return &Publisher{
		broker:        broker,
		logger:        logger.With().Str("component", "mqtt-publisher").Logger(),
		objectIDCache: make(map[string]string),
	}
}

// PublishState publishes a single entity's retained state and attributes
func (p *Publisher) PublishState(e *platform.Entity) error {
	if e == nil {
		return nil
	}

	component := Component(e.Domain())
	objectID := p.getSanitizedID(e.ObjectID())

	state := PayloadOff
	if e.IsOn() {
		state = PayloadOn
	}

	if err := p.broker.PublishWithQoS(stateTopic(component, objectID), 1, true, state); err != nil {
		p.logger.Debug().Err(err).Str("entity_id", e.EntityID()).Msg("failed to publish state")
		return err
	}

	attrsJSON, err := json.Marshal(e.Attributes())
	if err != nil {
		return err
	}
	return p.broker.PublishWithQoS(attributesTopic(component, objectID), 0, true, attrsJSON)
}

// PublishMultiple publishes every entity, logging failures and continuing
func (p *Publisher) PublishMultiple(entities []*platform.Entity) error {
	var firstErr error
	for _, e := range entities {
		if err := p.PublishState(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// getSanitizedID returns cached sanitized object ID
func (p *Publisher) getSanitizedID(objectID string) string {
	p.objectIDCacheMu.RLock()
	if id, ok := p.objectIDCache[objectID]; ok {
		p.objectIDCacheMu.RUnlock()
		return id
	}
	p.objectIDCacheMu.RUnlock()

	id := sanitizeObjectID(objectID)

	p.objectIDCacheMu.Lock()
	p.objectIDCache[objectID] = id
	p.objectIDCacheMu.Unlock()

	return id
}

// sanitizeObjectID creates a safe ID for MQTT topics
func sanitizeObjectID(name string) string {
	b := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A') // to lowercase
		case c == ' ' || c == '/' || c == '.' || c == '+' || c == '#':
			b[i] = '_'
		default:
			b[i] = c
		}
	}
	return string(b)
}
