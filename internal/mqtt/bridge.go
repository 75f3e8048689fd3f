package mqtt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/platform"
)

// Commander issues on/off commands for an entity
type Commander interface {
	TurnOn(entityID, source string) error
	TurnOff(entityID, source string) error
}

// Bridge announces platform entities to Home Assistant and routes
// commands from their command topics back to the platform.
type Bridge struct {
	broker    Broker
	discovery *DiscoveryManager
	publisher *Publisher
	commander Commander
	logger    zerolog.Logger

	mu       sync.RWMutex
	entityBy map[string]string // topic object id -> entity id
}

// NewBridge wires a discovery manager and publisher around broker
func NewBridge(broker Broker, discovery *DiscoveryManager, publisher *Publisher, commander Commander, logger zerolog.Logger) *Bridge {
	return &Bridge{
		broker:    broker,
		discovery: discovery,
		publisher: publisher,
		commander: commander,
		logger:    logger.With().Str("component", "mqtt-bridge").Logger(),
	}
}

// Start publishes discovery configs and states for entities, subscribes
// to switch commands and republishes states after every reconnect.
func (b *Bridge) Start(entities []*platform.Entity) error {
	index := make(map[string]string, len(entities))
	for _, e := range entities {
		if e.Domain() == platform.DomainSwitch {
			index[b.publisher.getSanitizedID(e.ObjectID())] = e.EntityID()
		}
	}
	b.mu.Lock()
	b.entityBy = index
	b.mu.Unlock()

	if b.discovery.ShouldRepublishDiscovery(len(entities)) {
		configs := make([]*EntityConfig, 0, len(entities))
		for _, e := range entities {
			configs = append(configs, EntityConfigFor(e, b.publisher.getSanitizedID(e.ObjectID())))
		}
		b.discovery.PublishMultipleDiscoveryConfigs(configs)
	} else {
		b.logger.Debug().Msg("discovery unchanged, skipping republish")
	}

	if err := b.publisher.PublishMultiple(entities); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish initial states")
	}

	b.broker.OnConnect(func() {
		if err := b.publisher.PublishMultiple(entities); err != nil {
			b.logger.Warn().Err(err).Msg("failed to republish states after reconnect")
		}
	})

	topic := string(ComponentSwitch) + "/+/set"
	if err := b.broker.Subscribe(topic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	return nil
}

func (b *Bridge) handleCommand(topic string, payload []byte, retained bool) {
	// Retained commands would replay on every reconnect
	if retained {
		return
	}

	objectID, ok := parseCommandTopic(topic)
	if !ok {
		b.logger.Debug().Str("topic", topic).Msg("ignoring unexpected topic")
		return
	}

	b.mu.RLock()
	entityID, ok := b.entityBy[objectID]
	b.mu.RUnlock()
	if !ok {
		b.logger.Debug().Str("object_id", objectID).Msg("command for unknown switch")
		return
	}

	var err error
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case PayloadOn:
		err = b.commander.TurnOn(entityID, "mqtt")
	case PayloadOff:
		err = b.commander.TurnOff(entityID, "mqtt")
	default:
		b.logger.Warn().Str("entity_id", entityID).Str("payload", string(payload)).Msg("unknown command payload")
		return
	}

	if err != nil {
		b.logger.Warn().Err(err).Str("entity_id", entityID).Msg("command rejected")
	}
}

// parseCommandTopic extracts the object id from "<prefix>/switch/<id>/set"
func parseCommandTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", false
	}
	n := len(parts)
	if parts[n-1] != "set" || parts[n-3] != string(ComponentSwitch) || parts[n-2] == "" {
		return "", false
	}
	return parts[n-2], true
}

// EntityConfigFor builds the discovery config for a platform entity
func EntityConfigFor(e *platform.Entity, objectID string) *EntityConfig {
	component := Component(e.Domain())
	dev := e.Device()

	cfg := &EntityConfig{
		ObjectID:        objectID,
		UniqueID:        e.UniqueID(),
		Name:            e.Name(),
		Component:       component,
		StateTopic:      stateTopic(component, objectID),
		AttributesTopic: attributesTopic(component, objectID),
		DeviceClass:     e.DeviceClass(),
		DeviceInfo: &DeviceInfo{
			Identifiers:  []string{e.UniqueID()},
			Name:         e.Name(),
			Model:        dev.Type,
			Manufacturer: "Hubitat",
			ViaDevice:    "hubitat_" + e.Gateway(),
		},
	}

	if component == ComponentSwitch {
		cfg.CommandTopic = commandTopic(component, objectID)
	}

	return cfg
}
