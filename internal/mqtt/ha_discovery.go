package mqtt

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"hubitatbridge/internal/storage"
)

// DiscoveryManager manages Home Assistant MQTT Discovery
type DiscoveryManager struct {
	broker    Broker
	logger    zerolog.Logger
	storage   storage.Storage
	namespace string

	// Cache of pre-generated discovery configs
	discoveryConfigs map[string][]byte
	discoveryMu      sync.RWMutex
}

// NewDiscoveryManager creates a new DiscoveryManager instance. State is
// kept in storage under namespace.
func NewDiscoveryManager(broker Broker, logger zerolog.Logger, store storage.Storage, namespace string) *DiscoveryManager {
	return &DiscoveryManager{
		broker:           broker,
		logger:           logger.With().Str("component", "mqtt-discovery").Logger(),
		storage:          store,
		namespace:        namespace,
		discoveryConfigs: make(map[string][]byte),
	}
}

// ShouldRepublishDiscovery checks if discovery configs should be republished
func (d *DiscoveryManager) ShouldRepublishDiscovery(currentEntityCount int) bool {
	if d.storage == nil {
		return true
	}

	published, err := d.storage.GetBool(d.namespace, "discoveryPublished")
	if err != nil {
		published = false // First time
	}

	lastCount, err := d.storage.GetInt(d.namespace, "entityCount")
	if err != nil {
		lastCount = -1
	}

	// Republish if never published or the entity set changed size
	return !published || currentEntityCount != lastCount
}

// PublishDiscoveryConfig publishes discovery config for a single entity
func (d *DiscoveryManager) PublishDiscoveryConfig(cfg *EntityConfig) error {
	if cfg == nil {
		return nil
	}

	configJSON := d.generateDiscoveryConfig(cfg)
	if configJSON == nil {
		return nil
	}

	return d.broker.PublishRaw(d.discoveryTopic(cfg), configJSON, true)
}

// PublishMultipleDiscoveryConfigs publishes discovery configs for multiple entities
func (d *DiscoveryManager) PublishMultipleDiscoveryConfigs(configs []*EntityConfig) error {
	var failed int
	for _, cfg := range configs {
		if err := d.PublishDiscoveryConfig(cfg); err != nil {
			failed++
			d.logger.Error().Err(err).Str("object_id", cfg.ObjectID).Msg("failed to publish discovery")
		}
	}

	if failed == 0 {
		d.markDiscoveryPublished(len(configs))
	}

	d.logger.Info().Int("entities", len(configs)).Int("failed", failed).Msg("published discovery configs")
	return nil
}

// RemoveDiscoveryConfig clears the retained config so Home Assistant drops the entity
func (d *DiscoveryManager) RemoveDiscoveryConfig(cfg *EntityConfig) error {
	d.discoveryMu.Lock()
	delete(d.discoveryConfigs, cfg.ObjectID)
	d.discoveryMu.Unlock()

	return d.broker.PublishRaw(d.discoveryTopic(cfg), []byte{}, true)
}

// Topic: {discovery prefix}/{component}/hubitat_bridge/{object_id}/config
func (d *DiscoveryManager) discoveryTopic(cfg *EntityConfig) string {
	return d.broker.GetConfig().DiscoveryPrefix + "/" + string(cfg.Component) + "/hubitat_bridge/" + cfg.ObjectID + "/config"
}

// generateDiscoveryConfig generates and caches Home Assistant discovery config
func (d *DiscoveryManager) generateDiscoveryConfig(cfg *EntityConfig) []byte {
	d.discoveryMu.RLock()
	if config, ok := d.discoveryConfigs[cfg.ObjectID]; ok {
		d.discoveryMu.RUnlock()
		return config
	}
	d.discoveryMu.RUnlock()

	configJSON, err := json.Marshal(buildDiscoveryPayload(cfg, d.broker.GetConfig()))
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to marshal discovery config")
		return nil
	}

	d.discoveryMu.Lock()
	d.discoveryConfigs[cfg.ObjectID] = configJSON
	d.discoveryMu.Unlock()

	return configJSON
}

func buildDiscoveryPayload(cfg *EntityConfig, mqttCfg Config) map[string]interface{} {
	payload := map[string]interface{}{
		"name":                  cfg.Name,
		"unique_id":             cfg.UniqueID,
		"object_id":             cfg.ObjectID,
		"state_topic":           mqttCfg.Prefix + "/" + cfg.StateTopic,
		"payload_on":            PayloadOn,
		"payload_off":           PayloadOff,
		"availability_topic":    mqttCfg.AvailabilityTopic(),
		"payload_available":     PayloadOnline,
		"payload_not_available": PayloadOffline,
	}

	if cfg.AttributesTopic != "" {
		payload["json_attributes_topic"] = mqttCfg.Prefix + "/" + cfg.AttributesTopic
	}

	if cfg.CommandTopic != "" {
		payload["command_topic"] = mqttCfg.Prefix + "/" + cfg.CommandTopic
		payload["state_on"] = PayloadOn
		payload["state_off"] = PayloadOff
	}

	if cfg.DeviceClass != "" {
		payload["device_class"] = cfg.DeviceClass
	}

	if cfg.DeviceInfo != nil {
		device := map[string]interface{}{
			"identifiers":  cfg.DeviceInfo.Identifiers,
			"name":         cfg.DeviceInfo.Name,
			"model":        cfg.DeviceInfo.Model,
			"manufacturer": cfg.DeviceInfo.Manufacturer,
		}
		if cfg.DeviceInfo.ViaDevice != "" {
			device["via_device"] = cfg.DeviceInfo.ViaDevice
		}
		payload["device"] = device
	}

	return payload
}

// markDiscoveryPublished records the published entity count in storage
func (d *DiscoveryManager) markDiscoveryPublished(count int) {
	if d.storage == nil {
		return
	}
	if err := d.storage.SetBool(d.namespace, "discoveryPublished", true); err != nil {
		d.logger.Error().Err(err).Msg("failed to mark discovery as published")
	}
	if err := d.storage.SetInt(d.namespace, "entityCount", count); err != nil {
		d.logger.Error().Err(err).Msg("failed to store entity count")
	}
}
