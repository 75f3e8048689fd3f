// Package mqtt exposes bridge entities to Home Assistant over MQTT:
// discovery configs, retained states and a command subscription.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Config holds MQTT client configuration
type Config struct {
	Broker          string // MQTT broker address (e.g., "tcp://localhost:1883")
	ClientID        string // Unique client ID
	Username        string // MQTT username (optional)
	Password        string // MQTT password (optional)
	Prefix          string // Topic prefix for state and command topics
	DiscoveryPrefix string // Home Assistant discovery prefix, usually "homeassistant"
	UseTLS          bool   // Enable TLS connection
}

// AvailabilityTopic is the bridge-wide availability topic, guarded by LWT
func (c Config) AvailabilityTopic() string {
	return c.Prefix + "/status"
}

// MessageHandler receives a message published on a subscribed topic
type MessageHandler func(topic string, payload []byte, retained bool)

// Broker is the subset of the client used by the discovery manager,
// publisher and bridge
type Broker interface {
	PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error
	PublishRaw(topic string, payload interface{}, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
	OnConnect(fn func())
	GetConfig() Config
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps the MQTT client with additional functionality
type Client struct {
	client   mqtt.Client
	config   Config
	mu       sync.RWMutex
	logger   zerolog.Logger
	isActive bool

	subs      map[string]subscription
	onConnect []func()
}

// New creates a new MQTT client
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("hubitat-bridge-%d", time.Now().Unix())
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "hubitat"
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = "homeassistant"
	}

	c := &Client{
		config: cfg,
		logger: logger.With().Str("component", "mqtt").Logger(),
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Configure TLS if enabled
	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// Broker marks every entity unavailable if the bridge drops off
	opts.SetWill(cfg.AvailabilityTopic(), PayloadOffline, 1, true)

	// Set connection handlers
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.logger.Warn().Err(err).Msg("connection lost")
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.logger.Info().Str("broker", cfg.Broker).Msg("connected to broker")
		c.restore(client)
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, options *mqtt.ClientOptions) {
		c.logger.Info().Msg("attempting to reconnect")
	})

	// Auto-reconnect settings
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)

	// Keep alive settings
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean session, subscriptions are restored on every connect
	opts.SetCleanSession(true)

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// restore publishes availability, re-subscribes and runs connect hooks
func (c *Client) restore(client mqtt.Client) {
	client.Publish(c.config.AvailabilityTopic(), 1, true, PayloadOnline)

	c.mu.RLock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	hooks := make([]func(), len(c.onConnect))
	copy(hooks, c.onConnect)
	c.mu.RUnlock()

	for topic, s := range subs {
		token := client.Subscribe(topic, s.qos, wrapHandler(s.handler))
		if token.Wait() && token.Error() != nil {
			c.logger.Error().Err(token.Error()).Str("topic", topic).Msg("failed to re-subscribe")
		}
	}

	for _, fn := range hooks {
		go fn()
	}
}

// Connect establishes connection to MQTT broker
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isActive {
		return nil // Already connected
	}

	c.logger.Info().Str("broker", c.config.Broker).Msg("connecting to broker")

	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.isActive = true
	return nil
}

// Disconnect marks the bridge offline and closes the connection
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return
	}

	token := c.client.Publish(c.config.AvailabilityTopic(), 1, true, PayloadOffline)
	token.WaitTimeout(time.Second)

	c.client.Disconnect(250) // Wait up to 250ms for graceful disconnect
	c.isActive = false

	c.logger.Info().Msg("disconnected from broker")
}

// OnConnect registers fn to run after every (re)connect
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Publish publishes a message to the specified topic with QoS 0
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishWithQoS(topic, 0, false, payload)
}

// PublishWithQoS publishes a message with explicit QoS and retained settings
func (c *Client) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return fmt.Errorf("MQTT client is not connected")
	}

	// Add prefix to topic
	fullTopic := c.buildTopic(topic)

	token := c.client.Publish(fullTopic, qos, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	c.logger.Debug().
		Str("topic", fullTopic).
		Uint8("qos", qos).
		Bool("retained", retained).
		Msg("published")

	return nil
}

// PublishRaw publishes a message without adding prefix (for discovery topics)
func (c *Client) PublishRaw(topic string, payload interface{}, retained bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isActive {
		return fmt.Errorf("MQTT client is not connected")
	}

	// Publish with QoS 1 without prefix
	token := c.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	c.logger.Debug().Str("topic", topic).Msg("published raw")
	return nil
}

// Subscribe subscribes to a prefixed topic. The subscription is restored
// after reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullTopic := c.buildTopic(topic)
	c.subs[fullTopic] = subscription{qos: qos, handler: handler}

	if !c.isActive {
		return nil
	}

	token := c.client.Subscribe(fullTopic, qos, wrapHandler(handler))
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", fullTopic, token.Error())
	}

	c.logger.Info().Str("topic", fullTopic).Msg("subscribed")
	return nil
}

func wrapHandler(h MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload(), msg.Retained())
	}
}

// buildTopic constructs full topic path with prefix
func (c *Client) buildTopic(topic string) string {
	if c.config.Prefix == "" {
		return topic
	}
	return c.config.Prefix + "/" + topic
}

// IsConnected returns true if client is connected to broker
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isActive && c.client.IsConnected()
}

// GetConfig returns the current MQTT configuration
func (c *Client) GetConfig() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}
