package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names. They override values from the file.
const (
	EnvAddr          = "HUBITAT_BRIDGE_ADDR"
	EnvJWTSecret     = "HUBITAT_BRIDGE_JWT_SECRET"
	EnvJWTExpiration = "HUBITAT_BRIDGE_JWT_EXPIRATION"
	EnvNoAuth        = "HUBITAT_BRIDGE_NO_AUTH"
	EnvStoragePath   = "HUBITAT_BRIDGE_STORAGE_PATH"
	EnvLogLevel      = "HUBITAT_BRIDGE_LOG_LEVEL"
	// MQTT settings
	EnvMQTTBroker   = "HUBITAT_BRIDGE_MQTT_BROKER"
	EnvMQTTUsername = "HUBITAT_BRIDGE_MQTT_USERNAME"
	EnvMQTTPassword = "HUBITAT_BRIDGE_MQTT_PASSWORD"
)

// Default values
const (
	DefaultAddr           = ":8080"
	DefaultJWTExpiration  = 24 * time.Hour
	DefaultScanInterval   = 15 // seconds
	DefaultDebounceWindow = 15 * time.Second
	DefaultRepollInterval = 3 * time.Second
	DefaultRequestTimeout = 20 * time.Second
	DefaultStoragePath    = "hubitat-bridge.db"
	DefaultEventsMaxSize  = 100
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	// MQTT defaults
	DefaultMQTTPrefix          = "hubitat"
	DefaultMQTTDiscoveryPrefix = "homeassistant"
)

var (
	gatewayNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

	// Only ${VAR} is expanded; bare $ appears in bcrypt hashes
	envRef = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Hubitat  HubitatConfig   `yaml:"hubitat"`
	Gateways []GatewayConfig `yaml:"gateways"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Storage  StorageConfig   `yaml:"storage"`
	Events   EventsConfig    `yaml:"events"`
	Log      LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`
	NoAuth        bool          `yaml:"no_auth"`
	Users         []UserConfig  `yaml:"users"`
}

type UserConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// HubitatConfig holds timing shared by every gateway
type HubitatConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	RepollInterval time.Duration `yaml:"repoll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// GatewayConfig describes one hub
type GatewayConfig struct {
	Name         string            `yaml:"name"`
	URL          string            `yaml:"url"`
	AccessToken  string            `yaml:"access_token"`
	ScanInterval int               `yaml:"scan_interval"` // seconds
	EntityIDs    map[string]string `yaml:"entity_ids"`    // device id -> entity id
}

// ScanIntervalDuration returns the scan interval as a duration
func (g GatewayConfig) ScanIntervalDuration() time.Duration {
	return time.Duration(g.ScanInterval) * time.Second
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"` // empty disables MQTT
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Prefix          string `yaml:"prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	UseTLS          bool   `yaml:"use_tls"`
}

// Enabled reports whether a broker is configured
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type EventsConfig struct {
	MaxSize int `yaml:"max_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Load reads the YAML file at path, expands ${VAR} references, applies
// defaults and environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse builds a Config from YAML. lookup resolves environment variables.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	expanded := envRef.ReplaceAllStringFunc(string(data), func(ref string) string {
		v, _ := lookup(ref[2 : len(ref)-1])
		return v
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills every unset field.
func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.JWTExpiration == 0 {
		c.Server.JWTExpiration = DefaultJWTExpiration
	}
	if c.Hubitat.DebounceWindow == 0 {
		c.Hubitat.DebounceWindow = DefaultDebounceWindow
	}
	if c.Hubitat.RepollInterval == 0 {
		c.Hubitat.RepollInterval = DefaultRepollInterval
	}
	if c.Hubitat.RequestTimeout == 0 {
		c.Hubitat.RequestTimeout = DefaultRequestTimeout
	}
	for i := range c.Gateways {
		g := &c.Gateways[i]
		if g.ScanInterval == 0 {
			g.ScanInterval = DefaultScanInterval
		}
		if g.URL != "" && !strings.HasSuffix(g.URL, "/") {
			g.URL += "/"
		}
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = DefaultMQTTPrefix
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = DefaultMQTTDiscoveryPrefix
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Events.MaxSize == 0 {
		c.Events.MaxSize = DefaultEventsMaxSize
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// applyEnv applies environment overrides.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvJWTSecret); ok && v != "" {
		c.Server.JWTSecret = v
	}
	if v, ok := lookup(EnvJWTExpiration); ok && v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("%s: expected positive seconds, got %q", EnvJWTExpiration, v)
		}
		c.Server.JWTExpiration = time.Duration(seconds) * time.Second
	}
	if v, ok := lookup(EnvNoAuth); ok {
		c.Server.NoAuth = parseBool(v)
	}
	if v, ok := lookup(EnvStoragePath); ok && v != "" {
		c.Storage.Path = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}

	// MQTT settings
	if v, ok := lookup(EnvMQTTBroker); ok {
		c.MQTT.Broker = v
	}
	if v, ok := lookup(EnvMQTTUsername); ok {
		c.MQTT.Username = v
	}
	if v, ok := lookup(EnvMQTTPassword); ok {
		c.MQTT.Password = v
	}
	return nil
}

// validate checks if configuration is valid.
func (c *Config) validate() error {
	if err := validateAddr(c.Server.Addr); err != nil {
		return err
	}

	if c.Server.JWTExpiration < time.Minute {
		return errors.New("JWT expiration must be at least 1 minute")
	}
	if c.Server.JWTExpiration > 365*24*time.Hour {
		return errors.New("JWT expiration cannot exceed 1 year")
	}

	if !c.Server.NoAuth && len(c.Server.Users) == 0 {
		return errors.New("at least one user is required unless no_auth is set")
	}
	for _, u := range c.Server.Users {
		if u.Username == "" {
			return errors.New("user with empty username")
		}
		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("user %s: password or password_hash required", u.Username)
		}
		switch u.Role {
		case "", "admin", "readonly":
		default:
			return fmt.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
	}

	if c.Hubitat.DebounceWindow < 0 || c.Hubitat.RepollInterval < 0 || c.Hubitat.RequestTimeout < 0 {
		return errors.New("hubitat timings cannot be negative")
	}

	if len(c.Gateways) == 0 {
		return errors.New("at least one gateway is required")
	}
	seen := make(map[string]bool, len(c.Gateways))
	for i, g := range c.Gateways {
		if !gatewayNamePattern.MatchString(g.Name) {
			return fmt.Errorf("gateway %d: name must match %s", i, gatewayNamePattern)
		}
		if seen[g.Name] {
			return fmt.Errorf("gateway %s: duplicate name", g.Name)
		}
		seen[g.Name] = true

		u, err := url.Parse(g.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("gateway %s: invalid url %q", g.Name, g.URL)
		}
		if g.AccessToken == "" {
			return fmt.Errorf("gateway %s: access_token is required", g.Name)
		}
		if g.ScanInterval < 1 {
			return fmt.Errorf("gateway %s: scan_interval must be a positive number of seconds", g.Name)
		}
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Events.MaxSize < 0 {
		return errors.New("events max_size cannot be negative")
	}

	return nil
}

func validateAddr(addr string) error {
	if addr == "" {
		return errors.New("server address cannot be empty")
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid server address format: %s", addr)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port number: %s", port)
	}
	return nil
}

// parseBool parses a boolean string value.
// Accepts: true, false, 1, 0, yes, no, on (case-insensitive)
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// String returns a string representation of the config (without secrets).
func (c *Config) String() string {
	secretDisplay := "[not set]"
	if c.Server.JWTSecret != "" {
		secretDisplay = "[set]"
	}

	names := make([]string, len(c.Gateways))
	for i, g := range c.Gateways {
		names[i] = g.Name
	}

	return fmt.Sprintf(
		"Config{Addr: %q, JWTSecret: %s, JWTExpiration: %v, NoAuth: %v, Users: %d, Gateways: %v, MQTT: %q, Storage: %q}",
		c.Server.Addr, secretDisplay, c.Server.JWTExpiration, c.Server.NoAuth, len(c.Server.Users),
		names, c.MQTT.Broker, c.Storage.Path,
	)
}
