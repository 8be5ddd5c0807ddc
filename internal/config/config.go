package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // Zones must resolve in minimal containers.

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by doorwatch-server and doorctl.
type Config struct {
	// DeviceName is the human name of the monitored door, used in notifications.
	DeviceName string `yaml:"device_name"`
	// HTTPAddress is the listen address of the HTTP API and websocket endpoint.
	HTTPAddress string `yaml:"http_addr"`
	// GRPCAddress is the listen address of the gRPC control API.
	// doorctl dials the same address.
	GRPCAddress string `yaml:"grpc_addr"`
	// SecretKey is the shared secret required to change the door state.
	SecretKey string `yaml:"secret_key"`
	// AlarmDelay is how long the door may stay open before an alarm is sent.
	AlarmDelay time.Duration `yaml:"alarm_delay"`
	// HistorySize is the number of transitions kept in the event history.
	HistorySize int `yaml:"history_size"`
	// TimeZone is the IANA zone used to render timestamps.
	TimeZone string `yaml:"time_zone"`
	// Timeout bounds doorctl RPC calls and server shutdown.
	Timeout time.Duration `yaml:"timeout"`
	// StaticDir is an optional directory served for unmatched HTTP paths.
	StaticDir string `yaml:"static_dir"`
	// ServiceWorkerScope is handed to the browser UI for push registration.
	ServiceWorkerScope string `yaml:"service_worker_scope"`

	Log       LogConfig       `yaml:"log"`
	Push      PushConfig      `yaml:"push"`
	Store     StoreConfig     `yaml:"store"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PushConfig holds Web Push (VAPID) settings.
type PushConfig struct {
	// Subject is the VAPID contact, usually a mailto: URI.
	Subject         string `yaml:"subject"`
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	// TTL is how long the push service keeps an undelivered message, in seconds.
	TTL int `yaml:"ttl"`
	// Icon is the notification icon path relative to the UI origin.
	Icon string `yaml:"icon"`
	// Timeout bounds a single push request.
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether both VAPID keys are configured.
func (p *PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// StoreConfig selects the subscription store backend.
type StoreConfig struct {
	// Driver is one of sqlite, redis, postgres or memory.
	Driver string `yaml:"driver"`
	// Path is the sqlite database file.
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection parameters for the redis store.
type RedisConfig struct {
	Address   string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// MQTTConfig enables the MQTT ingress when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// Enabled reports whether an MQTT broker is configured.
func (m *MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// WebSocketConfig tunes the refresher keepalive.
type WebSocketConfig struct {
	// PingInterval is how often the server pings each observer.
	PingInterval time.Duration `yaml:"ping_interval"`
	// PongWait is how long an observer may stay silent before it is closed.
	PongWait time.Duration `yaml:"pong_wait"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "doorwatch.yaml"

	// DefaultHTTPAddress is used when http_addr is empty.
	DefaultHTTPAddress = ":8080"

	// DefaultGRPCAddress is used when grpc_addr is empty.
	DefaultGRPCAddress = "127.0.0.1:50051"

	// DefaultDeviceName is used when device_name is empty.
	DefaultDeviceName = "Door"

	// DefaultAlarmDelay is how long the door may stay open by default.
	DefaultAlarmDelay = 5 * time.Minute

	// DefaultHistorySize is the default event history capacity.
	DefaultHistorySize = 20

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultSQLitePath is the default sqlite database file.
	DefaultSQLitePath = "./data/doorwatch.db"

	// DefaultRedisKeyPrefix namespaces redis keys.
	DefaultRedisKeyPrefix = "doorwatch:"

	// DefaultMQTTTopic is the topic the ingress subscribes to.
	DefaultMQTTTopic = "doorwatch/door"

	// DefaultMQTTClientID identifies the server on the broker.
	DefaultMQTTClientID = "doorwatch-server"

	// DefaultPushTTL is the push message TTL in seconds.
	DefaultPushTTL = 3600

	// DefaultPushTimeout bounds a single push request.
	DefaultPushTimeout = 10 * time.Second

	// DefaultPushIcon is the notification icon.
	DefaultPushIcon = "images/doorwatch.png"

	// DefaultPingInterval is how often observers are pinged.
	DefaultPingInterval = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errSecretKeyRequired is returned when secret_key is empty.
	errSecretKeyRequired = errors.New("secret key must be provided")
	// errInvalidHistorySize is returned for a negative history_size.
	errInvalidHistorySize = errors.New("history size must not be negative")
	// errInvalidAlarmDelay is returned for a negative alarm_delay.
	errInvalidAlarmDelay = errors.New("alarm delay must not be negative")
	// errUnknownDriver is returned for an unsupported store driver.
	errUnknownDriver = errors.New("unknown store driver")
	// errDSNRequired is returned when the postgres driver has no DSN.
	errDSNRequired = errors.New("postgres store requires a dsn")
	// errRedisAddressRequired is returned when the redis driver has no address.
	errRedisAddressRequired = errors.New("redis store requires an address")
	// errPongWaitTooShort is returned when pong_wait does not exceed ping_interval.
	errPongWaitTooShort = errors.New("websocket pong wait must be longer than the ping interval")
	// errPushKeysIncomplete is returned when only one VAPID key is set.
	errPushKeysIncomplete = errors.New("both VAPID keys must be provided")
	// errPushSubjectRequired is returned when push is enabled without a VAPID subject.
	errPushSubjectRequired = errors.New("push subject is required when VAPID keys are set")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file carries secrets.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(settings.SecretKey) == "" {
		return errSecretKeyRequired
	}

	applyDefaults(settings)

	if _, err := net.ResolveTCPAddr("tcp", settings.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if _, err := time.LoadLocation(settings.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", settings.TimeZone, err)
	}

	if settings.HistorySize < 0 {
		return errInvalidHistorySize
	}

	if settings.AlarmDelay < 0 {
		return errInvalidAlarmDelay
	}

	if settings.WebSocket.PongWait <= settings.WebSocket.PingInterval {
		return errPongWaitTooShort
	}

	if (settings.Push.VAPIDPublicKey == "") != (settings.Push.VAPIDPrivateKey == "") {
		return errPushKeysIncomplete
	}

	if settings.Push.Enabled() && strings.TrimSpace(settings.Push.Subject) == "" {
		return errPushSubjectRequired
	}

	return validateStore(&settings.Store)
}

// applyDefaults fills zero values with defaults.
//
//nolint:cyclop // A flat list of defaults reads better than a table.
func applyDefaults(settings *Config) {
	if settings.DeviceName == "" {
		settings.DeviceName = DefaultDeviceName
	}

	if settings.HTTPAddress == "" {
		settings.HTTPAddress = DefaultHTTPAddress
	}

	if settings.GRPCAddress == "" {
		settings.GRPCAddress = DefaultGRPCAddress
	}

	if settings.AlarmDelay == 0 {
		settings.AlarmDelay = DefaultAlarmDelay
	}

	if settings.HistorySize == 0 {
		settings.HistorySize = DefaultHistorySize
	}

	if settings.TimeZone == "" {
		settings.TimeZone = time.UTC.String()
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.ServiceWorkerScope == "" {
		settings.ServiceWorkerScope = "/"
	}

	if settings.Store.Driver == "" {
		settings.Store.Driver = DriverSQLite
	}

	if settings.Store.Path == "" {
		settings.Store.Path = DefaultSQLitePath
	}

	if settings.Store.Redis.KeyPrefix == "" {
		settings.Store.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if settings.MQTT.Topic == "" {
		settings.MQTT.Topic = DefaultMQTTTopic
	}

	if settings.MQTT.ClientID == "" {
		settings.MQTT.ClientID = DefaultMQTTClientID
	}

	if settings.Push.TTL <= 0 {
		settings.Push.TTL = DefaultPushTTL
	}

	if settings.Push.Timeout <= 0 {
		settings.Push.Timeout = DefaultPushTimeout
	}

	if settings.Push.Icon == "" {
		settings.Push.Icon = DefaultPushIcon
	}

	if settings.WebSocket.PingInterval <= 0 {
		settings.WebSocket.PingInterval = DefaultPingInterval
	}

	if settings.WebSocket.PongWait <= 0 {
		settings.WebSocket.PongWait = 5 * settings.WebSocket.PingInterval
	}
}

// validateStore checks backend-specific settings.
func validateStore(store *StoreConfig) error {
	switch store.Driver {
	case DriverSQLite, DriverMemory:
		return nil
	case DriverPostgres:
		if store.DSN == "" {
			return errDSNRequired
		}

		return nil
	case DriverRedis:
		if store.Redis.Address == "" {
			return errRedisAddressRequired
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, store.Driver)
	}
}

// Location returns the configured time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}
