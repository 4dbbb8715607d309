// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the speaker daemon.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Device    DeviceConfig    `yaml:"device"`
	Transfer  TransferConfig  `yaml:"transfer"`
	Audio     AudioConfig     `yaml:"audio"`
	Admin     AdminConfig     `yaml:"admin"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Log       LogConfig       `yaml:"log"`
}

// BrokerConfig holds the MQTT connection settings.
type BrokerConfig struct {
	// Addr is host:port for plain TCP, or a ws:// / wss:// URL for
	// MQTT over WebSocket.
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	CleanSession   bool          `yaml:"clean_session"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectMin   time.Duration `yaml:"reconnect_min"`
	ReconnectMax   time.Duration `yaml:"reconnect_max"`
}

// DeviceConfig identifies this speaker.
type DeviceConfig struct {
	// ID is the device identifier used in topic names and as the MQTT
	// client ID. Empty means a random one is generated at startup.
	ID string `yaml:"id"`
}

// TransferConfig tunes the large-payload streaming path.
type TransferConfig struct {
	// Payloads larger than this many bytes are streamed to a staged
	// file instead of held in memory.
	LargeThreshold int `yaml:"large_threshold"`

	// Bytes read up front to capture the metadata header.
	HeaderPrefix int `yaml:"header_prefix"`

	// Per-read chunk size while streaming.
	ChunkSize int `yaml:"chunk_size"`

	// Directory holding the staged slot files.
	TempDir string `yaml:"temp_dir"`

	// Directory that save-to-file transfers are copied into. Empty keeps
	// saved audio next to the slots.
	SaveDir string `yaml:"save_dir"`
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	// TopicPrefix is prepended to the device ID to form the alert
	// subscription topic.
	TopicPrefix   string `yaml:"topic_prefix"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// AdminConfig controls the command/response bridge.
type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HeartbeatConfig controls the periodic liveness publish.
type HeartbeatConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Addr:           "localhost:1883",
			KeepAlive:      60 * time.Second,
			CleanSession:   true,
			ConnectTimeout: 10 * time.Second,
			ReconnectMin:   5 * time.Second,
			ReconnectMax:   5 * time.Minute,
		},
		Transfer: TransferConfig{
			LargeThreshold: 32 * 1024,
			HeaderPrefix:   512,
			ChunkSize:      512,
			TempDir:        "/tmp/speakerlink",
			SaveDir:        "/var/lib/speakerlink",
		},
		Audio: AudioConfig{
			TopicPrefix:   "rapidreach/audio/",
			QueueCapacity: 10,
		},
		Admin: AdminConfig{
			Enabled: true,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Topic:    "rapidreach/heartbeat",
			Interval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Broker.Addr == "" {
		return fmt.Errorf("broker.addr cannot be empty")
	}
	if c.Broker.KeepAlive < 0 {
		return fmt.Errorf("broker.keep_alive cannot be negative")
	}
	if c.Broker.ReconnectMin < time.Second {
		return fmt.Errorf("broker.reconnect_min must be at least 1 second")
	}
	if c.Broker.ReconnectMax < c.Broker.ReconnectMin {
		return fmt.Errorf("broker.reconnect_max must be at least broker.reconnect_min")
	}

	if c.Transfer.LargeThreshold < 1024 {
		return fmt.Errorf("transfer.large_threshold must be at least 1KB")
	}
	if c.Transfer.HeaderPrefix < 64 {
		return fmt.Errorf("transfer.header_prefix must be at least 64 bytes")
	}
	if c.Transfer.ChunkSize < 64 {
		return fmt.Errorf("transfer.chunk_size must be at least 64 bytes")
	}
	if c.Transfer.TempDir == "" {
		return fmt.Errorf("transfer.temp_dir cannot be empty")
	}

	if c.Audio.TopicPrefix == "" {
		return fmt.Errorf("audio.topic_prefix cannot be empty")
	}
	if c.Audio.QueueCapacity < 1 {
		return fmt.Errorf("audio.queue_capacity must be at least 1")
	}

	if c.Heartbeat.Enabled {
		if c.Heartbeat.Topic == "" {
			return fmt.Errorf("heartbeat.topic required when heartbeat is enabled")
		}
		if c.Heartbeat.Interval < time.Second {
			return fmt.Errorf("heartbeat.interval must be at least 1 second")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: text, json")
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
