// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Default values.
const (
	DefaultKeepAlive       = 60 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultAckTimeout      = 10 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultReconnectMin    = 5 * time.Second
	DefaultReconnectMax    = 5 * time.Minute
	DefaultMaxInflight     = 16
	DefaultMaxSubscription = 8
	DefaultDispatchDepth   = 16
	DefaultLargeThreshold  = 32 * 1024
	DefaultHeaderPrefix    = 512
	DefaultChunkSize       = 512
	DefaultLargeFilter     = "devices/+/rx"
)

// WillMessage represents a last will and testament message.
type WillMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Options configures the speaker link client.
type Options struct {
	// Connection
	Server         string        // Broker address: host:port, or a ws:// / wss:// URL
	ClientID       string        // Client identifier
	Username       string        // Optional username
	Password       string        // Optional password
	TLSConfig      *tls.Config   // TLS configuration (nil for plain TCP)
	ConnectTimeout time.Duration // Timeout for connection attempts
	WriteTimeout   time.Duration // Timeout for write operations
	KeepAlive      time.Duration // Keep-alive interval (0 to disable)
	CleanSession   bool          // Start with clean session

	// Will
	Will *WillMessage // Last will and testament

	// QoS
	AckTimeout  time.Duration // Timeout waiting for PUBACK/SUBACK
	MaxInflight int           // Maximum inflight operations

	// Engine
	PollInterval     time.Duration // Socket poll read deadline
	ReconnectMin     time.Duration // Reconnect backoff floor
	ReconnectMax     time.Duration // Reconnect backoff ceiling
	MaxSubscriptions int           // Fixed subscription slot count
	DispatchDepth    int           // Dispatch work queue capacity

	// Large payload streaming
	LargeThreshold int    // Payloads above this stream to a staged file
	HeaderPrefix   int    // Bytes read synchronously to capture the header
	ChunkSize      int    // Per-read chunk while streaming a payload
	LargeFilter    string // Topic filter selecting large-binary transfers

	// Callbacks
	OnEvent func(Event) // Connection lifecycle observer

	Logger *slog.Logger
}

// NewOptions creates Options with sensible defaults. The client ID is
// randomized so two devices with an unset ID never collide at the broker.
func NewOptions() *Options {
	return &Options{
		Server:           "localhost:1883",
		ClientID:         fmt.Sprintf("speaker-%s", uuid.NewString()[:8]),
		CleanSession:     true,
		KeepAlive:        DefaultKeepAlive,
		ConnectTimeout:   DefaultConnectTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		AckTimeout:       DefaultAckTimeout,
		PollInterval:     DefaultPollInterval,
		ReconnectMin:     DefaultReconnectMin,
		ReconnectMax:     DefaultReconnectMax,
		MaxInflight:      DefaultMaxInflight,
		MaxSubscriptions: DefaultMaxSubscription,
		DispatchDepth:    DefaultDispatchDepth,
		LargeThreshold:   DefaultLargeThreshold,
		HeaderPrefix:     DefaultHeaderPrefix,
		ChunkSize:        DefaultChunkSize,
		LargeFilter:      DefaultLargeFilter,
	}
}

// SetServer sets the broker address.
func (o *Options) SetServer(addr string) *Options {
	o.Server = addr
	return o
}

// SetClientID sets the client identifier.
func (o *Options) SetClientID(id string) *Options {
	o.ClientID = id
	return o
}

// SetCredentials sets username and password.
func (o *Options) SetCredentials(username, password string) *Options {
	o.Username = username
	o.Password = password
	return o
}

// SetTLSConfig sets TLS configuration.
func (o *Options) SetTLSConfig(cfg *tls.Config) *Options {
	o.TLSConfig = cfg
	return o
}

// SetKeepAlive sets the keep-alive interval.
func (o *Options) SetKeepAlive(d time.Duration) *Options {
	o.KeepAlive = d
	return o
}

// SetWill sets the last will and testament.
func (o *Options) SetWill(topic string, payload []byte, qos byte, retain bool) *Options {
	o.Will = &WillMessage{Topic: topic, Payload: payload, QoS: qos, Retain: retain}
	return o
}

// SetOnEvent sets the connection lifecycle observer.
func (o *Options) SetOnEvent(fn func(Event)) *Options {
	o.OnEvent = fn
	return o
}

// SetLogger sets the structured logger.
func (o *Options) SetLogger(l *slog.Logger) *Options {
	o.Logger = l
	return o
}

// Validate checks the options for errors and fills zero values with
// defaults.
func (o *Options) Validate() error {
	if o.Server == "" {
		return ErrNoServer
	}
	if o.ClientID == "" {
		return ErrEmptyClientID
	}
	if o.MaxInflight <= 0 {
		o.MaxInflight = DefaultMaxInflight
	}
	if o.MaxSubscriptions <= 0 {
		o.MaxSubscriptions = DefaultMaxSubscription
	}
	if o.DispatchDepth <= 0 {
		o.DispatchDepth = DefaultDispatchDepth
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = DefaultReconnectMin
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = DefaultReconnectMax
	}
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = DefaultLargeThreshold
	}
	if o.HeaderPrefix <= 0 {
		o.HeaderPrefix = DefaultHeaderPrefix
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return nil
}
