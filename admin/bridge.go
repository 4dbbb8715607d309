// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package admin exposes a per-device command/response channel over MQTT.
// Operators publish a JSON request to the device's command topic and the
// device answers on its response topic.
package admin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rapidreach/speakerlink/client"
)

// CmdTopic returns the command topic for a device.
func CmdTopic(deviceID string) string {
	return fmt.Sprintf("rapidreach/cmd/%s", deviceID)
}

// RspTopic returns the response topic for a device.
func RspTopic(deviceID string) string {
	return fmt.Sprintf("rapidreach/rsp/%s", deviceID)
}

// Conn is the slice of the MQTT client the bridge needs.
type Conn interface {
	Publish(topic string, payload []byte, qos byte, retain bool) error
	Subscribe(filter string, qos byte, h client.Handler) error
}

// Status is the device snapshot returned by the status command.
type Status struct {
	Alive      bool   `json:"alive"`
	Connected  bool   `json:"connected"`
	UptimeSec  int64  `json:"uptime"`
	QueueDepth int    `json:"queueDepth"`
	Playing    bool   `json:"playing"`
	ClientID   string `json:"clientId"`
}

// Hooks supply the device-side behavior behind each command. Nil hooks
// make the corresponding command report an error instead of panicking.
type Hooks struct {
	Status         func() Status
	SetVolume      func(percent int) error
	ConfigSnapshot func() ([]byte, error)
}

type request struct {
	ID     string `json:"id,omitempty"`
	Cmd    string `json:"cmd"`
	Volume *int   `json:"volume,omitempty"`
}

type response struct {
	ID     string          `json:"id,omitempty"`
	Ok     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Status *Status         `json:"status,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Bridge subscribes to the device command topic and answers requests.
// Handlers run on the client's dispatch worker, so command execution never
// blocks protocol I/O.
type Bridge struct {
	conn     Conn
	deviceID string
	hooks    Hooks
	logger   *slog.Logger
	started  time.Time
}

func NewBridge(conn Conn, deviceID string, hooks Hooks, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		conn:     conn,
		deviceID: deviceID,
		hooks:    hooks,
		logger:   logger.With(slog.String("component", "admin_bridge")),
		started:  time.Now(),
	}
}

// Start subscribes to the command topic. Call after the client is started.
func (b *Bridge) Start() error {
	topic := CmdTopic(b.deviceID)
	if err := b.conn.Subscribe(topic, 1, b.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	b.logger.Info("admin bridge listening",
		slog.String("cmd_topic", topic),
		slog.String("rsp_topic", RspTopic(b.deviceID)))
	return nil
}

func (b *Bridge) handle(topic string, payload []byte, _ string) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("malformed admin request", slog.Any("error", err))
		b.reply(response{Ok: false, Error: "malformed request"})
		return
	}

	b.logger.Info("admin command received",
		slog.String("cmd", req.Cmd),
		slog.String("id", req.ID))

	rsp := response{ID: req.ID}
	switch req.Cmd {
	case "ping":
		rsp.Ok = true

	case "status":
		if b.hooks.Status == nil {
			rsp.Error = "status not available"
			break
		}
		st := b.hooks.Status()
		st.Alive = true
		st.UptimeSec = int64(time.Since(b.started).Seconds())
		rsp.Ok = true
		rsp.Status = &st

	case "volume":
		if b.hooks.SetVolume == nil {
			rsp.Error = "volume control not available"
			break
		}
		if req.Volume == nil || *req.Volume < 0 || *req.Volume > 100 {
			rsp.Error = "volume must be 0-100"
			break
		}
		if err := b.hooks.SetVolume(*req.Volume); err != nil {
			rsp.Error = err.Error()
			break
		}
		rsp.Ok = true

	case "config":
		if b.hooks.ConfigSnapshot == nil {
			rsp.Error = "config snapshot not available"
			break
		}
		raw, err := b.hooks.ConfigSnapshot()
		if err != nil {
			rsp.Error = err.Error()
			break
		}
		rsp.Ok = true
		rsp.Config = raw

	default:
		rsp.Error = fmt.Sprintf("unknown command %q", req.Cmd)
	}

	b.reply(rsp)
}

func (b *Bridge) reply(rsp response) {
	payload, err := json.Marshal(rsp)
	if err != nil {
		b.logger.Error("failed to encode admin response", slog.Any("error", err))
		return
	}
	if err := b.conn.Publish(RspTopic(b.deviceID), payload, 1, false); err != nil {
		b.logger.Warn("failed to publish admin response", slog.Any("error", err))
	}
}
