// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rapidreach/speakerlink/admin"
	"github.com/rapidreach/speakerlink/audio"
	"github.com/rapidreach/speakerlink/client"
	"github.com/rapidreach/speakerlink/config"
	"github.com/rapidreach/speakerlink/stage"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	deviceID := cfg.Device.ID
	if deviceID == "" {
		deviceID = fmt.Sprintf("speaker-%s", uuid.NewString()[:8])
	}
	audioTopic := cfg.Audio.TopicPrefix + deviceID

	slog.Info("Starting speaker daemon",
		"device_id", deviceID,
		"broker", cfg.Broker.Addr,
		"audio_topic", audioTopic,
		"log_level", cfg.Log.Level)

	arena, err := stage.NewArena(cfg.Transfer.TempDir, cfg.Transfer.SaveDir, cfg.Transfer.ChunkSize, logger)
	if err != nil {
		slog.Error("Failed to initialize staging arena", "error", err)
		os.Exit(1)
	}

	player := &audio.NopPlayer{Logger: logger}
	queue := audio.NewQueue(player, arena, cfg.Audio.QueueCapacity, logger)
	queue.Start()
	defer queue.Close()

	alertHandler := audio.NewHandler(queue, arena, logger)

	opts := client.NewOptions().
		SetServer(cfg.Broker.Addr).
		SetClientID(deviceID).
		SetCredentials(cfg.Broker.Username, cfg.Broker.Password).
		SetKeepAlive(cfg.Broker.KeepAlive).
		SetLogger(logger)
	opts.CleanSession = cfg.Broker.CleanSession
	opts.ConnectTimeout = cfg.Broker.ConnectTimeout
	opts.ReconnectMin = cfg.Broker.ReconnectMin
	opts.ReconnectMax = cfg.Broker.ReconnectMax
	opts.LargeThreshold = cfg.Transfer.LargeThreshold
	opts.HeaderPrefix = cfg.Transfer.HeaderPrefix
	opts.ChunkSize = cfg.Transfer.ChunkSize
	opts.LargeFilter = audioTopic

	cli, err := client.New(opts, arena)
	if err != nil {
		slog.Error("Failed to build MQTT client", "error", err)
		os.Exit(1)
	}

	bridge := admin.NewBridge(cli, deviceID, admin.Hooks{
		Status: func() admin.Status {
			return admin.Status{
				Connected:  cli.State() == client.StateConnected,
				QueueDepth: queue.Depth(),
				Playing:    queue.Playing(),
				ClientID:   deviceID,
			}
		},
		SetVolume: queue.SetVolume,
		ConfigSnapshot: func() ([]byte, error) {
			return json.Marshal(map[string]any{
				"broker":         cfg.Broker.Addr,
				"keepAlive":      cfg.Broker.KeepAlive.String(),
				"audioTopic":     audioTopic,
				"largeThreshold": cfg.Transfer.LargeThreshold,
				"chunkSize":      cfg.Transfer.ChunkSize,
				"tempDir":        cfg.Transfer.TempDir,
				"saveDir":        cfg.Transfer.SaveDir,
				"queueCapacity":  cfg.Audio.QueueCapacity,
			})
		},
	}, logger)

	// Subscriptions need a live session; after the first CONNACK the
	// registry handles resubscription on its own.
	var subscribeOnce sync.Once
	opts.SetOnEvent(func(ev client.Event) {
		switch ev.Kind {
		case client.EventConnected:
			slog.Info("Broker connection established")
			subscribeOnce.Do(func() {
				go func() {
					if err := cli.Subscribe(audioTopic, 1, alertHandler.Handle); err != nil {
						slog.Error("Failed to subscribe to audio topic", "error", err)
					}
					if cfg.Admin.Enabled {
						if err := bridge.Start(); err != nil {
							slog.Error("Failed to start admin bridge", "error", err)
						}
					}
				}()
			})
		case client.EventDisconnected:
			slog.Warn("Broker connection lost", "error", ev.Err)
		case client.EventReconnecting:
			slog.Info("Reconnecting to broker", "attempt", ev.Attempt)
		}
	})

	if err := cli.Start(); err != nil {
		slog.Error("Failed to start MQTT client", "error", err)
		os.Exit(1)
	}
	defer cli.Stop()

	heartbeatDone := make(chan struct{})
	heartbeatStop := make(chan struct{})
	if cfg.Heartbeat.Enabled {
		go runHeartbeat(cli, cfg.Heartbeat, heartbeatStop, heartbeatDone)
	} else {
		close(heartbeatDone)
	}

	slog.Info("Speaker daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received shutdown signal", "signal", sig.String())

	close(heartbeatStop)
	<-heartbeatDone

	cli.Stop()
	queue.Close()
	slog.Info("Speaker daemon stopped")
}

// runHeartbeat publishes a periodic liveness message while the connection
// is up. Publish failures are logged and the next tick tries again.
func runHeartbeat(cli *client.Client, cfg config.HeartbeatConfig, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	started := time.Now()
	seq := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if cli.State() != client.StateConnected {
				continue
			}
			seq++
			payload := fmt.Sprintf(`{"alive":true,"seq":%d,"uptime":%d}`,
				seq, int64(time.Since(started).Seconds()))
			if err := cli.Publish(cfg.Topic, []byte(payload), 0, false); err != nil {
				slog.Warn("Heartbeat publish failed", "error", err)
			}
		}
	}
}
