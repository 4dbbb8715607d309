// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidreach/speakerlink/client"
)

type fakeConn struct {
	subscribed map[string]client.Handler
	published  []publishCall
}

type publishCall struct {
	topic   string
	payload []byte
	qos     byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{subscribed: make(map[string]client.Handler)}
}

func (f *fakeConn) Publish(topic string, payload []byte, qos byte, retain bool) error {
	f.published = append(f.published, publishCall{topic: topic, payload: payload, qos: qos})
	return nil
}

func (f *fakeConn) Subscribe(filter string, qos byte, h client.Handler) error {
	f.subscribed[filter] = h
	return nil
}

func (f *fakeConn) lastResponse(t *testing.T) response {
	t.Helper()
	require.NotEmpty(t, f.published)
	call := f.published[len(f.published)-1]
	require.Equal(t, RspTopic("dev1"), call.topic)
	require.Equal(t, byte(1), call.qos)

	var rsp response
	require.NoError(t, json.Unmarshal(call.payload, &rsp))
	return rsp
}

func testBridge(t *testing.T, hooks Hooks) (*Bridge, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBridge(conn, "dev1", hooks, logger)
	require.NoError(t, b.Start())
	require.Contains(t, conn.subscribed, CmdTopic("dev1"))
	return b, conn
}

func send(t *testing.T, conn *fakeConn, body string) {
	t.Helper()
	h := conn.subscribed[CmdTopic("dev1")]
	require.NotNil(t, h)
	h(CmdTopic("dev1"), []byte(body), "")
}

func TestBridgePing(t *testing.T) {
	_, conn := testBridge(t, Hooks{})

	send(t, conn, `{"id":"r1","cmd":"ping"}`)

	rsp := conn.lastResponse(t)
	assert.True(t, rsp.Ok)
	assert.Equal(t, "r1", rsp.ID)
	assert.Empty(t, rsp.Error)
}

func TestBridgeStatus(t *testing.T) {
	_, conn := testBridge(t, Hooks{
		Status: func() Status {
			return Status{Connected: true, QueueDepth: 2, Playing: true, ClientID: "speaker-ab"}
		},
	})

	send(t, conn, `{"id":"r2","cmd":"status"}`)

	rsp := conn.lastResponse(t)
	require.True(t, rsp.Ok)
	require.NotNil(t, rsp.Status)
	assert.True(t, rsp.Status.Alive)
	assert.True(t, rsp.Status.Connected)
	assert.Equal(t, 2, rsp.Status.QueueDepth)
	assert.Equal(t, "speaker-ab", rsp.Status.ClientID)
}

func TestBridgeVolume(t *testing.T) {
	var got int
	_, conn := testBridge(t, Hooks{
		SetVolume: func(p int) error {
			got = p
			return nil
		},
	})

	send(t, conn, `{"cmd":"volume","volume":65}`)
	rsp := conn.lastResponse(t)
	assert.True(t, rsp.Ok)
	assert.Equal(t, 65, got)

	send(t, conn, `{"cmd":"volume","volume":150}`)
	rsp = conn.lastResponse(t)
	assert.False(t, rsp.Ok)
	assert.Contains(t, rsp.Error, "0-100")

	send(t, conn, `{"cmd":"volume"}`)
	rsp = conn.lastResponse(t)
	assert.False(t, rsp.Ok)
}

func TestBridgeVolumeHookFailure(t *testing.T) {
	_, conn := testBridge(t, Hooks{
		SetVolume: func(p int) error { return errors.New("codec offline") },
	})

	send(t, conn, `{"cmd":"volume","volume":10}`)
	rsp := conn.lastResponse(t)
	assert.False(t, rsp.Ok)
	assert.Equal(t, "codec offline", rsp.Error)
}

func TestBridgeConfigSnapshot(t *testing.T) {
	_, conn := testBridge(t, Hooks{
		ConfigSnapshot: func() ([]byte, error) {
			return []byte(`{"broker":"tcp://mq:1883"}`), nil
		},
	})

	send(t, conn, `{"cmd":"config"}`)
	rsp := conn.lastResponse(t)
	require.True(t, rsp.Ok)
	assert.JSONEq(t, `{"broker":"tcp://mq:1883"}`, string(rsp.Config))
}

func TestBridgeUnknownCommand(t *testing.T) {
	_, conn := testBridge(t, Hooks{})

	send(t, conn, `{"cmd":"reboot"}`)
	rsp := conn.lastResponse(t)
	assert.False(t, rsp.Ok)
	assert.Contains(t, rsp.Error, "unknown command")
}

func TestBridgeMalformedRequest(t *testing.T) {
	_, conn := testBridge(t, Hooks{})

	send(t, conn, `not json`)
	rsp := conn.lastResponse(t)
	assert.False(t, rsp.Ok)
	assert.Equal(t, "malformed request", rsp.Error)
}

func TestBridgeMissingHooks(t *testing.T) {
	_, conn := testBridge(t, Hooks{})

	for _, cmd := range []string{"status", "volume", "config"} {
		send(t, conn, `{"cmd":"`+cmd+`"}`)
		rsp := conn.lastResponse(t)
		assert.False(t, rsp.Ok, "cmd=%s", cmd)
		assert.NotEmpty(t, rsp.Error, "cmd=%s", cmd)
	}
}
