// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// isWebSocketURL reports whether the configured server address selects the
// WebSocket transport.
func isWebSocketURL(addr string) bool {
	return strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://")
}

// dialWebSocket connects to a broker's MQTT-over-WebSocket endpoint and
// wraps the connection so the engine can treat it as a byte stream.
func dialWebSocket(addr string, timeout time.Duration, tlsConfig *tls.Config) (net.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Subprotocols:     []string{"mqtt"},
		TLSClientConfig:  tlsConfig,
	}

	ws, _, err := dialer.Dial(addr, http.Header{})
	if err != nil {
		return nil, err
	}

	return &wsConn{ws: ws}, nil
}

// wsConn adapts a websocket connection to net.Conn. WebSocket frames are
// message-oriented while the packet codec expects a stream, so reads pull
// from the current binary frame and advance to the next one on exhaustion.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
}

func (c *wsConn) Read(b []byte) (int, error) {
	for {
		if c.reader == nil {
			messageType, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(b)
		if err == io.EOF {
			// Frame exhausted, continue with the next one.
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
