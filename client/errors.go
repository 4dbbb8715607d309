// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

package client

import "errors"

// Client errors.
var (
	// Configuration errors.
	ErrNoServer      = errors.New("no broker address configured")
	ErrEmptyClientID = errors.New("client ID cannot be empty")

	// Connection errors.
	ErrNotConnected    = errors.New("client not connected")
	ErrAlreadyStarted  = errors.New("client already started")
	ErrConnectFailed   = errors.New("connection failed")
	ErrConnectRejected = errors.New("connection rejected by broker")

	// Operation errors.
	ErrTimeout         = errors.New("operation timed out")
	ErrMaxInflight     = errors.New("maximum inflight messages exceeded")
	ErrConnectionLost  = errors.New("connection lost")
	ErrClientClosed    = errors.New("client has been closed")
	ErrInvalidQoS      = errors.New("invalid QoS level (must be 0 or 1)")
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrSubscribeFailed = errors.New("subscription failed")
	ErrRegistryFull    = errors.New("subscription table is full")
	ErrDispatchFull    = errors.New("dispatch queue is full")

	// Protocol errors.
	ErrUnexpectedPacket = errors.New("unexpected packet type")
)

// connAckError maps a CONNACK return code to a human-readable rejection
// reason.
func connAckError(code byte) string {
	switch code {
	case 0x01:
		return "unacceptable protocol version"
	case 0x02:
		return "client identifier rejected"
	case 0x03:
		return "server unavailable"
	case 0x04:
		return "bad username or password"
	case 0x05:
		return "not authorized"
	default:
		return "unknown error"
	}
}
