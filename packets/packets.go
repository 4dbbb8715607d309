// Copyright (c) RapidReach
// SPDX-License-Identifier: Apache-2.0

// Package packets implements the MQTT 3.1.1 control packets the speaker
// link needs: connect/keepalive/publish/subscribe and their acknowledgments.
package packets

import (
	"errors"
	"fmt"
	"io"

	"github.com/rapidreach/speakerlink/packets/codec"
)

// V311 is the protocol level byte sent in CONNECT.
const V311 byte = 0x04

// Packet type constants.
const (
	ConnectType = iota + 1 // 0 value is forbidden
	ConnAckType
	PublishType
	PubAckType
	PubRecType
	PubRelType
	PubCompType
	SubscribeType
	SubAckType
	UnsubscribeType
	UnsubAckType
	PingReqType
	PingRespType
	DisconnectType
)

// PacketNames maps packet type constants to string names.
var PacketNames = map[byte]string{
	ConnectType:     "CONNECT",
	ConnAckType:     "CONNACK",
	PublishType:     "PUBLISH",
	PubAckType:      "PUBACK",
	PubRecType:      "PUBREC",
	PubRelType:      "PUBREL",
	PubCompType:     "PUBCOMP",
	SubscribeType:   "SUBSCRIBE",
	SubAckType:      "SUBACK",
	UnsubscribeType: "UNSUBSCRIBE",
	UnsubAckType:    "UNSUBACK",
	PingReqType:     "PINGREQ",
	PingRespType:    "PINGRESP",
	DisconnectType:  "DISCONNECT",
}

// ErrUnknownPacketType indicates a fixed header with a type this client
// does not handle.
var ErrUnknownPacketType = errors.New("unknown packet type")

// ControlPacket is the interface for all MQTT control packets.
type ControlPacket interface {
	// Encode serializes the packet to bytes.
	Encode() []byte

	// Pack writes the encoded packet to the writer.
	Pack(w io.Writer) error

	// Unpack deserializes the packet body from the reader. The fixed
	// header has already been consumed by the caller.
	Unpack(r io.Reader) error

	// Type returns the packet type constant.
	Type() byte

	// String returns a human-readable representation.
	String() string
}

// FixedHeader represents the MQTT fixed header present in all packets.
type FixedHeader struct {
	PacketType      byte
	Dup             bool
	QoS             byte
	Retain          bool
	RemainingLength int
}

// String returns a human-readable representation of the fixed header.
func (fh FixedHeader) String() string {
	return fmt.Sprintf("type: %s dup: %t qos: %d retain: %t remaining_length: %d",
		PacketNames[fh.PacketType], fh.Dup, fh.QoS, fh.Retain, fh.RemainingLength)
}

// Encode serializes the fixed header to bytes.
func (fh FixedHeader) Encode() []byte {
	var dup, retain byte
	if fh.Dup {
		dup = 1
	}
	if fh.Retain {
		retain = 1
	}
	ret := []byte{fh.PacketType<<4 | dup<<3 | fh.QoS<<1 | retain}
	return append(ret, codec.EncodeVBI(fh.RemainingLength)...)
}

// Decode parses the fixed header from the type/flags byte and reader.
func (fh *FixedHeader) Decode(typeAndFlags byte, r io.Reader) error {
	fh.PacketType = typeAndFlags >> 4
	fh.Dup = (typeAndFlags>>3)&0x01 > 0
	fh.QoS = (typeAndFlags >> 1) & 0x03
	fh.Retain = typeAndFlags&0x01 > 0

	var err error
	fh.RemainingLength, err = codec.DecodeVBI(r)
	return err
}

// NewControlPacket creates a new packet of the specified type.
func NewControlPacket(packetType byte) ControlPacket {
	switch packetType {
	case ConnectType:
		return &Connect{FixedHeader: FixedHeader{PacketType: ConnectType}}
	case ConnAckType:
		return &ConnAck{FixedHeader: FixedHeader{PacketType: ConnAckType}}
	case PublishType:
		return &Publish{FixedHeader: FixedHeader{PacketType: PublishType}}
	case PubAckType:
		return &PubAck{FixedHeader: FixedHeader{PacketType: PubAckType}}
	case SubscribeType:
		return &Subscribe{FixedHeader: FixedHeader{PacketType: SubscribeType, QoS: 1}}
	case SubAckType:
		return &SubAck{FixedHeader: FixedHeader{PacketType: SubAckType}}
	case UnsubscribeType:
		return &Unsubscribe{FixedHeader: FixedHeader{PacketType: UnsubscribeType, QoS: 1}}
	case UnsubAckType:
		return &UnsubAck{FixedHeader: FixedHeader{PacketType: UnsubAckType}}
	case PingReqType:
		return &PingReq{FixedHeader: FixedHeader{PacketType: PingReqType}}
	case PingRespType:
		return &PingResp{FixedHeader: FixedHeader{PacketType: PingRespType}}
	case DisconnectType:
		return &Disconnect{FixedHeader: FixedHeader{PacketType: DisconnectType}}
	}
	return nil
}

// ReadPacket reads a complete packet from the reader, including its payload.
// The Protocol Engine uses the lower-level FixedHeader.Decode path for
// PUBLISH so it can leave large payloads on the wire; ReadPacket is for
// every other packet type, and for test brokers that buffer whole packets.
func ReadPacket(r io.Reader) (ControlPacket, error) {
	first, err := codec.DecodeByte(r)
	if err != nil {
		return nil, err
	}

	var fh FixedHeader
	if err := fh.Decode(first, r); err != nil {
		return nil, err
	}

	pkt := NewControlPacket(fh.PacketType)
	if pkt == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPacketType, fh.PacketType)
	}
	setHeader(pkt, fh)

	if err := pkt.Unpack(io.LimitReader(r, int64(fh.RemainingLength))); err != nil {
		return nil, err
	}
	return pkt, nil
}

func setHeader(pkt ControlPacket, fh FixedHeader) {
	switch p := pkt.(type) {
	case *Connect:
		p.FixedHeader = fh
	case *ConnAck:
		p.FixedHeader = fh
	case *Publish:
		p.FixedHeader = fh
	case *PubAck:
		p.FixedHeader = fh
	case *Subscribe:
		p.FixedHeader = fh
	case *SubAck:
		p.FixedHeader = fh
	case *Unsubscribe:
		p.FixedHeader = fh
	case *UnsubAck:
		p.FixedHeader = fh
	case *PingReq:
		p.FixedHeader = fh
	case *PingResp:
		p.FixedHeader = fh
	case *Disconnect:
		p.FixedHeader = fh
	}
}
